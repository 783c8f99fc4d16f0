package database

import (
	"database/sql"
)

type PgStudyRepository struct {
	conn *sql.DB
}

func NewPgStudyRepository(dsn string) (*PgStudyRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgStudyRepository{conn: db}, nil
}

func (db *PgStudyRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
