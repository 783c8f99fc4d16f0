package database

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const addParticipantQuery = "INSERT INTO participants (room_id, user_id, created_at) " +
	"VALUES ($1, $2, $3) ON CONFLICT (room_id, user_id) DO NOTHING"

func (db *PgStudyRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (id, username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, username, email, created_at",
		uuid.NewString(),
		params.Username,
		params.Email,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.Email,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgStudyRepository) GetAccountById(id string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.Email,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgStudyRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgStudyRepository) GetAccountByUsername(username string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at FROM accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.Email,
		&user.CreatedAt,
	)

	return user, err
}

// CreateRoom inserts the room and its creator's participant row in one
// transaction so a room never exists without its owner as a member.
func (db *PgStudyRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO rooms (id, name, join_code, created_by, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, name, join_code, created_by, notes_content, seq_id, created_at",
		params.Id,
		params.Name,
		strings.ToUpper(params.JoinCode),
		params.CreatedBy,
		time.Now().UTC(),
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.Name,
		&room.JoinCode,
		&room.CreatedBy,
		&room.NotesContent,
		&room.SeqId,
		&room.CreatedAt,
	)
	if err != nil {
		return Room{}, err
	}

	_, err = tx.Exec(addParticipantQuery, room.Id, params.CreatedBy, time.Now().UTC())
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, err
}

func (db *PgStudyRepository) GetRoomById(id string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, join_code, created_by, notes_content, seq_id, created_at FROM rooms "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.Name,
		&room.JoinCode,
		&room.CreatedBy,
		&room.NotesContent,
		&room.SeqId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgStudyRepository) GetRoomByJoinCode(code string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, join_code, created_by, notes_content, seq_id, created_at FROM rooms "+
			"WHERE join_code = $1 LIMIT 1",
		strings.ToUpper(code),
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.Name,
		&room.JoinCode,
		&room.CreatedBy,
		&room.NotesContent,
		&room.SeqId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgStudyRepository) JoinCodeExists(code string) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT 1 FROM rooms WHERE join_code = $1 LIMIT 1",
		strings.ToUpper(code),
	)

	var one int
	err := row.Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (db *PgStudyRepository) AddParticipant(roomId, userId string) error {
	_, err := db.conn.Exec(addParticipantQuery, roomId, userId, time.Now().UTC())
	return err
}

func (db *PgStudyRepository) ParticipantExists(roomId, userId string) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM participants WHERE room_id = $1 AND user_id = $2 LIMIT 1",
		roomId,
		userId,
	)

	var id int
	return res.Scan(&id) == nil
}

func (db *PgStudyRepository) GetParticipants(roomId string) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username FROM participants AS p "+
			"JOIN accounts AS a ON p.user_id = a.id WHERE p.room_id = $1 ORDER BY p.id",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username); err != nil {
			break
		}

		users = append(users, u)
	}

	return users, err
}

func (db *PgStudyRepository) ListRoomsForUser(userId string) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.name, r.join_code, r.created_by, r.created_at FROM participants p "+
			"JOIN rooms r ON r.id = p.room_id WHERE p.user_id = $1 ORDER BY r.created_at",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err = rows.Scan(&room.Id, &room.Name, &room.JoinCode, &room.CreatedBy, &room.CreatedAt); err != nil {
			break
		}

		rooms = append(rooms, room)
	}

	return rooms, err
}

func (db *PgStudyRepository) CreateMessage(msg Message) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec("UPDATE rooms SET seq_id = $1 WHERE id = $2", msg.SeqId, msg.RoomId)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		"INSERT INTO messages (id, seq_id, room_id, user_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		msg.Id,
		msg.SeqId,
		msg.RoomId,
		msg.UserId,
		msg.Content,
		msg.CreatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetMessages returns the most recent messages for a room in ascending
// sequence order.
func (db *PgStudyRepository) GetMessages(roomId string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.Query(
		"SELECT id, seq_id, room_id, user_id, username, content, created_at FROM ("+
			"SELECT m.id, m.seq_id, m.room_id, m.user_id, a.username, m.content, m.created_at "+
			"FROM messages m JOIN accounts a ON m.user_id = a.id "+
			"WHERE m.room_id = $1 ORDER BY m.seq_id DESC LIMIT $2"+
			") AS tail ORDER BY seq_id ASC",
		roomId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.SeqId, &msg.RoomId, &msg.UserId, &msg.Username, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

func (db *PgStudyRepository) UpdateRoomNotes(roomId, content string) error {
	_, err := db.conn.Exec("UPDATE rooms SET notes_content = $1 WHERE id = $2", content, roomId)
	return err
}
