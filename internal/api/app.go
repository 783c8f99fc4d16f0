package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/config"
	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/database"
	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/server"
	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/stats"
)

type StudySphereApp struct {
	log            *log.Logger
	db             database.StudyRepository
	mux            *http.Server
	cs             *server.StudyServer
	stats          stats.StatsProvider
	sid            *shortid.Shortid
	signingKey     []byte
	allowedOrigins []string
}

func NewStudySphereApp(mux *http.ServeMux, logger *log.Logger, cs *server.StudyServer, db database.StudyRepository, sp stats.StatsProvider, cfg *config.Config) (*StudySphereApp, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("shortid: %w", err)
	}

	s := &StudySphereApp{
		log:            logger,
		db:             db,
		cs:             cs,
		stats:          sp,
		sid:            sid,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("POST /api/rooms/create", s.authMiddleware(s.createRoom))
	mux.Handle("POST /api/rooms/join", s.authMiddleware(s.joinRoom))
	mux.Handle("GET /api/rooms/my-rooms", s.authMiddleware(s.myRooms))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s, nil
}

func (s *StudySphereApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *StudySphereApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
