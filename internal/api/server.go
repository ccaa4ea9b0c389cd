package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/codeprep-io/codeprep/internal/collab"
	"github.com/codeprep-io/codeprep/internal/config"
	"github.com/codeprep-io/codeprep/internal/database"
	"github.com/codeprep-io/codeprep/internal/execution"
	"github.com/codeprep-io/codeprep/internal/stats"
	"github.com/gorilla/handlers"
)

type CodePrepApp struct {
	log            *log.Logger
	db             database.CodePrepRepository
	mux            *http.Server
	cs             *collab.CollabServer
	runner         execution.Runner
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string
}

func NewCodePrepApp(mux *http.ServeMux, logger *log.Logger, cs *collab.CollabServer, db database.CodePrepRepository,
	runner execution.Runner, sp stats.StatsProvider, cfg *config.Config) *CodePrepApp {
	s := &CodePrepApp{
		log:            logger,
		db:             db,
		cs:             cs,
		runner:         runner,
		stats:          sp,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("/api/account", s.authMiddleware(s.account))
	mux.Handle("GET /api/questions", s.authMiddleware(s.listQuestions))
	mux.Handle("GET /api/questions/random", s.authMiddleware(s.randomQuestion))
	mux.Handle("GET /api/questions/{id}", s.authMiddleware(s.getQuestion))
	mux.Handle("POST /api/questions", s.authMiddleware(s.adminOnly(s.createQuestion)))
	mux.Handle("PUT /api/questions/{id}", s.authMiddleware(s.adminOnly(s.updateQuestion)))
	mux.Handle("DELETE /api/questions/{id}", s.authMiddleware(s.adminOnly(s.deleteQuestion)))
	mux.Handle("POST /api/progress", s.authMiddleware(s.submitProgress))
	mux.Handle("GET /api/progress", s.authMiddleware(s.getProgress))
	mux.Handle("GET /api/progress/questions/{id}", s.authMiddleware(s.questionProgress))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("GET /api/admin/users", s.authMiddleware(s.adminOnly(s.listAccounts)))
	mux.Handle("GET /api/admin/users/{id}", s.authMiddleware(s.adminOnly(s.getAccount)))
	mux.Handle("PUT /api/admin/users/{id}/role", s.authMiddleware(s.adminOnly(s.updateAccountRole)))
	mux.Handle("GET /api/admin/stats", s.authMiddleware(s.adminOnly(s.adminStats)))
	mux.Handle("POST /api/admin/notify", s.authMiddleware(s.adminOnly(s.notify)))
	mux.HandleFunc("GET /healthz", s.healthCheck)
	// The upgrade endpoint authenticates via ?token=, not the cookie
	// middleware, so non-browser clients can connect.
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *CodePrepApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *CodePrepApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
