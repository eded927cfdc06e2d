package server

import (
	"log/slog"
	"net/http"

	"github.com/chorepet/chorepet/internal/chore"
	"github.com/chorepet/chorepet/internal/handler"
	"github.com/chorepet/chorepet/internal/middleware"
	ws "github.com/chorepet/chorepet/internal/websocket"
)

type Server struct {
	hub          *ws.Hub
	roommateH    *handler.RoommateHandler
	choreH       *handler.ChoreHandler
	demoH        *handler.DemoHandler
	backupH      *handler.BackupHandler
	loginLimiter *middleware.RateLimiter
	logger       *slog.Logger
}

// New wires the HTTP handlers around engine. backups may be nil, in which
// case the backup routes answer 503. loginLimiter may be nil to disable
// login throttling.
func New(engine *chore.Engine, hub *ws.Hub, backups handler.BackupService, loginLimiter *middleware.RateLimiter, logger *slog.Logger) *Server {
	return &Server{
		hub:          hub,
		roommateH:    handler.NewRoommateHandler(engine, hub, logger.With("component", "roommate")),
		choreH:       handler.NewChoreHandler(engine, hub, logger.With("component", "chore")),
		demoH:        handler.NewDemoHandler(engine, hub, logger.With("component", "demo")),
		backupH:      handler.NewBackupHandler(backups, hub, logger.With("component", "backup")),
		loginLimiter: loginLimiter,
		logger:       logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.healthHandler)
	mux.Handle("POST /api/login", s.rateLimited(http.HandlerFunc(s.roommateH.Login)))

	// Roommates
	mux.HandleFunc("GET /api/users", s.roommateH.List)
	mux.HandleFunc("POST /api/users", s.roommateH.Create)
	mux.HandleFunc("GET /api/users/{username}", s.roommateH.Get)
	mux.HandleFunc("PUT /api/users/{username}", s.roommateH.SetHealth)
	mux.HandleFunc("DELETE /api/users/{username}", s.roommateH.Delete)
	mux.HandleFunc("PATCH /api/users/{username}/health", s.roommateH.AdjustHealth)

	// Chores
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores/user/{username}", s.choreH.ListForRoommate)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("PATCH /api/chores/{id}/complete", s.choreH.Complete)
	mux.HandleFunc("PATCH /api/chores/{id}/reset", s.choreH.Reset)

	// Demo clock
	mux.HandleFunc("POST /api/demo/advance", s.demoH.Advance)
	mux.HandleFunc("POST /api/demo/reset", s.demoH.Reset)
	mux.HandleFunc("GET /api/demo/status", s.demoH.Status)

	// Backups
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("POST /api/backups", s.backupH.Run)
	mux.HandleFunc("POST /api/backups/restore", s.backupH.Restore)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

func (s *Server) rateLimited(h http.Handler) http.Handler {
	if s.loginLimiter == nil {
		return h
	}
	return middleware.RateLimit(s.loginLimiter)(h)
}
