// Package rpc serves the JSON-over-HTTP surface of the match core: account
// registration and login, profile reads and edits, the rating and daily
// leaderboards, match history and the daily challenge. The websocket endpoint
// is mounted on the same server so one port carries the whole API.
//
// Handlers recompute nothing; they translate between HTTP and the owning
// services (auth, daily, the persistence gateway) and map their sentinel
// errors onto status codes.
package rpc

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/velotype/velotype/server/auth"
	"github.com/velotype/velotype/server/daily"
	"github.com/velotype/velotype/server/db/iface"
)

var log = logrus.WithField("prefix", "rpc")

// Config holds the collaborators and listen address of the HTTP service.
type Config struct {
	HTTPAddr       string
	AllowedOrigins []string
	Auth           *auth.Service
	Database       iface.Database
	Daily          *daily.Service
	WsHandler      http.Handler
}

// Service is the HTTP server wrapped as a registry service.
type Service struct {
	ctx          context.Context
	cancel       context.CancelFunc
	cfg          *Config
	router       *mux.Router
	handler      http.Handler
	server       *http.Server
	startFailure error
}

// NewService assembles the router and the underlying http.Server. Nothing
// listens until Start.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	s.handler = s.corsHandler(instrument(s.router))
	s.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: time.Second,
	}
	return s
}

func (s *Service) registerRoutes() {
	r := s.router
	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/profile", s.handleUpdateProfile).Methods(http.MethodPatch)
	r.HandleFunc("/profile", s.handleDeleteProfile).Methods(http.MethodDelete)
	r.HandleFunc("/profile/stats", s.handleProfileStats).Methods(http.MethodGet)
	r.HandleFunc("/profile/export", s.handleProfileExport).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/daily", s.handleDaily).Methods(http.MethodGet)
	r.HandleFunc("/daily/submit", s.handleDailySubmit).Methods(http.MethodPost)
	r.HandleFunc("/daily/leaderboard", s.handleDailyLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/matches", s.handleMatches).Methods(http.MethodGet)
	r.HandleFunc("/matches/{id}", s.handleMatch).Methods(http.MethodGet)
	if s.cfg.WsHandler != nil {
		r.Handle("/ws", s.cfg.WsHandler)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handleError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handleError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
}

func (s *Service) corsHandler(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowCredentials: true,
		MaxAge:           600,
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(h)
}

// Handler exposes the fully wrapped route tree. Tests drive it directly
// without a listener.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Start the HTTP server.
func (s *Service) Start() {
	go func() {
		log.WithField("address", s.cfg.HTTPAddr).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("Failed to start HTTP server")
			s.startFailure = err
		}
	}()
}

// Status returns the listen error, if starting the server failed.
func (s *Service) Status() error {
	if s.startFailure != nil {
		return s.startFailure
	}
	return nil
}

// Stop the HTTP server with a graceful shutdown.
func (s *Service) Stop() error {
	if s.server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(s.ctx, 2*time.Second)
		defer shutdownCancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warn("Existing connections terminated")
			} else {
				log.WithError(err).Error("Failed to gracefully shut down server")
			}
		}
	}
	s.cancel()
	return nil
}
