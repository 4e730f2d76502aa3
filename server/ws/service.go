// Package ws is the realtime transport of the match core: one websocket
// session per client, carrying the framed JSON protocol to the matchmaking
// queue before a match and to the match room during one. Sessions enforce the
// per-connection rate limit and the join-first ordering; everything behind
// the join ack is owned by the room.
package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/velotype/velotype/server/auth"
	"github.com/velotype/velotype/server/match"
	"github.com/velotype/velotype/server/matchmaking"
	"github.com/velotype/velotype/server/wire"
)

var log = logrus.WithField("prefix", "ws")

// TokenVerifier authenticates session tokens presented in join frames.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// Config holds the session layer dependencies.
type Config struct {
	Auth        TokenVerifier
	Match       *match.Service
	Matchmaking *matchmaking.Service
	// AllowedOrigins gates browser upgrades, with the same entries and
	// wildcard rules as the HTTP CORS allow list. Empty admits everyone.
	AllowedOrigins []string
}

// Service upgrades websocket connections and tracks the open sessions.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *Config
	upgrader websocket.Upgrader

	lock     sync.Mutex
	sessions map[*session]struct{}
}

// NewService instantiates the session layer.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		sessions: make(map[*session]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: writeBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return s
}

// Start satisfies the runtime service contract; sessions spawn per upgrade.
func (s *Service) Start() {
}

// Stop closes every open session. In-flight matches are abandoned by their
// rooms; clients re-queue after reconnecting.
func (s *Service) Stop() error {
	s.cancel()
	s.lock.Lock()
	open := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		open = append(open, sess)
	}
	s.lock.Unlock()
	for _, sess := range open {
		sess.CloseWithCode(wire.CloseNormal, "server shutting down")
	}
	return nil
}

// Status always returns nil.
func (s *Service) Status() error {
	return nil
}

// Handler returns the websocket endpoint.
func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			log.WithError(err).Debug("Websocket upgrade rejected")
			return
		}
		sess := newSession(s, conn)
		s.register(sess)
		go sess.writePump()
		sess.Send(wire.MsgWelcome, &wire.Welcome{ServerTime: time.Now().UnixMilli()})
		sess.readPump()
	})
}

func (s *Service) register(sess *session) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sessions[sess] = struct{}{}
	openSessions.Set(float64(len(s.sessions)))
}

func (s *Service) unregister(sess *session) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.sessions, sess)
	openSessions.Set(float64(len(s.sessions)))
}

// originAllowed applies the CORS allow list to a websocket upgrade. Entries
// match case-insensitively; a single `*` inside an entry wildcards any run of
// characters, mirroring the HTTP layer's rules. Non-browser clients send no
// Origin header and are admitted.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	origin = strings.ToLower(origin)
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "*" || entry == origin {
			return true
		}
		if i := strings.Index(entry, "*"); i >= 0 {
			prefix, suffix := entry[:i], entry[i+1:]
			if len(origin) >= len(prefix)+len(suffix) &&
				strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
				return true
			}
		}
	}
	return false
}
