// Package match runs live 1v1 match rooms. Each room owns its state on a
// single goroutine and advances rounds on a wall-clock schedule, so clients
// that know the schedule stay in sync without per-tick traffic.
package match

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/velotype/velotype/server/cache"
	"github.com/velotype/velotype/server/core/textgen"
	"github.com/velotype/velotype/server/db/iface"
	"github.com/velotype/velotype/server/types"
)

var log = logrus.WithField("prefix", "match")

// ErrUnknownMatch is returned on joins for matches with no live room.
var ErrUnknownMatch = errors.New("unknown match")

// ErrRoomExists is returned when a room id collides with a live room.
var ErrRoomExists = errors.New("match room already exists")

// ErrNotParticipant is returned on joins by users outside the match roster.
var ErrNotParticipant = errors.New("not in match")

// ServiceConfig holds the match service dependencies. Database may be nil;
// rooms then run fully in memory and skip persistence.
type ServiceConfig struct {
	Database iface.Database
	Texts    *cache.TextCache
}

// Service tracks the live match rooms of this node.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *ServiceConfig
	lock   sync.RWMutex
	rooms  map[string]*Room
}

// NewService instantiates the match room registry.
func NewService(ctx context.Context, cfg *ServiceConfig) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		rooms:  make(map[string]*Room),
	}
}

// Start satisfies the runtime service contract. Rooms are created on demand
// by the matchmaker, so there is nothing to spin up eagerly.
func (s *Service) Start() {
}

// Stop cancels every live room's scheduling loop.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always returns nil; a node without live rooms is healthy.
func (s *Service) Status() error {
	return nil
}

// CreateRoom spins up the room for a freshly paired match and starts its
// lobby clock.
func (s *Service) CreateRoom(cfg *Config) (*Room, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.rooms[cfg.MatchID]; ok {
		return nil, ErrRoomExists
	}
	room := newRoom(s, cfg)
	s.rooms[cfg.MatchID] = room
	matchesStartedTotal.Inc()
	activeRooms.Set(float64(len(s.rooms)))
	return room, nil
}

// Room returns the live room for a match id.
func (s *Service) Room(matchID string) (*Room, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	room, ok := s.rooms[matchID]
	return room, ok
}

// Join attaches a client connection to a live room. The roster is fixed at
// pairing time, so eligibility is checked synchronously here; the room guards
// again on its owner goroutine for callers that bypass the service.
func (s *Service) Join(matchID string, c Client) (*Room, error) {
	room, ok := s.Room(matchID)
	if !ok {
		return nil, ErrUnknownMatch
	}
	if room.cfg.player(c.UserID()) == nil {
		return nil, ErrNotParticipant
	}
	room.Join(c)
	return room, nil
}

func (s *Service) removeRoom(matchID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.rooms, matchID)
	activeRooms.Set(float64(len(s.rooms)))
}

func (s *Service) db() iface.Database {
	return s.cfg.Database
}

// roundText resolves the text for one round of a match, generating and
// caching it on first use. Both players and any recovery read see the same
// string for the same (seed, round).
func (s *Service) roundText(cfg *Config, round int) string {
	key := fmt.Sprintf("%s-%d", cfg.Seed, round)
	return s.cfg.Texts.GetOrGenerate(key, func() string {
		return textgen.ForRound(cfg.Seed, round, cfg.TextLength, textgen.ParseDifficulty(cfg.Difficulty), cfg.Punctuation)
	})
}

// markInProgress flips the persisted match row to in-progress once a room
// goes live. Best effort: a failure here costs a status transition, not the
// match.
func (s *Service) markInProgress(matchID string) {
	db := s.db()
	if db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, dbTimeout)
	defer cancel()
	record, err := db.Match(ctx, matchID)
	if err != nil {
		log.WithError(err).WithField("matchId", matchID).Debug("Could not load match for status update")
		return
	}
	record.Match.Status = types.MatchInProgress
	if err := db.RecordMatch(ctx, record); err != nil {
		log.WithError(err).WithField("matchId", matchID).Warn("Could not mark match in progress")
	}
}
