// Package matchmaking queues ranked players and pairs them by rating
// proximity. A periodic scan widens each waiter's acceptable rating gap with
// wait time, so sparse ladders still pair while busy ones pair tightly.
package matchmaking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/velotype/velotype/async"
	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/core/rating"
	veloDB "github.com/velotype/velotype/server/db"
	"github.com/velotype/velotype/server/db/iface"
	"github.com/velotype/velotype/server/match"
	"github.com/velotype/velotype/server/types"
	"github.com/velotype/velotype/server/wire"
)

var log = logrus.WithField("prefix", "matchmaking")

// historyScanLimit bounds the match-history read behind a provisional MMR.
const historyScanLimit = 20

// Conn is the transport-side handle of one queued player.
type Conn interface {
	UserID() string
	Username() string
	Send(msgType string, payload interface{})
}

type waiter struct {
	conn       Conn
	userID     string
	username   string
	rating     int  // queue MMR; provisional while unranked
	ranked     *int // nil while the player is still calibrating
	enqueuedAt time.Time
}

// ServiceConfig holds the matchmaker dependencies. Database may be nil;
// every waiter then queues on the base provisional rating.
type ServiceConfig struct {
	Database iface.Database
	Match    *match.Service
}

// Service runs the waiter queue and the pairing scan.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *ServiceConfig
	now    func() time.Time

	lock    sync.Mutex
	waiters map[string]*waiter
}

// NewService instantiates the matchmaker.
func NewService(ctx context.Context, cfg *ServiceConfig) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		now:     time.Now,
		waiters: make(map[string]*waiter),
	}
}

// Start launches the periodic pairing scan.
func (s *Service) Start() {
	interval := time.Duration(params.VeloTypeConfig().MatchScanIntervalSeconds) * time.Second
	async.RunEvery(s.ctx, interval, s.scan)
}

// Stop halts the pairing scan and drops all waiters.
func (s *Service) Stop() error {
	s.cancel()
	s.lock.Lock()
	defer s.lock.Unlock()
	s.waiters = make(map[string]*waiter)
	queueSize.Set(0)
	return nil
}

// Status always returns nil; an empty queue is healthy.
func (s *Service) Status() error {
	return nil
}

// Enqueue adds a player to the queue, replacing any previous entry for the
// same user, and acks with the queue rating in use.
func (s *Service) Enqueue(ctx context.Context, conn Conn) {
	queueRating, ranked := s.resolveRating(ctx, conn.UserID())
	w := &waiter{
		conn:       conn,
		userID:     conn.UserID(),
		username:   conn.Username(),
		rating:     queueRating,
		ranked:     ranked,
		enqueuedAt: s.now(),
	}
	s.lock.Lock()
	s.waiters[w.userID] = w
	queueSize.Set(float64(len(s.waiters)))
	s.lock.Unlock()

	conn.Send(wire.MsgQueued, &wire.Queued{EnqueuedAt: w.enqueuedAt.UnixMilli(), Rating: queueRating})
	log.WithFields(logrus.Fields{"userId": w.userID, "rating": queueRating}).Debug("Player queued")
}

// Dequeue drops a waiter when conn is still its registered transport. Leave
// frames and socket teardowns both land here; a stale socket of a re-queued
// user or an unknown user is a no-op.
func (s *Service) Dequeue(userID string, conn Conn) {
	s.lock.Lock()
	defer s.lock.Unlock()
	w, ok := s.waiters[userID]
	if !ok || w.conn != conn {
		return
	}
	delete(s.waiters, userID)
	queueSize.Set(float64(len(s.waiters)))
}

// resolveRating determines the queue MMR of a user: the main rating for
// ranked players, a history-blended provisional estimate for calibrating
// ones.
func (s *Service) resolveRating(ctx context.Context, userID string) (int, *int) {
	c := params.VeloTypeConfig()
	db := s.cfg.Database
	if db == nil {
		return c.BasePlacementRating, nil
	}
	row, err := db.Rating(ctx, userID)
	if err != nil && !errors.Is(err, veloDB.ErrNotFound) {
		log.WithError(err).WithField("userId", userID).Warn("Could not read ladder row, queueing on base rating")
		return c.BasePlacementRating, nil
	}
	if err == nil && row.Rating != nil {
		return *row.Rating, row.Rating
	}
	records, err := db.UserMatches(ctx, userID, historyScanLimit)
	if err != nil {
		log.WithError(err).WithField("userId", userID).Warn("Could not read match history, queueing on base rating")
		return c.BasePlacementRating, nil
	}
	return rating.ProvisionalRating(rating.QualifyingGames(records, userID, c.PlacementRequired)), nil
}

// scan pairs as many eligible waiters as possible. Among all eligible pairs
// the smallest rating gap wins; ties resolve by enqueue order then user id,
// which keeps the outcome deterministic for identical inputs.
func (s *Service) scan() {
	now := s.now()
	s.lock.Lock()
	var pairs [][2]*waiter
	for {
		a, b := s.bestPairLocked(now)
		if a == nil {
			break
		}
		delete(s.waiters, a.userID)
		delete(s.waiters, b.userID)
		pairs = append(pairs, [2]*waiter{a, b})
	}
	queueSize.Set(float64(len(s.waiters)))
	s.lock.Unlock()

	for _, p := range pairs {
		s.createMatch(p[0], p[1])
	}
}

func (s *Service) bestPairLocked(now time.Time) (*waiter, *waiter) {
	ordered := make([]*waiter, 0, len(s.waiters))
	for _, w := range s.waiters {
		ordered = append(ordered, w)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].enqueuedAt.Equal(ordered[j].enqueuedAt) {
			return ordered[i].enqueuedAt.Before(ordered[j].enqueuedAt)
		}
		return ordered[i].userID < ordered[j].userID
	})

	var bestA, bestB *waiter
	bestGap := -1
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			a, b := ordered[i], ordered[j]
			gap := a.rating - b.rating
			if gap < 0 {
				gap = -gap
			}
			window := s.windowOf(a, now)
			if wb := s.windowOf(b, now); wb < window {
				window = wb
			}
			if gap > window {
				continue
			}
			if bestGap < 0 || gap < bestGap {
				bestA, bestB, bestGap = a, b, gap
			}
		}
	}
	return bestA, bestB
}

// windowOf is the acceptable rating gap of one waiter, growing with wait
// time up to a hard cap.
func (s *Service) windowOf(w *waiter, now time.Time) int {
	c := params.VeloTypeConfig()
	waited := int(now.Sub(w.enqueuedAt).Seconds())
	if waited < 0 {
		waited = 0
	}
	window := c.MatchWindowBase + c.MatchWindowGrowthPerSec*waited
	if window > c.MatchWindowMax {
		window = c.MatchWindowMax
	}
	return window
}

// createMatch provisions everything a fresh pairing needs: the match plan,
// the pending rows, the live room, and the announcement to both sides.
func (s *Service) createMatch(a, b *waiter) {
	players := [2]match.PlayerInfo{
		{UserID: a.userID, Username: a.username, Rating: a.ranked},
		{UserID: b.userID, Username: b.username, Rating: b.ranked},
	}
	cfg := match.NewConfig(uuid.New().String(), uuid.New().String(), players, s.now())

	if db := s.cfg.Database; db != nil {
		if err := s.recordPending(cfg); err != nil {
			// The match still runs; finalisation writes the full record.
			log.WithError(err).WithField("matchId", cfg.MatchID).Warn("Could not persist pending match")
		}
	}
	if _, err := s.cfg.Match.CreateRoom(cfg); err != nil {
		log.WithError(err).WithField("matchId", cfg.MatchID).Error("Could not create match room")
		return
	}

	frame := cfg.MatchFound()
	a.conn.Send(wire.MsgMatchFound, frame)
	b.conn.Send(wire.MsgMatchFound, frame)
	pairsTotal.Inc()
	log.WithFields(logrus.Fields{
		"matchId": cfg.MatchID,
		"userA":   a.userID,
		"userB":   b.userID,
		"gap":     abs(a.rating - b.rating),
	}).Info("Players paired")
}

// recordPending writes the pending match row and two player shells.
func (s *Service) recordPending(cfg *match.Config) error {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	record := &types.MatchRecord{
		Match: &types.Match{
			ID:               cfg.MatchID,
			Seed:             cfg.Seed,
			Mode:             cfg.Mode,
			Status:           types.MatchPending,
			RoundTimeSeconds: cfg.RoundTimeSeconds,
			Created:          cfg.CreatedAt,
		},
	}
	for _, p := range cfg.Players {
		record.Players = append(record.Players, &types.MatchPlayer{
			MatchID:  cfg.MatchID,
			UserID:   p.UserID,
			Username: p.Username,
		})
	}
	return s.cfg.Database.RecordMatch(ctx, record)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
