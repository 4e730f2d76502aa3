// Package daily runs the daily typing challenge: one deterministic text per
// calendar day in the configured reset timezone, one scored attempt per
// account per day, and a day-scoped leaderboard. Metrics are recomputed
// server-side against the authoritative text; the client submission is never
// trusted beyond its raw keystrokes.
package daily

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/cache"
	"github.com/velotype/velotype/server/core/scoring"
	"github.com/velotype/velotype/server/core/textgen"
	"github.com/velotype/velotype/server/db/iface"
	"github.com/velotype/velotype/server/types"
)

var log = logrus.WithField("prefix", "daily")

// ErrNoDatabase is returned when the node runs without persistence; daily
// attempts cannot be recorded in memory only.
var ErrNoDatabase = errors.New("no database configured")

// dayFormat is the day key layout, YYYY-MM-DD in the reset timezone.
const dayFormat = "2006-01-02"

// standingsTTL bounds staleness of the cached leaderboard read path. A local
// submission invalidates the day's entry immediately.
const standingsTTL = 30 * time.Second

// ServiceConfig holds the daily challenge dependencies.
type ServiceConfig struct {
	Database iface.Database
	Texts    *cache.TextCache
	// Location is the reset timezone defining day boundaries. Nil means UTC.
	Location *time.Location
}

// Service scores daily-challenge attempts and serves the day's text and
// standings.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *ServiceConfig
	now    func() time.Time
	boards *gocache.Cache
}

// NewService instantiates the daily challenge service.
func NewService(ctx context.Context, cfg *ServiceConfig) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		now:    time.Now,
		boards: gocache.New(standingsTTL, 10*time.Minute),
	}
}

// Start satisfies the runtime service contract; all work is request-driven.
func (s *Service) Start() {
}

// Stop the service.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always returns nil.
func (s *Service) Status() error {
	return nil
}

// Day returns the current challenge day in the reset timezone.
func (s *Service) Day() string {
	return s.now().In(s.location()).Format(dayFormat)
}

// ParseDay validates a client-supplied day string, defaulting to the current
// day when empty.
func (s *Service) ParseDay(day string) (string, error) {
	if day == "" {
		return s.Day(), nil
	}
	if _, err := time.Parse(dayFormat, day); err != nil {
		return "", errors.New("malformed day")
	}
	return day, nil
}

// Challenge is the public description of one day's challenge.
type Challenge struct {
	Day  string `json:"day"`
	Seed string `json:"seed"`
	Text string `json:"text"`
}

// Challenge returns the current day's challenge with its authoritative text.
func (s *Service) Challenge() Challenge {
	day := s.Day()
	return Challenge{Day: day, Seed: s.seed(day), Text: s.text(day)}
}

// Submit scores one attempt against the current day's text and records it.
// A second attempt on the same day returns the gateway's duplicate error
// unchanged for the transport layer to translate.
func (s *Service) Submit(ctx context.Context, userID, username string, sub scoring.Submission) (*types.DailyScore, error) {
	if s.cfg.Database == nil {
		return nil, ErrNoDatabase
	}
	day := s.Day()
	m := scoring.Compute(s.text(day), sub, params.VeloTypeConfig().MaxCharsPerSecDaily)
	score := &types.DailyScore{
		UserID:       userID,
		Username:     username,
		Day:          day,
		Seed:         s.seed(day),
		Wpm:          m.Wpm,
		RawWpm:       m.RawWpm,
		Accuracy:     m.Accuracy,
		Consistency:  m.Consistency,
		Score:        m.Performance,
		CorrectChars: m.CorrectChars,
		TotalTyped:   m.TotalTyped,
		Errors:       m.Errors,
		Created:      s.now(),
	}
	if err := s.cfg.Database.SaveDailyScore(ctx, score); err != nil {
		return nil, err
	}
	s.boards.Delete(day)
	submissionsTotal.Inc()
	log.WithFields(logrus.Fields{
		"userId": userID,
		"day":    day,
		"wpm":    score.Wpm,
		"score":  score.Score,
	}).Debug("Daily attempt scored")
	return score, nil
}

// Standings returns the top attempts of a day, best score first, through a
// short-lived cache.
func (s *Service) Standings(ctx context.Context, day string) ([]*types.DailyScore, error) {
	if s.cfg.Database == nil {
		return nil, ErrNoDatabase
	}
	if cached, ok := s.boards.Get(day); ok {
		if scores, ok := cached.([]*types.DailyScore); ok {
			boardCacheHit.Inc()
			return scores, nil
		}
	}
	boardCacheMiss.Inc()
	scores, err := s.cfg.Database.DailyLeaderboard(ctx, day, params.VeloTypeConfig().DailyLeaderboardSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not load daily leaderboard")
	}
	s.boards.Set(day, scores, gocache.DefaultExpiration)
	return scores, nil
}

// Rank returns the caller's 1-based position for a day, or the gateway's
// not-found error when the user has not submitted.
func (s *Service) Rank(ctx context.Context, day, userID string) (int, error) {
	if s.cfg.Database == nil {
		return 0, ErrNoDatabase
	}
	return s.cfg.Database.DailyRank(ctx, day, userID)
}

func (s *Service) seed(day string) string {
	return params.VeloTypeConfig().DailySeedPrefix + day
}

// text resolves the day's authoritative text through the shared text cache.
func (s *Service) text(day string) string {
	c := params.VeloTypeConfig()
	seed := s.seed(day)
	return s.cfg.Texts.GetOrGenerate(seed, func() string {
		return textgen.Generate(seed, c.DailyTextLength, textgen.Medium, false)
	})
}

func (s *Service) location() *time.Location {
	if s.cfg.Location != nil {
		return s.cfg.Location
	}
	return time.UTC
}
