// Package iface defines the persistence gateway interfaces of the match core.
// It exists as its own package to break circular dependencies between the
// db package and its consumers.
package iface

import (
	"context"
	"io"

	"github.com/velotype/velotype/server/types"
)

// ReadOnlyDatabase is the read surface of the gateway.
type ReadOnlyDatabase interface {
	// Account methods.
	User(ctx context.Context, userID string) (*types.User, error)
	UserByUsername(ctx context.Context, username string) (*types.User, error)
	UserByEmailHash(ctx context.Context, emailHash string) (*types.User, error)

	// Ladder methods.
	Rating(ctx context.Context, userID string) (*types.Rating, error)
	Leaderboard(ctx context.Context, limit int) ([]*types.Rating, error)
	CountRatingsAbove(ctx context.Context, rating int) (int, error)

	// Match methods.
	Match(ctx context.Context, matchID string) (*types.MatchRecord, error)
	UserMatches(ctx context.Context, userID string, limit int) ([]*types.MatchRecord, error)

	// Daily challenge methods.
	DailyScore(ctx context.Context, day, userID string) (*types.DailyScore, error)
	DailyLeaderboard(ctx context.Context, day string, limit int) ([]*types.DailyScore, error)
	DailyRank(ctx context.Context, day, userID string) (int, error)
	UserDailyScores(ctx context.Context, userID string) ([]*types.DailyScore, error)

	DatabasePath() string
}

// Database is the full gateway surface. Every mutation is one bolt
// transaction; SaveMatchOutcome composes the finalisation writes into a
// single transaction.
type Database interface {
	ReadOnlyDatabase
	io.Closer

	// Account methods.
	SaveUser(ctx context.Context, user *types.User) error
	DeleteUser(ctx context.Context, userID string) error

	// Ladder methods.
	SaveRating(ctx context.Context, rating *types.Rating) error
	ApplyRatings(ctx context.Context, ratings []*types.Rating) error
	IncrementPlacement(ctx context.Context, counts []types.PlacementCount) error
	UpdatePlacementMmr(ctx context.Context, userID string, initialRating int) error

	// Match methods.
	RecordMatch(ctx context.Context, record *types.MatchRecord) error
	SaveMatchOutcome(ctx context.Context, outcome *types.MatchOutcome) error

	// Daily challenge methods.
	SaveDailyScore(ctx context.Context, score *types.DailyScore) error

	ClearDB() error
}
