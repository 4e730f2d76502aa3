package kv

import (
	"bytes"
	"context"
	"sort"

	"github.com/velotype/velotype/server/types"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// SaveDailyScore persists one daily-challenge attempt. Exactly one attempt
// per (user, day) counts; replays return ErrDuplicateDailyScore.
func (s *Store) SaveDailyScore(ctx context.Context, score *types.DailyScore) error {
	ctx, span := trace.StartSpan(ctx, "gameDB.SaveDailyScore")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		daily := tx.Bucket(dailyScoresBucket)
		key := dailyScoreKey(score.Day, score.UserID)
		if daily.Get(key) != nil {
			return ErrDuplicateDailyScore
		}
		enc, err := encode(score)
		if err != nil {
			return err
		}
		return daily.Put(key, enc)
	})
}

// DailyScore retrieves one user's attempt for a day.
func (s *Store) DailyScore(ctx context.Context, day, userID string) (*types.DailyScore, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.DailyScore")
	defer span.End()
	score := &types.DailyScore{}
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(dailyScoresBucket).Get(dailyScoreKey(day, userID))
		if enc == nil {
			return ErrNotFound
		}
		return decode(enc, score)
	})
	if err != nil {
		return nil, err
	}
	return score, nil
}

// DailyLeaderboard returns up to limit attempts for a day in descending
// score order, earlier submissions winning ties.
func (s *Store) DailyLeaderboard(ctx context.Context, day string, limit int) ([]*types.DailyScore, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.DailyLeaderboard")
	defer span.End()
	scores, err := s.dailyScoresForDay(day)
	if err != nil {
		return nil, err
	}
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// DailyRank returns the 1-based leaderboard position of a user's attempt for
// a day, or ErrNotFound when the user has not submitted.
func (s *Store) DailyRank(ctx context.Context, day, userID string) (int, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.DailyRank")
	defer span.End()
	scores, err := s.dailyScoresForDay(day)
	if err != nil {
		return 0, err
	}
	for i, score := range scores {
		if score.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, ErrNotFound
}

// UserDailyScores returns every attempt of one user across days, oldest day
// first. Keys are day|userID, so this is a filtered full scan; it only backs
// the profile export, which is rare enough that no second index pays for
// itself.
func (s *Store) UserDailyScores(ctx context.Context, userID string) ([]*types.DailyScore, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.UserDailyScores")
	defer span.End()
	var scores []*types.DailyScore
	suffix := []byte(keySep + userID)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(dailyScoresBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !bytes.HasSuffix(k, suffix) {
				continue
			}
			score := &types.DailyScore{}
			if err := decode(v, score); err != nil {
				return err
			}
			scores = append(scores, score)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// dailyScoresForDay loads every attempt of a day sorted for the leaderboard.
// One day holds at most one row per active user, so sorting in memory stays
// cheap and saves a second index.
func (s *Store) dailyScoresForDay(day string) ([]*types.DailyScore, error) {
	var scores []*types.DailyScore
	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := dailyScorePrefix(day)
		c := tx.Bucket(dailyScoresBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			score := &types.DailyScore{}
			if err := decode(v, score); err != nil {
				return err
			}
			scores = append(scores, score)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Created.Before(scores[j].Created)
	})
	return scores, nil
}
