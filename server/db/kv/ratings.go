package kv

import (
	"context"

	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/types"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// Rating retrieves the ladder row of a user.
func (s *Store) Rating(ctx context.Context, userID string) (*types.Rating, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.Rating")
	defer span.End()
	rating := &types.Rating{}
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(ratingsBucket).Get([]byte(userID))
		if enc == nil {
			return ErrNotFound
		}
		return decode(enc, rating)
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}

// SaveRating upserts one ladder row and keeps the rating index in sync.
func (s *Store) SaveRating(ctx context.Context, rating *types.Rating) error {
	ctx, span := trace.StartSpan(ctx, "gameDB.SaveRating")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		return saveRatingTx(tx, rating)
	})
}

// ApplyRatings upserts a batch of ladder rows in one transaction.
func (s *Store) ApplyRatings(ctx context.Context, ratings []*types.Rating) error {
	ctx, span := trace.StartSpan(ctx, "gameDB.ApplyRatings")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, rating := range ratings {
			if err := saveRatingTx(tx, rating); err != nil {
				return err
			}
		}
		return nil
	})
}

// saveRatingTx writes one ladder row. The store never holds a competitive
// rating below the Apex threshold: the row is sanitized before the write so
// a demoted or unranked player cannot keep a stale leaderboard slot.
func saveRatingTx(tx *bolt.Tx, rating *types.Rating) error {
	row := *rating
	if row.Rating == nil || *row.Rating < params.VeloTypeConfig().ApexThreshold {
		row.CompetitiveRating = nil
	}

	ratings := tx.Bucket(ratingsBucket)
	index := tx.Bucket(ratingIndexBucket)
	id := []byte(row.UserID)

	if enc := ratings.Get(id); enc != nil {
		prev := &types.Rating{}
		if err := decode(enc, prev); err != nil {
			return err
		}
		if prev.Rating != nil {
			if err := index.Delete(ratingIndexKey(*prev.Rating, row.UserID)); err != nil {
				return err
			}
		}
	}

	enc, err := encode(&row)
	if err != nil {
		return err
	}
	if err := ratings.Put(id, enc); err != nil {
		return err
	}
	if row.Rating != nil {
		if err := index.Put(ratingIndexKey(*row.Rating, row.UserID), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

// deleteRatingTx removes a ladder row and its index entry.
func deleteRatingTx(tx *bolt.Tx, userID string) error {
	ratings := tx.Bucket(ratingsBucket)
	id := []byte(userID)
	enc := ratings.Get(id)
	if enc == nil {
		return nil
	}
	rating := &types.Rating{}
	if err := decode(enc, rating); err != nil {
		return err
	}
	if rating.Rating != nil {
		if err := tx.Bucket(ratingIndexBucket).Delete(ratingIndexKey(*rating.Rating, userID)); err != nil {
			return err
		}
	}
	return ratings.Delete(id)
}

// IncrementPlacement writes the new calibration counters of a batch of
// players, creating ladder rows for first-time players.
func (s *Store) IncrementPlacement(ctx context.Context, counts []types.PlacementCount) error {
	ctx, span := trace.StartSpan(ctx, "gameDB.IncrementPlacement")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		return incrementPlacementTx(tx, counts)
	})
}

func incrementPlacementTx(tx *bolt.Tx, counts []types.PlacementCount) error {
	for _, count := range counts {
		rating, err := ratingOrEmptyTx(tx, count.UserID)
		if err != nil {
			return err
		}
		rating.PlacementGamesPlayed = count.Games
		if err := saveRatingTx(tx, rating); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePlacementMmr stamps the freshly calculated initial rating onto a
// player finishing calibration.
func (s *Store) UpdatePlacementMmr(ctx context.Context, userID string, initialRating int) error {
	ctx, span := trace.StartSpan(ctx, "gameDB.UpdatePlacementMmr")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		return updatePlacementMmrTx(tx, userID, initialRating)
	})
}

func updatePlacementMmrTx(tx *bolt.Tx, userID string, initialRating int) error {
	rating, err := ratingOrEmptyTx(tx, userID)
	if err != nil {
		return err
	}
	rating.Rating = &initialRating
	return saveRatingTx(tx, rating)
}

func ratingOrEmptyTx(tx *bolt.Tx, userID string) (*types.Rating, error) {
	rating := &types.Rating{UserID: userID}
	if enc := tx.Bucket(ratingsBucket).Get([]byte(userID)); enc != nil {
		if err := decode(enc, rating); err != nil {
			return nil, err
		}
	}
	return rating, nil
}

// Leaderboard returns up to limit rated players in descending rating order.
// Ties are broken by user id; unrated players carry no index entry and never
// appear.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]*types.Rating, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.Leaderboard")
	defer span.End()
	rows := make([]*types.Rating, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		ratings := tx.Bucket(ratingsBucket)
		c := tx.Bucket(ratingIndexBucket).Cursor()
		for k, _ := c.Last(); k != nil && len(rows) < limit; k, _ = c.Prev() {
			_, userID := ratingFromIndexKey(k)
			enc := ratings.Get([]byte(userID))
			if enc == nil {
				continue
			}
			row := &types.Rating{}
			if err := decode(enc, row); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountRatingsAbove returns how many rated players sit strictly above the
// given rating. Ladder position is this count plus one.
func (s *Store) CountRatingsAbove(ctx context.Context, rating int) (int, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.CountRatingsAbove")
	defer span.End()
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(ratingIndexBucket).Cursor()
		for k, _ := c.Seek(ratingIndexKey(rating+1, "")); k != nil; k, _ = c.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
