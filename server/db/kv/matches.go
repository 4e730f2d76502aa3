package kv

import (
	"bytes"
	"context"

	"github.com/velotype/velotype/server/types"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// Match retrieves a match row together with both player rows.
func (s *Store) Match(ctx context.Context, matchID string) (*types.MatchRecord, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.Match")
	defer span.End()
	var record *types.MatchRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		record, err = readMatchTx(tx, matchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func readMatchTx(tx *bolt.Tx, matchID string) (*types.MatchRecord, error) {
	enc := tx.Bucket(matchesBucket).Get([]byte(matchID))
	if enc == nil {
		return nil, ErrNotFound
	}
	match := &types.Match{}
	if err := decode(enc, match); err != nil {
		return nil, err
	}
	record := &types.MatchRecord{Match: match}
	prefix := matchPlayerPrefix(matchID)
	c := tx.Bucket(matchPlayersBucket).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		player := &types.MatchPlayer{}
		if err := decode(v, player); err != nil {
			return nil, err
		}
		record.Players = append(record.Players, player)
	}
	return record, nil
}

// UserMatches returns up to limit of the user's matches, newest first.
func (s *Store) UserMatches(ctx context.Context, userID string, limit int) ([]*types.MatchRecord, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.UserMatches")
	defer span.End()
	records := make([]*types.MatchRecord, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := userMatchPrefix(userID)
		c := tx.Bucket(userMatchIndexBucket).Cursor()
		k, v := c.Seek(seekAfterPrefix(prefix))
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		for ; k != nil && bytes.HasPrefix(k, prefix) && len(records) < limit; k, v = c.Prev() {
			record, err := readMatchTx(tx, string(v))
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// RecordMatch upserts a match row and its player rows in one transaction,
// maintaining each player's match index. Pairing writes the pending shell
// through this; finalisation rewrites the same rows with outcomes.
func (s *Store) RecordMatch(ctx context.Context, record *types.MatchRecord) error {
	ctx, span := trace.StartSpan(ctx, "gameDB.RecordMatch")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		return recordMatchTx(tx, record)
	})
}

func recordMatchTx(tx *bolt.Tx, record *types.MatchRecord) error {
	enc, err := encode(record.Match)
	if err != nil {
		return err
	}
	if err := tx.Bucket(matchesBucket).Put([]byte(record.Match.ID), enc); err != nil {
		return err
	}
	players := tx.Bucket(matchPlayersBucket)
	index := tx.Bucket(userMatchIndexBucket)
	for _, player := range record.Players {
		encPlayer, err := encode(player)
		if err != nil {
			return err
		}
		if err := players.Put(matchPlayerKey(record.Match.ID, player.UserID), encPlayer); err != nil {
			return err
		}
		key := userMatchKey(player.UserID, record.Match.Created.UnixNano(), record.Match.ID)
		if err := index.Put(key, []byte(record.Match.ID)); err != nil {
			return err
		}
	}
	return nil
}

// SaveMatchOutcome persists everything finalisation produced in a single
// transaction: the completed match and player rows, calibration counters,
// freshly seeded initial ratings, and the ranked ladder rows. A failure rolls
// the whole outcome back, so the ladder can never reflect a match that is not
// on record.
func (s *Store) SaveMatchOutcome(ctx context.Context, outcome *types.MatchOutcome) error {
	ctx, span := trace.StartSpan(ctx, "gameDB.SaveMatchOutcome")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := recordMatchTx(tx, outcome.Record); err != nil {
			return err
		}
		if err := incrementPlacementTx(tx, outcome.PlacementCounts); err != nil {
			return err
		}
		for _, seed := range outcome.PlacementSeeds {
			if err := updatePlacementMmrTx(tx, seed.UserID, seed.InitialRating); err != nil {
				return err
			}
		}
		for _, rating := range outcome.Ratings {
			if err := saveRatingTx(tx, rating); err != nil {
				return err
			}
		}
		return nil
	})
}
