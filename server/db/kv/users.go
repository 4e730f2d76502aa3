package kv

import (
	"bytes"
	"context"
	"strings"

	"github.com/velotype/velotype/server/types"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// foldUsername normalizes a username for the uniqueness index. Lookups and
// uniqueness are case-insensitive; the display form is kept on the row.
func foldUsername(username string) []byte {
	return []byte(strings.ToLower(username))
}

// User retrieves an account row by id.
func (s *Store) User(ctx context.Context, userID string) (*types.User, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.User")
	defer span.End()
	user := &types.User{}
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(usersBucket).Get([]byte(userID))
		if enc == nil {
			return ErrNotFound
		}
		return decode(enc, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UserByUsername retrieves an account row through the case-folded username
// index.
func (s *Store) UserByUsername(ctx context.Context, username string) (*types.User, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.UserByUsername")
	defer span.End()
	user := &types.User{}
	err := s.db.View(func(tx *bolt.Tx) error {
		userID := tx.Bucket(usernamesBucket).Get(foldUsername(username))
		if userID == nil {
			return ErrNotFound
		}
		enc := tx.Bucket(usersBucket).Get(userID)
		if enc == nil {
			return ErrNotFound
		}
		return decode(enc, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UserByEmailHash retrieves an account row through the email lookup-hash
// index.
func (s *Store) UserByEmailHash(ctx context.Context, emailHash string) (*types.User, error) {
	ctx, span := trace.StartSpan(ctx, "gameDB.UserByEmailHash")
	defer span.End()
	user := &types.User{}
	err := s.db.View(func(tx *bolt.Tx) error {
		userID := tx.Bucket(emailsBucket).Get([]byte(emailHash))
		if userID == nil {
			return ErrNotFound
		}
		enc := tx.Bucket(usersBucket).Get(userID)
		if enc == nil {
			return ErrNotFound
		}
		return decode(enc, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SaveUser upserts an account row and keeps the username and email indices
// in sync. Uniqueness violations surface as ErrUsernameTaken or
// ErrEmailTaken and leave the store untouched.
func (s *Store) SaveUser(ctx context.Context, user *types.User) error {
	ctx, span := trace.StartSpan(ctx, "gameDB.SaveUser")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		return saveUserTx(tx, user)
	})
}

func saveUserTx(tx *bolt.Tx, user *types.User) error {
	users := tx.Bucket(usersBucket)
	usernames := tx.Bucket(usernamesBucket)
	emails := tx.Bucket(emailsBucket)
	id := []byte(user.ID)

	folded := foldUsername(user.Username)
	if owner := usernames.Get(folded); owner != nil && !bytes.Equal(owner, id) {
		return ErrUsernameTaken
	}
	if user.EmailHash != "" {
		if owner := emails.Get([]byte(user.EmailHash)); owner != nil && !bytes.Equal(owner, id) {
			return ErrEmailTaken
		}
	}

	// Drop stale index entries when the username or email changed.
	if enc := users.Get(id); enc != nil {
		prev := &types.User{}
		if err := decode(enc, prev); err != nil {
			return err
		}
		if prevFolded := foldUsername(prev.Username); !bytes.Equal(prevFolded, folded) {
			if err := usernames.Delete(prevFolded); err != nil {
				return err
			}
		}
		if prev.EmailHash != "" && prev.EmailHash != user.EmailHash {
			if err := emails.Delete([]byte(prev.EmailHash)); err != nil {
				return err
			}
		}
	}

	enc, err := encode(user)
	if err != nil {
		return err
	}
	if err := users.Put(id, enc); err != nil {
		return err
	}
	if err := usernames.Put(folded, id); err != nil {
		return err
	}
	if user.EmailHash != "" {
		if err := emails.Put([]byte(user.EmailHash), id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteUser erases an account and cascades over everything keyed to it: the
// username and email indices, the rating row and its ladder index entry, the
// user's own match-player rows and match index, and all daily scores. The
// shared match rows and the opponents' player rows stay.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	ctx, span := trace.StartSpan(ctx, "gameDB.DeleteUser")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(usersBucket)
		id := []byte(userID)
		enc := users.Get(id)
		if enc == nil {
			return ErrNotFound
		}
		user := &types.User{}
		if err := decode(enc, user); err != nil {
			return err
		}
		if err := users.Delete(id); err != nil {
			return err
		}
		if err := tx.Bucket(usernamesBucket).Delete(foldUsername(user.Username)); err != nil {
			return err
		}
		if user.EmailHash != "" {
			if err := tx.Bucket(emailsBucket).Delete([]byte(user.EmailHash)); err != nil {
				return err
			}
		}
		if err := deleteRatingTx(tx, userID); err != nil {
			return err
		}
		if err := deleteUserMatchRowsTx(tx, userID); err != nil {
			return err
		}
		return deleteUserDailyScoresTx(tx, userID)
	})
}

func deleteUserMatchRowsTx(tx *bolt.Tx, userID string) error {
	index := tx.Bucket(userMatchIndexBucket)
	players := tx.Bucket(matchPlayersBucket)
	prefix := userMatchPrefix(userID)
	c := index.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := players.Delete(matchPlayerKey(string(v), userID)); err != nil {
			return err
		}
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

func deleteUserDailyScoresTx(tx *bolt.Tx, userID string) error {
	daily := tx.Bucket(dailyScoresBucket)
	suffix := []byte(keySep + userID)
	c := daily.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if !bytes.HasSuffix(k, suffix) {
			continue
		}
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}
