package kv

import (
	"context"
	"testing"
	"time"

	"github.com/velotype/velotype/server/types"
	"github.com/velotype/velotype/testing/assert"
	"github.com/velotype/velotype/testing/require"
)

func TestStore_SaveUser_RoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	user := &types.User{
		ID:           "user-1",
		Username:     "SwiftKeys",
		EmailHash:    "abc123",
		EmailCipher:  []byte("ciphertext"),
		PasswordHash: []byte("hash"),
		Created:      time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, db.SaveUser(ctx, user))

	got, err := db.User(ctx, "user-1")
	require.NoError(t, err)
	require.DeepEqual(t, user, got)

	got, err = db.UserByUsername(ctx, "swiftkeys")
	require.NoError(t, err, "Username lookup should be case-insensitive")
	assert.Equal(t, "SwiftKeys", got.Username, "Display form should be preserved")

	got, err = db.UserByEmailHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)
}

func TestStore_User_NotFound(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	_, err := db.User(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = db.UserByUsername(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = db.UserByEmailHash(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveUser_UsernameUniqueness(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveUser(ctx, &types.User{ID: "user-1", Username: "Racer"}))

	err := db.SaveUser(ctx, &types.User{ID: "user-2", Username: "racer"})
	require.ErrorIs(t, err, ErrUsernameTaken, "Case-folded duplicate should be rejected")

	// Re-saving the owner is not a conflict.
	require.NoError(t, db.SaveUser(ctx, &types.User{ID: "user-1", Username: "RACER"}))
}

func TestStore_SaveUser_EmailUniqueness(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveUser(ctx, &types.User{ID: "user-1", Username: "a", EmailHash: "h1"}))
	err := db.SaveUser(ctx, &types.User{ID: "user-2", Username: "b", EmailHash: "h1"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestStore_SaveUser_RenameFreesOldUsername(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveUser(ctx, &types.User{ID: "user-1", Username: "OldName"}))
	require.NoError(t, db.SaveUser(ctx, &types.User{ID: "user-1", Username: "NewName"}))

	_, err := db.UserByUsername(ctx, "oldname")
	require.ErrorIs(t, err, ErrNotFound, "Old username should be released")
	require.NoError(t, db.SaveUser(ctx, &types.User{ID: "user-2", Username: "OldName"}))
}

func TestStore_DeleteUser_Cascades(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	rating := 1500
	require.NoError(t, db.SaveUser(ctx, &types.User{ID: "user-1", Username: "Gone", EmailHash: "h1"}))
	require.NoError(t, db.SaveRating(ctx, &types.Rating{UserID: "user-1", Rating: &rating}))
	created := time.Unix(1700000000, 0).UTC()
	require.NoError(t, db.RecordMatch(ctx, &types.MatchRecord{
		Match: &types.Match{ID: "match-1", Status: types.MatchCompleted, Created: created},
		Players: []*types.MatchPlayer{
			{MatchID: "match-1", UserID: "user-1", Username: "Gone"},
			{MatchID: "match-1", UserID: "user-2", Username: "Stays"},
		},
	}))
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "user-1", Day: "2026-08-25", Score: 50}))

	require.NoError(t, db.DeleteUser(ctx, "user-1"))

	_, err := db.User(ctx, "user-1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = db.Rating(ctx, "user-1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = db.DailyScore(ctx, "2026-08-25", "user-1")
	require.ErrorIs(t, err, ErrNotFound)

	ladder, err := db.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, len(ladder), "Ladder index entry should be cascaded")

	matches, err := db.UserMatches(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, len(matches), "Match index should be cascaded")

	// The shared match row and the opponent's side survive.
	record, err := db.Match(ctx, "match-1")
	require.NoError(t, err)
	require.Equal(t, 1, len(record.Players))
	assert.Equal(t, "user-2", record.Players[0].UserID)

	opp, err := db.UserMatches(ctx, "user-2", 10)
	require.NoError(t, err)
	require.Equal(t, 1, len(opp), "Opponent keeps the match in their history")
}
