package kv

import (
	"context"
	"testing"
	"time"

	"github.com/velotype/velotype/server/types"
	"github.com/velotype/velotype/testing/assert"
	"github.com/velotype/velotype/testing/require"
)

func TestStore_SaveDailyScore_OneAttemptPerDay(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	score := &types.DailyScore{UserID: "user-1", Day: "2026-08-25", Score: 61.5, Wpm: 72}
	require.NoError(t, db.SaveDailyScore(ctx, score))

	err := db.SaveDailyScore(ctx, &types.DailyScore{UserID: "user-1", Day: "2026-08-25", Score: 99})
	require.ErrorIs(t, err, ErrDuplicateDailyScore)

	// The first attempt stands.
	got, err := db.DailyScore(ctx, "2026-08-25", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 61.5, got.Score)

	// A new day is a fresh attempt.
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "user-1", Day: "2026-08-26", Score: 70}))
}

func TestStore_DailyLeaderboard_OrderAndTies(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()
	day := "2026-08-25"
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "late-tie", Day: day, Score: 80, Created: base.Add(time.Hour)}))
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "top", Day: day, Score: 91, Created: base}))
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "early-tie", Day: day, Score: 80, Created: base}))
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "other-day", Day: "2026-08-24", Score: 99, Created: base}))

	board, err := db.DailyLeaderboard(ctx, day, 10)
	require.NoError(t, err)
	require.Equal(t, 3, len(board), "Other days must not leak in")
	assert.Equal(t, "top", board[0].UserID)
	assert.Equal(t, "early-tie", board[1].UserID, "Earlier submission wins the tie")
	assert.Equal(t, "late-tie", board[2].UserID)

	board, err = db.DailyLeaderboard(ctx, day, 1)
	require.NoError(t, err)
	require.Equal(t, 1, len(board))
}

func TestStore_UserDailyScores_AcrossDays(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "user-1", Day: "2026-08-25", Score: 61}))
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "user-1", Day: "2026-08-23", Score: 55}))
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "user-2", Day: "2026-08-25", Score: 70}))

	scores, err := db.UserDailyScores(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, len(scores))
	assert.Equal(t, "2026-08-23", scores[0].Day, "Oldest day first")
	assert.Equal(t, "2026-08-25", scores[1].Day)

	scores, err = db.UserDailyScores(ctx, "user-3")
	require.NoError(t, err)
	assert.Equal(t, 0, len(scores))
}

func TestStore_DailyRank(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	day := "2026-08-25"
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "first", Day: day, Score: 90}))
	require.NoError(t, db.SaveDailyScore(ctx, &types.DailyScore{UserID: "second", Day: day, Score: 75}))

	rank, err := db.DailyRank(ctx, day, "second")
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	_, err = db.DailyRank(ctx, day, "absent")
	require.ErrorIs(t, err, ErrNotFound)
}
