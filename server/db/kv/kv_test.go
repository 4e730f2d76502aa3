package kv

import (
	"testing"

	"github.com/velotype/velotype/testing/require"
)

func setupDB(t testing.TB) *Store {
	s, err := NewKVStore(t.TempDir())
	require.NoError(t, err, "Failed to instantiate DB")
	t.Cleanup(func() {
		require.NoError(t, s.Close(), "Failed to close database")
		require.NoError(t, s.ClearDB(), "Failed to clear database")
	})
	return s
}
