// Package testing allows other packages to instantiate a real database for
// their tests.
package testing

import (
	"testing"

	"github.com/velotype/velotype/server/db"
)

// SetupDB instantiates and returns a database backed by a key value store in
// a temporary directory, closed and cleared when the test finishes.
func SetupDB(t testing.TB) db.Database {
	s, err := db.NewDB(t.TempDir())
	if err != nil {
		t.Fatalf("could not open database: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}
		if err := s.ClearDB(); err != nil {
			t.Fatalf("failed to clear database: %v", err)
		}
	})
	return s
}
