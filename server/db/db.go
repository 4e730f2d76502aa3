// Package db is the persistence gateway of the match core.
package db

import (
	"github.com/velotype/velotype/server/db/kv"
)

// NewDB initializes a new database at the given path.
func NewDB(dirPath string) (Database, error) {
	return kv.NewKVStore(dirPath)
}
