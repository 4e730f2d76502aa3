// Package kv defines a persistent backend for the match core implemented
// on top of BoltDB.
package kv

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	prombolt "github.com/prysmaticlabs/prombbolt"
	bolt "go.etcd.io/bbolt"
)

const (
	// DatabaseFileName is the name of the game database file.
	DatabaseFileName = "velotype.db"
	boltAllocSize    = 8 * 1024 * 1024
	dbFilePerms      = 0600
	dbDirPerms       = 0700
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateDailyScore is returned on a second daily submission for
	// the same (user, day).
	ErrDuplicateDailyScore = errors.New("daily score already submitted")
	// ErrUsernameTaken is returned when the case-folded username index
	// already holds another account.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken is returned when the email lookup-hash index already
	// holds another account.
	ErrEmailTaken = errors.New("email already registered")
)

// Store defines an implementation of the match core Database interface
// backed by BoltDB.
type Store struct {
	db           *bolt.DB
	databasePath string
}

// NewKVStore initializes a new boltDB key-value store at the directory
// path specified, creates the kv-buckets based on the schema, and stores
// an open connection db object as a property of the Store struct.
func NewKVStore(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, dbDirPerms); err != nil {
		return nil, err
	}
	datafile := filepath.Join(dirPath, DatabaseFileName)
	boltDB, err := bolt.Open(datafile, dbFilePerms, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}
	boltDB.AllocSize = boltAllocSize

	kv := &Store{db: boltDB, databasePath: dirPath}
	if err := kv.db.Update(func(tx *bolt.Tx) error {
		return createBuckets(
			tx,
			usersBucket,
			usernamesBucket,
			emailsBucket,
			ratingsBucket,
			ratingIndexBucket,
			matchesBucket,
			matchPlayersBucket,
			userMatchIndexBucket,
			dailyScoresBucket,
		)
	}); err != nil {
		return nil, err
	}
	err = prometheus.Register(createBoltCollector(kv.db))
	return kv, err
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}

// ClearDB removes the database file from the filesystem.
func (s *Store) ClearDB() error {
	if _, err := os.Stat(s.databasePath); os.IsNotExist(err) {
		return nil
	}
	prometheus.Unregister(createBoltCollector(s.db))
	return os.Remove(filepath.Join(s.databasePath, DatabaseFileName))
}

// Close closes the underlying boltdb database.
func (s *Store) Close() error {
	prometheus.Unregister(createBoltCollector(s.db))
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// createBoltCollector returns a prometheus collector specifically configured
// for boltdb.
func createBoltCollector(db *bolt.DB) prometheus.Collector {
	return prombolt.New("boltDB", db)
}
