package auth

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/velotype/velotype/io/file"
)

// revocationStore is the revoked-token set: sha256 hex of the token mapped to
// its expiry. Entries die with the token they revoke, so the set stays small.
// Every mutation rewrites a pruned JSON snapshot so revocations survive
// restarts.
type revocationStore struct {
	lock  sync.Mutex
	cache *gocache.Cache
	path  string
}

func newRevocationStore(path string) (*revocationStore, error) {
	store := &revocationStore{
		cache: gocache.New(gocache.NoExpiration, 10*time.Minute),
		path:  path,
	}
	if path == "" || !file.FileExists(path) {
		return store, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]int64)
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errors.Wrap(err, "malformed revocation snapshot")
	}
	now := time.Now()
	for tokenHash, expiry := range snapshot {
		until := time.Unix(expiry, 0)
		if until.After(now) {
			store.cache.Set(tokenHash, expiry, time.Until(until))
		}
	}
	return store, nil
}

func (r *revocationStore) isRevoked(tokenHash string) bool {
	_, found := r.cache.Get(tokenHash)
	return found
}

func (r *revocationStore) revoke(tokenHash string, until time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if ttl := time.Until(until); ttl > 0 {
		r.cache.Set(tokenHash, until.Unix(), ttl)
	}
	return r.flushLocked()
}

// prune drops expired entries and rewrites the snapshot.
func (r *revocationStore) prune() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.flushLocked()
}

func (r *revocationStore) flushLocked() error {
	r.cache.DeleteExpired()
	if r.path == "" {
		return nil
	}
	items := r.cache.Items()
	snapshot := make(map[string]int64, len(items))
	for tokenHash, item := range items {
		expiry, ok := item.Object.(int64)
		if !ok {
			continue
		}
		snapshot[tokenHash] = expiry
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return file.WriteFile(r.path, data)
}
