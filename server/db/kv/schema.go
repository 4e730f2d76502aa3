package kv

import (
	"encoding/binary"
)

// Bucket layout of the match core store. Account rows are keyed by user id
// with two unique indices (case-folded username, email lookup hash). The
// rating index keys big-endian rating bytes ahead of the user id so ladder
// reads are a single descending range scan. Match player rows and daily
// scores are keyed by composite prefixes for per-match and per-day scans.
var (
	usersBucket          = []byte("users")
	usernamesBucket      = []byte("usernames")
	emailsBucket         = []byte("emails")
	ratingsBucket        = []byte("ratings")
	ratingIndexBucket    = []byte("rating-index")
	matchesBucket        = []byte("matches")
	matchPlayersBucket   = []byte("match-players")
	userMatchIndexBucket = []byte("user-match-index")
	dailyScoresBucket    = []byte("daily-scores")
)

// keySep separates composite key segments. User and match ids are uuids and
// never contain it.
const keySep = ":"

func ratingIndexKey(rating int, userID string) []byte {
	key := make([]byte, 4+len(userID))
	binary.BigEndian.PutUint32(key, uint32(rating))
	copy(key[4:], userID)
	return key
}

func ratingFromIndexKey(key []byte) (int, string) {
	return int(binary.BigEndian.Uint32(key[:4])), string(key[4:])
}

func matchPlayerKey(matchID, userID string) []byte {
	return []byte(matchID + keySep + userID)
}

func matchPlayerPrefix(matchID string) []byte {
	return []byte(matchID + keySep)
}

// userMatchKey orders one user's matches by creation time. The match id is
// stored as the value, so the key is never parsed back.
func userMatchKey(userID string, createdUnixNano int64, matchID string) []byte {
	prefix := []byte(userID + keySep)
	key := make([]byte, len(prefix)+8+len(matchID))
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(createdUnixNano))
	copy(key[len(prefix)+8:], matchID)
	return key
}

func userMatchPrefix(userID string) []byte {
	return []byte(userID + keySep)
}

func dailyScoreKey(day, userID string) []byte {
	return []byte(day + keySep + userID)
}

func dailyScorePrefix(day string) []byte {
	return []byte(day + keySep)
}

// seekAfterPrefix returns a key sorting after every key carrying the prefix,
// for descending prefix scans.
func seekAfterPrefix(prefix []byte) []byte {
	after := make([]byte, len(prefix), len(prefix)+9)
	copy(after, prefix)
	return append(after, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
}
