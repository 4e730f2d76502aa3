package db

import (
	"github.com/pkg/errors"

	"github.com/velotype/velotype/server/db/kv"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = kv.ErrNotFound

// ErrDuplicateDailyScore is returned on a second daily submission for the
// same (user, day).
var ErrDuplicateDailyScore = kv.ErrDuplicateDailyScore

// ErrUsernameTaken is returned when the case-folded username index already
// holds another account.
var ErrUsernameTaken = kv.ErrUsernameTaken

// ErrEmailTaken is returned when the email lookup-hash index already holds
// another account.
var ErrEmailTaken = kv.ErrEmailTaken

// ErrUnavailable is returned by callers holding no database handle; the node
// runs without a storage service when no database path is configured.
var ErrUnavailable = errors.New("database unavailable")
