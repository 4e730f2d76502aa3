package db

import "github.com/velotype/velotype/server/db/iface"

// ReadOnlyDatabase exposes the gateway's read functions.
type ReadOnlyDatabase = iface.ReadOnlyDatabase

// Database is the full gateway interface. Prefer the read-only alias where
// write access is not needed.
type Database = iface.Database
