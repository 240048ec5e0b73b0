package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")

	// ErrNotFound is returned by Load when the key has never been saved.
	ErrNotFound = errors.New("key not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (one JSON document per key)
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Well-known keys. Out-of-band keys are allowed; these are the ones the
// application actually uses.
const (
	KeyServices = "services"
	KeyJobs     = "jobs"
	KeyContacts = "contacts"
)
