package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist, and by
// cache lookups when the entry is older than the freshness window.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned when a write is rejected before touching the database.
var ErrInvalidInput = errors.New("invalid input")

// CacheEntry is a serialized batch of flight records stored under a cache key.
type CacheEntry struct {
	Key      string
	Payload  []byte
	StoredAt time.Time
}

// SeatRecord is the latest reported seat count for a flight. SeatsAvailable
// is nil for a placeholder row created when the flight was first seen.
type SeatRecord struct {
	FlightKey      string
	SeatsAvailable *int
	UpdatedAt      time.Time
}

// Placeholder reports whether nobody has reported a count yet.
func (r SeatRecord) Placeholder() bool {
	return r.SeatsAvailable == nil
}

// TableInfo is one user table and its row count.
type TableInfo struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}
