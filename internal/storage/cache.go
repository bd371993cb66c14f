package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LookupFlights returns the entry stored under key if it is younger than
// window at now. A missing or expired entry yields ErrNotFound. Expired
// entries are left in place.
func (s *Store) LookupFlights(ctx context.Context, key string, window time.Duration, now time.Time) (CacheEntry, error) {
	var data string
	var storedAt int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data, stored_at FROM flights WHERE key = ?`), key).Scan(&data, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return CacheEntry{}, fmt.Errorf("reading cache entry %s: %w", key, err)
	}

	e := CacheEntry{Key: key, Payload: []byte(data), StoredAt: time.UnixMilli(storedAt).UTC()}
	if !Fresh(e.StoredAt, window, now) {
		return CacheEntry{}, ErrNotFound
	}
	return e, nil
}

// StoreFlights writes payload under key, replacing any previous entry.
func (s *Store) StoreFlights(ctx context.Context, key string, payload []byte, now time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO flights (key, data, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, stored_at = excluded.stored_at`),
		key, string(payload), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

// PurgeFlights deletes cache entries stored before cutoff and returns how
// many were removed.
func (s *Store) PurgeFlights(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM flights WHERE stored_at < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	return res.RowsAffected()
}

// Fresh reports whether an entry stored at storedAt may still be served at
// now. An entry exactly window old is stale.
func Fresh(storedAt time.Time, window time.Duration, now time.Time) bool {
	return now.Sub(storedAt) < window
}
