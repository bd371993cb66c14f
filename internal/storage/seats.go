package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// seatChunk bounds the number of placeholders in one IN (...) list.
const seatChunk = 500

// UpsertSeats records seats as the current count for flightKey. A write
// carrying an older timestamp than the stored row is ignored unless the
// stored row is still a placeholder.
func (s *Store) UpsertSeats(ctx context.Context, flightKey string, seats int, now time.Time) error {
	key := strings.TrimSpace(flightKey)
	if key == "" {
		return fmt.Errorf("%w: flight key is required", ErrInvalidInput)
	}
	if seats < 0 {
		return fmt.Errorf("%w: seats available must be a non-negative integer, got %d", ErrInvalidInput, seats)
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO flight_seats (flight_key, seats_available, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(flight_key) DO UPDATE SET
			seats_available = excluded.seats_available,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= flight_seats.updated_at OR flight_seats.seats_available IS NULL`),
		key, seats, now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upserting seats for %s: %w", key, err)
	}
	return nil
}

// SeedSeats inserts a placeholder row for every key that has none yet and
// returns how many rows were created. Existing rows are never touched. Each
// key is inserted on its own, so one failing key does not undo the others;
// per-key failures are returned joined alongside the count.
func (s *Store) SeedSeats(ctx context.Context, flightKeys []string, now time.Time) (int, error) {
	if len(flightKeys) == 0 {
		return 0, nil
	}
	stmt, err := s.db.PrepareContext(ctx, s.rebind(`
		INSERT INTO flight_seats (flight_key, seats_available, updated_at) VALUES (?, NULL, ?)
		ON CONFLICT(flight_key) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("preparing seed statement: %w", err)
	}
	defer stmt.Close()

	var errs []error
	inserted := 0
	ts := now.UnixMilli()
	for _, k := range flightKeys {
		if k == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := stmt.ExecContext(ctx, k, ts)
		if err != nil {
			errs = append(errs, fmt.Errorf("seeding %s: %w", k, err))
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, errors.Join(errs...)
}

// GetSeats returns the seat rows for the given keys. Keys without a row are
// absent from the map.
func (s *Store) GetSeats(ctx context.Context, flightKeys []string) (map[string]SeatRecord, error) {
	out := make(map[string]SeatRecord, len(flightKeys))
	for start := 0; start < len(flightKeys); start += seatChunk {
		end := min(start+seatChunk, len(flightKeys))
		if err := s.getSeatChunk(ctx, flightKeys[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) getSeatChunk(ctx context.Context, keys []string, out map[string]SeatRecord) error {
	placeholders := strings.Repeat(",?", len(keys)-1)
	query := `SELECT flight_key, seats_available, updated_at FROM flight_seats WHERE flight_key IN (?` + placeholders + `)`

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("reading seats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r SeatRecord
		var seats sql.NullInt64
		var updatedAt int64
		if err := rows.Scan(&r.FlightKey, &seats, &updatedAt); err != nil {
			return fmt.Errorf("scanning seat row: %w", err)
		}
		if seats.Valid {
			n := int(seats.Int64)
			r.SeatsAvailable = &n
		}
		r.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		out[r.FlightKey] = r
	}
	return rows.Err()
}

// GetSeat returns the seat row for one key.
func (s *Store) GetSeat(ctx context.Context, flightKey string) (SeatRecord, error) {
	m, err := s.GetSeats(ctx, []string{flightKey})
	if err != nil {
		return SeatRecord{}, err
	}
	r, ok := m[flightKey]
	if !ok {
		return SeatRecord{}, ErrNotFound
	}
	return r, nil
}

// DeleteSeats removes the seat row for flightKey.
func (s *Store) DeleteSeats(ctx context.Context, flightKey string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM flight_seats WHERE flight_key = ?`), flightKey)
	if err != nil {
		return fmt.Errorf("deleting seats for %s: %w", flightKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
