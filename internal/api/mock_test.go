package api

import (
	"context"
	"sync"
	"time"

	"github.com/kalambet/nonrev/internal/flight"
	"github.com/kalambet/nonrev/internal/pipeline"
	"github.com/kalambet/nonrev/internal/storage"
)

// --- mocks ---

type mockSearcher struct {
	mu sync.Mutex

	searchFn     func(req pipeline.SearchRequest) (pipeline.Result, error)
	departuresFn func(origin, date string) (pipeline.Result, error)
	lookupFn     func(flightNumber, date string) (pipeline.Result, error)
	recordFn     func(flightKey string, seats int) error

	recorded []seatsRequest
}

func (m *mockSearcher) Search(_ context.Context, req pipeline.SearchRequest) (pipeline.Result, error) {
	if m.searchFn != nil {
		return m.searchFn(req)
	}
	return pipeline.Result{Flights: []flight.Enriched{}, Source: pipeline.SourceAPI}, nil
}

func (m *mockSearcher) Departures(_ context.Context, origin, date string) (pipeline.Result, error) {
	if m.departuresFn != nil {
		return m.departuresFn(origin, date)
	}
	return pipeline.Result{Flights: []flight.Enriched{}, Source: pipeline.SourceAPI}, nil
}

func (m *mockSearcher) LookupFlight(_ context.Context, flightNumber, date string) (pipeline.Result, error) {
	if m.lookupFn != nil {
		return m.lookupFn(flightNumber, date)
	}
	return pipeline.Result{Flights: []flight.Enriched{}, Source: pipeline.SourceAPI}, nil
}

func (m *mockSearcher) RecordSeats(_ context.Context, flightKey string, seats int) error {
	m.mu.Lock()
	m.recorded = append(m.recorded, seatsRequest{FlightKey: flightKey, Seats: seats})
	m.mu.Unlock()
	if m.recordFn != nil {
		return m.recordFn(flightKey, seats)
	}
	return nil
}

type mockSeatReader struct {
	rows map[string]storage.SeatRecord
}

func (m *mockSeatReader) GetSeat(_ context.Context, key string) (storage.SeatRecord, error) {
	r, ok := m.rows[key]
	if !ok {
		return storage.SeatRecord{}, storage.ErrNotFound
	}
	return r, nil
}

func (m *mockSeatReader) DeleteSeats(_ context.Context, key string) error {
	if _, ok := m.rows[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.rows, key)
	return nil
}

type mockTables struct {
	tables []storage.TableInfo
	err    error
}

func (m *mockTables) Tables(context.Context) ([]storage.TableInfo, error) {
	return m.tables, m.err
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }
