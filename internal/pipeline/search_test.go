package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kalambet/nonrev/internal/aviationstack"
	"github.com/kalambet/nonrev/internal/events"
	"github.com/kalambet/nonrev/internal/flight"
	"github.com/kalambet/nonrev/internal/metrics"
	"github.com/kalambet/nonrev/internal/storage"
)

var testNow = time.Date(2025, 4, 14, 18, 0, 0, 0, time.UTC)

// --- fakes ---

type fakeSource struct {
	mu        sync.Mutex
	queries   []aviationstack.Query
	flightsFn func(q aviationstack.Query) (aviationstack.Page, error)
}

func (f *fakeSource) Flights(ctx context.Context, q aviationstack.Query) (aviationstack.Page, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.flightsFn(q)
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// staticSource serves a fixed record list, sliced by offset and limit.
func staticSource(total int, records ...flight.Record) *fakeSource {
	return &fakeSource{flightsFn: func(q aviationstack.Query) (aviationstack.Page, error) {
		start := min(q.Offset, len(records))
		end := min(start+q.Limit, len(records))
		page := records[start:end]
		return aviationstack.Page{Records: page, Count: len(page), Total: total, Offset: q.Offset}, nil
	}}
}

type faultyCache struct {
	FlightCache
	lookupErr error
	storeErr  error
}

func (c *faultyCache) LookupFlights(ctx context.Context, key string, window time.Duration, now time.Time) (storage.CacheEntry, error) {
	if c.lookupErr != nil {
		return storage.CacheEntry{}, c.lookupErr
	}
	return c.FlightCache.LookupFlights(ctx, key, window, now)
}

func (c *faultyCache) StoreFlights(ctx context.Context, key string, payload []byte, now time.Time) error {
	if c.storeErr != nil {
		return c.storeErr
	}
	return c.FlightCache.StoreFlights(ctx, key, payload, now)
}

type faultySeats struct {
	SeatStore
	seedErr error
	seeded  int
	getErr  error
}

func (s *faultySeats) SeedSeats(ctx context.Context, keys []string, now time.Time) (int, error) {
	if s.seedErr != nil {
		return s.seeded, s.seedErr
	}
	return s.SeatStore.SeedSeats(ctx, keys, now)
}

func (s *faultySeats) GetSeats(ctx context.Context, keys []string) (map[string]storage.SeatRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.SeatStore.GetSeats(ctx, keys)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SeatUpdate
	err    error
}

func (p *recordingPublisher) PublishSeatUpdate(ctx context.Context, ev events.SeatUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// --- helpers ---

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestSearcher(t *testing.T, store *storage.Store, src FlightSource, opts Options) *Searcher {
	t.Helper()
	return NewSearcher(Deps{
		Cache:  store,
		Seats:  store,
		Source: src,
		Now:    func() time.Time { return testNow },
	}, opts)
}

func jfkLax(number, airline, dep string) flight.Record {
	return flight.Record{
		FlightNumber:       number,
		AirlineName:        airline,
		DepartureAirport:   "JFK",
		ArrivalAirport:     "LAX",
		FlightDate:         "2025-04-15",
		ScheduledDeparture: dep,
		Status:             flight.StatusScheduled,
	}
}

func flightNumbers(fs []flight.Enriched) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.FlightNumber
	}
	return out
}

var jfkLaxReq = SearchRequest{Origin: "JFK", Destination: "LAX", Date: "2025-04-15"}

// --- tests ---

func TestSearch_Scenario(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.UpsertSeats(ctx, "JFK_LAX_2025-04-15_DL123", 4, testNow.Add(-time.Hour)); err != nil {
		t.Fatalf("UpsertSeats: %v", err)
	}

	src := staticSource(3,
		jfkLax("DL123", "Delta Air Lines", "2025-04-15T08:00:00+00:00"),
		jfkLax("UA456", "United Airlines", "2025-04-15T07:00:00+00:00"),
		jfkLax("DL123", "Delta Air Lines", "2025-04-15T08:05:00+00:00"),
	)
	s := newTestSearcher(t, store, src, Options{})

	res, err := s.Search(ctx, jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Source != SourceAPI {
		t.Errorf("Source = %q, want api", res.Source)
	}
	if got := flightNumbers(res.Flights); len(got) != 2 || got[0] != "UA456" || got[1] != "DL123" {
		t.Fatalf("flights = %v, want [UA456 DL123]", got)
	}

	ua, dl := res.Flights[0], res.Flights[1]
	if dl.SeatsAvailable == nil || *dl.SeatsAvailable != 4 {
		t.Errorf("DL123 seats = %v, want 4", dl.SeatsAvailable)
	}
	if dl.SeatsUpdatedAt == nil {
		t.Error("DL123 seats_updated_at should be set")
	}
	if dl.ScheduledDeparture != "2025-04-15T08:00:00+00:00" {
		t.Errorf("first DL123 occurrence should win, got %q", dl.ScheduledDeparture)
	}
	if ua.SeatsAvailable != nil || ua.SeatsUpdatedAt != nil {
		t.Errorf("UA456 seats = %v/%v, want nil/nil", ua.SeatsAvailable, ua.SeatsUpdatedAt)
	}
	if ua.FlightKey != "JFK_LAX_2025-04-15_UA456" {
		t.Errorf("FlightKey = %q", ua.FlightKey)
	}

	entry, err := store.LookupFlights(ctx, "route:JFKLAX_2025-04-15", 24*time.Hour, testNow)
	if err != nil {
		t.Fatalf("cache entry missing: %v", err)
	}
	if len(entry.Payload) == 0 {
		t.Error("cache payload empty")
	}

	// UA456 got a placeholder, not a fabricated count.
	row, err := store.GetSeat(ctx, "JFK_LAX_2025-04-15_UA456")
	if err != nil {
		t.Fatalf("placeholder missing: %v", err)
	}
	if !row.Placeholder() {
		t.Errorf("placeholder should have no seat count, got %v", *row.SeatsAvailable)
	}

	// Second search is served from the cache.
	res2, err := s.Search(ctx, jfkLaxReq)
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if res2.Source != SourceCache {
		t.Errorf("second Source = %q, want cache", res2.Source)
	}
	if src.calls() != 1 {
		t.Errorf("upstream calls = %d, want 1", src.calls())
	}
	if got := flightNumbers(res2.Flights); len(got) != 2 || got[0] != "UA456" {
		t.Errorf("cached flights = %v", got)
	}
}

func TestSearch_StaleCacheRefetches(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.StoreFlights(ctx, "route:JFKLAX_2025-04-15", []byte(`[]`), testNow.Add(-24*time.Hour)); err != nil {
		t.Fatalf("StoreFlights: %v", err)
	}

	src := staticSource(1, jfkLax("DL1", "Delta Air Lines", "2025-04-15T08:00:00Z"))
	s := newTestSearcher(t, store, src, Options{})

	res, err := s.Search(ctx, jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Source != SourceAPI || len(res.Flights) != 1 {
		t.Errorf("Source = %q, flights = %d; want api, 1", res.Source, len(res.Flights))
	}
}

func TestSearch_PaginationShortPage(t *testing.T) {
	store := openStore(t)
	var records []flight.Record
	for _, n := range []string{"AA1", "AA2", "AA3", "AA4", "AA5"} {
		records = append(records, jfkLax(n, "American Airlines", ""))
	}
	src := staticSource(1000, records...)
	s := newTestSearcher(t, store, src, Options{PageLimit: 2, MaxPages: 10})

	res, err := s.Search(context.Background(), jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Two full pages then a short one.
	if src.calls() != 3 {
		t.Errorf("upstream calls = %d, want 3", src.calls())
	}
	for i, want := range []int{0, 2, 4} {
		if src.queries[i].Offset != want {
			t.Errorf("call %d offset = %d, want %d", i, src.queries[i].Offset, want)
		}
		if src.queries[i].Limit != 2 {
			t.Errorf("call %d limit = %d, want 2", i, src.queries[i].Limit)
		}
	}
	if len(res.Flights) != 5 || res.Truncated {
		t.Errorf("flights = %d, truncated = %v", len(res.Flights), res.Truncated)
	}
}

func TestSearch_PaginationStopsAtReportedTotal(t *testing.T) {
	store := openStore(t)
	src := staticSource(4,
		jfkLax("AA1", "", ""), jfkLax("AA2", "", ""), jfkLax("AA3", "", ""), jfkLax("AA4", "", ""), jfkLax("AA5", "", ""),
	)
	s := newTestSearcher(t, store, src, Options{PageLimit: 2, MaxPages: 10})

	if _, err := s.Search(context.Background(), jfkLaxReq); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if src.calls() != 2 {
		t.Errorf("upstream calls = %d, want 2", src.calls())
	}
}

func TestSearch_PaginationCeiling(t *testing.T) {
	store := openStore(t)
	n := 0
	src := &fakeSource{flightsFn: func(q aviationstack.Query) (aviationstack.Page, error) {
		page := make([]flight.Record, q.Limit)
		for i := range page {
			n++
			page[i] = jfkLax(fmt.Sprintf("XX%d", n), "", "")
		}
		return aviationstack.Page{Records: page, Count: len(page), Total: 10000}, nil
	}}
	s := newTestSearcher(t, store, src, Options{PageLimit: 3, MaxPages: 4})

	res, err := s.Search(context.Background(), jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if src.calls() != 4 {
		t.Errorf("upstream calls = %d, want 4", src.calls())
	}
	if !res.Truncated || res.ReportedTotal != 10000 {
		t.Errorf("truncated = %v, total = %d", res.Truncated, res.ReportedTotal)
	}
}

func TestSearch_EmptyFirstPage(t *testing.T) {
	store := openStore(t)
	src := staticSource(0)
	s := newTestSearcher(t, store, src, Options{})

	res, err := s.Search(context.Background(), jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if src.calls() != 1 {
		t.Errorf("upstream calls = %d, want 1", src.calls())
	}
	if res.Flights == nil || len(res.Flights) != 0 {
		t.Errorf("flights = %v, want empty non-nil slice", res.Flights)
	}
}

func TestSearch_DropsIncompleteRecords(t *testing.T) {
	store := openStore(t)
	bad := jfkLax("", "Ghost", "")
	noArr := jfkLax("ZZ9", "Ghost", "")
	noArr.ArrivalAirport = ""
	src := staticSource(3, bad, noArr, jfkLax("DL1", "Delta Air Lines", ""))
	s := newTestSearcher(t, store, src, Options{})

	res, err := s.Search(context.Background(), jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := flightNumbers(res.Flights); len(got) != 1 || got[0] != "DL1" {
		t.Errorf("flights = %v, want [DL1]", got)
	}
}

func TestSearch_JoinCompleteness(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	src := staticSource(4,
		jfkLax("AA1", "", "2025-04-15T06:00:00Z"),
		jfkLax("AA2", "", "2025-04-15T07:00:00Z"),
		jfkLax("AA3", "", "2025-04-15T08:00:00Z"),
		jfkLax("AA4", "", "2025-04-15T09:00:00Z"),
	)
	store.UpsertSeats(ctx, "JFK_LAX_2025-04-15_AA1", 0, testNow)
	store.UpsertSeats(ctx, "JFK_LAX_2025-04-15_AA3", 12, testNow)

	s := newTestSearcher(t, store, src, Options{})
	res, err := s.Search(ctx, jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Flights) != 4 {
		t.Fatalf("flights = %d, want 4", len(res.Flights))
	}
	withSeats := 0
	for _, f := range res.Flights {
		if (f.SeatsAvailable == nil) != (f.SeatsUpdatedAt == nil) {
			t.Errorf("%s: seat fields must be both set or both nil", f.FlightNumber)
		}
		if f.SeatsAvailable != nil {
			withSeats++
		}
	}
	if withSeats != 2 {
		t.Errorf("flights with seats = %d, want 2", withSeats)
	}
	if res.Flights[0].SeatsAvailable == nil || *res.Flights[0].SeatsAvailable != 0 {
		t.Errorf("AA1 seats = %v, want 0", res.Flights[0].SeatsAvailable)
	}
}

func TestSearch_PreferredCarriers(t *testing.T) {
	store := openStore(t)
	src := staticSource(3,
		jfkLax("AA1", "American Airlines", "2025-04-15T06:00:00Z"),
		jfkLax("UA2", "United Airlines", "2025-04-15T09:00:00Z"),
		jfkLax("DL3", "Delta Air Lines", "2025-04-15T07:00:00Z"),
	)
	s := newTestSearcher(t, store, src, Options{PreferredCarriers: []string{"Delta Air Lines", "United Airlines"}})

	res, err := s.Search(context.Background(), jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := flightNumbers(res.Flights)
	want := []string{"DL3", "UA2", "AA1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if !res.Flights[0].Preferred || res.Flights[2].Preferred {
		t.Error("preferred flag not set correctly")
	}
}

func TestSearch_SeatsStale(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	store.UpsertSeats(ctx, "JFK_LAX_2025-04-15_AA1", 3, testNow.Add(-25*time.Hour))
	store.UpsertSeats(ctx, "JFK_LAX_2025-04-15_AA2", 3, testNow.Add(-time.Hour))

	src := staticSource(2, jfkLax("AA1", "", "2025-04-15T06:00:00Z"), jfkLax("AA2", "", "2025-04-15T07:00:00Z"))
	s := newTestSearcher(t, store, src, Options{SeatsStaleAfter: 24 * time.Hour})

	res, err := s.Search(ctx, jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.Flights[0].SeatsStale || res.Flights[1].SeatsStale {
		t.Errorf("stale = %v/%v, want true/false", res.Flights[0].SeatsStale, res.Flights[1].SeatsStale)
	}
}

func TestSearch_UpstreamErrorFailsWithoutCaching(t *testing.T) {
	store := openStore(t)
	src := &fakeSource{flightsFn: func(q aviationstack.Query) (aviationstack.Page, error) {
		return aviationstack.Page{}, &aviationstack.APIError{StatusCode: 500, Message: "boom"}
	}}
	s := newTestSearcher(t, store, src, Options{})

	_, err := s.Search(context.Background(), jfkLaxReq)
	var apiErr *aviationstack.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if _, err := store.LookupFlights(context.Background(), "route:JFKLAX_2025-04-15", time.Hour, testNow); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("nothing should be cached after an upstream error, got %v", err)
	}
}

func TestSearch_UpstreamTimeout(t *testing.T) {
	store := openStore(t)
	src := &fakeSource{flightsFn: func(q aviationstack.Query) (aviationstack.Page, error) {
		return aviationstack.Page{}, aviationstack.ErrTimeout
	}}
	s := newTestSearcher(t, store, src, Options{})

	if _, err := s.Search(context.Background(), jfkLaxReq); !errors.Is(err, aviationstack.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestSearch_PartialFailuresAreBestEffort(t *testing.T) {
	store := openStore(t)
	src := staticSource(1, jfkLax("DL1", "Delta Air Lines", ""))
	s := NewSearcher(Deps{
		Cache:  &faultyCache{FlightCache: store, lookupErr: errors.New("cache down"), storeErr: errors.New("cache down")},
		Seats:  &faultySeats{SeatStore: store, seedErr: errors.New("seats down"), getErr: errors.New("seats down")},
		Source: src,
		Now:    func() time.Time { return testNow },
	}, Options{})

	res, err := s.Search(context.Background(), jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Source != SourceAPI || len(res.Flights) != 1 {
		t.Fatalf("Source = %q, flights = %d", res.Source, len(res.Flights))
	}
	if res.Flights[0].SeatsAvailable != nil {
		t.Error("seats should be nil when the seat store fails")
	}
}

func TestSearch_PartialSeedCountsInsertedRows(t *testing.T) {
	store := openStore(t)
	m := metrics.New(prometheus.NewRegistry())
	src := staticSource(3, jfkLax("DL1", "", ""), jfkLax("DL2", "", ""), jfkLax("DL3", "", ""))
	s := NewSearcher(Deps{
		Cache:   store,
		Seats:   &faultySeats{SeatStore: store, seeded: 2, seedErr: errors.New("seeding JFK_LAX_2025-04-15_DL2: locked")},
		Source:  src,
		Metrics: m,
		Now:     func() time.Time { return testNow },
	}, Options{SeedPlaceholders: true})

	res, err := s.Search(context.Background(), jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Flights) != 3 {
		t.Fatalf("flights = %d, want 3", len(res.Flights))
	}
	if got := testutil.ToFloat64(m.SeatsSeeded); got != 2 {
		t.Errorf("seeded = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PartialFailures.WithLabelValues("seed")); got != 1 {
		t.Errorf("seed failures = %v, want 1", got)
	}
}

func TestSearch_UndecodableCacheEntryIsMiss(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	store.StoreFlights(ctx, "route:JFKLAX_2025-04-15", []byte(`{not json`), testNow)

	src := staticSource(1, jfkLax("DL1", "", ""))
	s := newTestSearcher(t, store, src, Options{})
	res, err := s.Search(ctx, jfkLaxReq)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Source != SourceAPI {
		t.Errorf("Source = %q, want api", res.Source)
	}
}

func TestSearch_Validation(t *testing.T) {
	s := newTestSearcher(t, openStore(t), staticSource(0), Options{})
	ctx := context.Background()

	cases := []struct {
		req  SearchRequest
		want error
	}{
		{SearchRequest{Destination: "LAX", Date: "2025-04-15"}, ErrMissingParameter},
		{SearchRequest{Origin: "JFK", Date: "2025-04-15"}, ErrMissingParameter},
		{SearchRequest{Origin: "JFK", Destination: "LAX"}, ErrMissingParameter},
		{SearchRequest{Origin: "JFKX", Destination: "LAX", Date: "2025-04-15"}, ErrInvalidParameter},
		{SearchRequest{Origin: "JFK", Destination: "LAX", Date: "15/04/2025"}, ErrInvalidParameter},
	}
	for _, tc := range cases {
		if _, err := s.Search(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Errorf("Search(%+v) err = %v, want %v", tc.req, err, tc.want)
		}
	}
}

func TestSearch_LowercaseInputNormalized(t *testing.T) {
	store := openStore(t)
	src := staticSource(0)
	s := newTestSearcher(t, store, src, Options{})

	if _, err := s.Search(context.Background(), SearchRequest{Origin: "jfk", Destination: "lax", Date: "2025-04-15"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if q := src.queries[0]; q.DepIATA != "JFK" || q.ArrIATA != "LAX" || q.FlightDate != "2025-04-15" {
		t.Errorf("query = %+v", q)
	}
}

func TestDepartures(t *testing.T) {
	store := openStore(t)
	src := staticSource(1, jfkLax("DL1", "", ""))
	s := newTestSearcher(t, store, src, Options{})

	res, err := s.Departures(context.Background(), "JFK", "2025-04-15")
	if err != nil {
		t.Fatalf("Departures: %v", err)
	}
	if len(res.Flights) != 1 {
		t.Errorf("flights = %d, want 1", len(res.Flights))
	}
	if q := src.queries[0]; q.ArrIATA != "" || q.DepIATA != "JFK" {
		t.Errorf("query = %+v", q)
	}
	if _, err := store.LookupFlights(context.Background(), "route:JFK_2025-04-15", time.Hour, testNow); err != nil {
		t.Errorf("departures cache entry missing: %v", err)
	}
}

func TestLookupFlight(t *testing.T) {
	store := openStore(t)
	src := staticSource(1, jfkLax("DL123", "", ""))
	s := newTestSearcher(t, store, src, Options{})

	if _, err := s.LookupFlight(context.Background(), "dl 123", "2025-04-15"); err != nil {
		t.Fatalf("LookupFlight: %v", err)
	}
	if q := src.queries[0]; q.FlightIATA != "DL123" || q.DepIATA != "" {
		t.Errorf("query = %+v", q)
	}
	if _, err := store.LookupFlights(context.Background(), "flight:DL123_2025-04-15", time.Hour, testNow); err != nil {
		t.Errorf("per-flight cache entry missing: %v", err)
	}
}

func TestSearch_ConcurrentMissesShareFetch(t *testing.T) {
	store := openStore(t)
	release := make(chan struct{})
	var calls atomic.Int32
	src := &fakeSource{flightsFn: func(q aviationstack.Query) (aviationstack.Page, error) {
		calls.Add(1)
		<-release
		return aviationstack.Page{Records: []flight.Record{jfkLax("DL1", "", "")}, Count: 1, Total: 1}, nil
	}}
	s := newTestSearcher(t, store, src, Options{})

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Search(context.Background(), jfkLaxReq); err != nil {
				t.Errorf("Search: %v", err)
			}
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestRecordSeats(t *testing.T) {
	store := openStore(t)
	pub := &recordingPublisher{}
	s := NewSearcher(Deps{Cache: store, Seats: store, Source: staticSource(0), Publisher: pub, Now: func() time.Time { return testNow }}, Options{})
	ctx := context.Background()

	if err := s.RecordSeats(ctx, " JFK_LAX_2025-04-15_DL123 ", 4); err != nil {
		t.Fatalf("RecordSeats: %v", err)
	}
	row, err := store.GetSeat(ctx, "JFK_LAX_2025-04-15_DL123")
	if err != nil || row.SeatsAvailable == nil || *row.SeatsAvailable != 4 {
		t.Fatalf("row = %+v, err = %v", row, err)
	}
	if len(pub.events) != 1 || pub.events[0].FlightKey != "JFK_LAX_2025-04-15_DL123" {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestRecordSeats_InvalidNotPublished(t *testing.T) {
	store := openStore(t)
	pub := &recordingPublisher{}
	s := NewSearcher(Deps{Cache: store, Seats: store, Source: staticSource(0), Publisher: pub}, Options{})
	ctx := context.Background()

	if err := s.RecordSeats(ctx, "JFK_LAX_2025-04-15_DL123", -1); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := store.GetSeat(ctx, "JFK_LAX_2025-04-15_DL123"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("rejected write should not create a row: %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("events = %d, want 0", len(pub.events))
	}
}

func TestRecordSeats_PublishFailureIgnored(t *testing.T) {
	store := openStore(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := NewSearcher(Deps{Cache: store, Seats: store, Source: staticSource(0), Publisher: pub}, Options{})

	if err := s.RecordSeats(context.Background(), "JFK_LAX_2025-04-15_DL123", 2); err != nil {
		t.Errorf("RecordSeats should ignore publish errors, got %v", err)
	}
}

func TestNewSearcher_Defaults(t *testing.T) {
	s := NewSearcher(Deps{}, Options{PageLimit: 500})
	opts := s.Options()
	if opts.PageLimit != 100 || opts.MaxPages != 5 || opts.FreshnessWindow != 24*time.Hour {
		t.Errorf("options = %+v", opts)
	}
}
