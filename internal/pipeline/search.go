package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/nonrev/internal/aviationstack"
	"github.com/kalambet/nonrev/internal/events"
	"github.com/kalambet/nonrev/internal/flight"
	"github.com/kalambet/nonrev/internal/metrics"
	"github.com/kalambet/nonrev/internal/storage"
)

// Where a result came from.
const (
	SourceCache = "cache"
	SourceAPI   = "api"
)

var (
	// ErrMissingParameter is returned when a required search field is empty.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrInvalidParameter is returned when a search field is malformed.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// FlightCache is the cache-store contract; storage.Store and
// storage.RedisCache both satisfy it.
type FlightCache interface {
	LookupFlights(ctx context.Context, key string, window time.Duration, now time.Time) (storage.CacheEntry, error)
	StoreFlights(ctx context.Context, key string, payload []byte, now time.Time) error
}

// SeatStore is the seat availability contract.
type SeatStore interface {
	UpsertSeats(ctx context.Context, flightKey string, seats int, now time.Time) error
	SeedSeats(ctx context.Context, flightKeys []string, now time.Time) (int, error)
	GetSeats(ctx context.Context, flightKeys []string) (map[string]storage.SeatRecord, error)
}

// FlightSource fetches one page of upstream flights.
type FlightSource interface {
	Flights(ctx context.Context, q aviationstack.Query) (aviationstack.Page, error)
}

// Options are the pipeline's tunables.
type Options struct {
	FreshnessWindow   time.Duration
	PageLimit         int
	MaxPages          int
	PreferredCarriers []string
	SeedPlaceholders  bool
	SeatsStaleAfter   time.Duration
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		FreshnessWindow:  24 * time.Hour,
		PageLimit:        aviationstack.MaxLimit,
		MaxPages:         5,
		SeedPlaceholders: true,
		SeatsStaleAfter:  24 * time.Hour,
	}
}

// Deps are the collaborators of a Searcher. Publisher, Metrics and Now are optional.
type Deps struct {
	Cache     FlightCache
	Seats     SeatStore
	Source    FlightSource
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Searcher answers flight searches from the cache or the upstream source and
// joins the results with reported seat counts.
type Searcher struct {
	cache     FlightCache
	seats     SeatStore
	source    FlightSource
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	opts      Options
	carriers  flight.Carriers

	// inflight collapses concurrent misses on the same key into one fetch.
	inflight singleflight.Group
}

// NewSearcher creates a Searcher. Zero or out-of-range options fall back to
// DefaultOptions values.
func NewSearcher(d Deps, opts Options) *Searcher {
	def := DefaultOptions()
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = def.FreshnessWindow
	}
	if opts.PageLimit <= 0 || opts.PageLimit > aviationstack.MaxLimit {
		opts.PageLimit = def.PageLimit
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = def.MaxPages
	}
	if d.Publisher == nil {
		d.Publisher = events.Noop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Searcher{
		cache:     d.Cache,
		seats:     d.Seats,
		source:    d.Source,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		now:       d.Now,
		opts:      opts,
		carriers:  flight.Carriers(opts.PreferredCarriers),
	}
}

// Options returns the effective options.
func (s *Searcher) Options() Options {
	return s.opts
}

// SearchRequest names a route on a date.
type SearchRequest struct {
	Origin      string
	Destination string
	Date        string
}

// Result is an enriched, ordered list of flights.
type Result struct {
	Flights       []flight.Enriched `json:"flights"`
	Source        string            `json:"source"`
	ReportedTotal int               `json:"reported_total"`
	// Truncated is set when paging stopped at the ceiling while the provider
	// reported more flights.
	Truncated bool `json:"truncated"`
}

// Search returns the flights from origin to destination on date.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (Result, error) {
	if err := requireParams("origin", req.Origin, "destination", req.Destination, "date", req.Date); err != nil {
		return Result{}, err
	}
	origin, err := normalizeAirport("origin", req.Origin)
	if err != nil {
		return Result{}, err
	}
	dest, err := normalizeAirport("destination", req.Destination)
	if err != nil {
		return Result{}, err
	}
	date, err := normalizeDate(req.Date)
	if err != nil {
		return Result{}, err
	}

	q := aviationstack.Query{DepIATA: origin, ArrIATA: dest, FlightDate: date}
	return s.run(ctx, flight.RouteCacheKey(origin, dest, date), q)
}

// Departures returns every flight leaving origin on date.
func (s *Searcher) Departures(ctx context.Context, origin, date string) (Result, error) {
	if err := requireParams("origin", origin, "date", date); err != nil {
		return Result{}, err
	}
	o, err := normalizeAirport("origin", origin)
	if err != nil {
		return Result{}, err
	}
	d, err := normalizeDate(date)
	if err != nil {
		return Result{}, err
	}

	q := aviationstack.Query{DepIATA: o, FlightDate: d}
	return s.run(ctx, flight.RouteCacheKey(o, "", d), q)
}

// LookupFlight returns the legs of a single flight number on date.
func (s *Searcher) LookupFlight(ctx context.Context, flightNumber, date string) (Result, error) {
	if err := requireParams("flight", flightNumber, "date", date); err != nil {
		return Result{}, err
	}
	fn := flight.NormalizeFlightNumber(flightNumber)
	d, err := normalizeDate(date)
	if err != nil {
		return Result{}, err
	}

	q := aviationstack.Query{FlightIATA: fn, FlightDate: d}
	return s.run(ctx, flight.FlightCacheKey(fn, d), q)
}

// RecordSeats stores a reported seat count and announces it. Publishing is
// best effort.
func (s *Searcher) RecordSeats(ctx context.Context, flightKey string, seats int) error {
	now := s.now()
	key := strings.TrimSpace(flightKey)
	if err := s.seats.UpsertSeats(ctx, key, seats, now); err != nil {
		return err
	}
	s.metrics.SeatUpdated()

	if err := s.publisher.PublishSeatUpdate(ctx, events.NewSeatUpdate(key, seats, now)); err != nil {
		slog.Warn("search: failed to publish seat update", "flight_key", key, "error", err)
		s.metrics.PartialFailure("publish")
	}
	return nil
}

// fetched is the shared outcome of one upstream fetch.
type fetched struct {
	records []flight.Record
	total   int
	trunc   bool
}

func (s *Searcher) run(ctx context.Context, key string, q aviationstack.Query) (Result, error) {
	start := s.now()

	res := Result{Source: SourceCache}
	records, ok := s.lookup(ctx, key, start)
	if ok {
		res.ReportedTotal = len(records)
	} else {
		v, err, _ := s.inflight.Do(key, func() (any, error) {
			// Detached so one caller going away does not fail the others
			// waiting on the same fetch. Each upstream call keeps its own timeout.
			return s.fetch(context.WithoutCancel(ctx), key, q)
		})
		if err != nil {
			return Result{}, err
		}
		f := v.(fetched)
		records = slices.Clone(f.records)
		res.Source = SourceAPI
		res.ReportedTotal = f.total
		res.Truncated = f.trunc
	}

	flight.SortByDeparture(records)
	s.carriers.Prefer(records)
	res.Flights = s.join(ctx, records)

	s.metrics.ObserveSearch(res.Source, s.now().Sub(start))
	slog.Debug("search complete", "key", key, "source", res.Source, "flights", len(res.Flights))
	return res, nil
}

// lookup reads the cache. Any failure, including an undecodable payload, is
// treated as a miss.
func (s *Searcher) lookup(ctx context.Context, key string, now time.Time) ([]flight.Record, bool) {
	entry, err := s.cache.LookupFlights(ctx, key, s.opts.FreshnessWindow, now)
	if errors.Is(err, storage.ErrNotFound) {
		s.metrics.CacheLookup("miss")
		return nil, false
	}
	if err != nil {
		slog.Warn("search: cache lookup failed, fetching upstream", "key", key, "error", err)
		s.metrics.CacheLookup("error")
		return nil, false
	}

	var records []flight.Record
	if err := json.Unmarshal(entry.Payload, &records); err != nil {
		slog.Warn("search: undecodable cache entry, fetching upstream", "key", key, "error", err)
		s.metrics.CacheLookup("error")
		return nil, false
	}
	s.metrics.CacheLookup("hit")
	return records, true
}

func (s *Searcher) fetch(ctx context.Context, key string, q aviationstack.Query) (fetched, error) {
	raw, total, trunc, err := s.paginate(ctx, q)
	if err != nil {
		return fetched{}, err
	}

	for i := range raw {
		if raw[i].FlightDate == "" {
			raw[i].FlightDate = q.FlightDate
		}
	}
	records, dropped := flight.KeepComplete(raw)
	if dropped > 0 {
		slog.Debug("search: dropped incomplete upstream records", "key", key, "dropped", dropped)
	}
	records = flight.Dedup(records)
	flight.SortByDeparture(records)

	now := s.now()
	s.persist(ctx, key, records, now)
	if s.opts.SeedPlaceholders {
		s.seed(ctx, records, now)
	}
	return fetched{records: records, total: total, trunc: trunc}, nil
}

// paginate pages through upstream results sequentially until a page comes
// back empty or short, the accumulated count reaches the reported total, or
// MaxPages requests have been made.
func (s *Searcher) paginate(ctx context.Context, q aviationstack.Query) ([]flight.Record, int, bool, error) {
	var all []flight.Record
	total := 0
	q.Offset = 0
	q.Limit = s.opts.PageLimit

	for page := 0; page < s.opts.MaxPages; page++ {
		p, err := s.source.Flights(ctx, q)
		if err != nil {
			if errors.Is(err, aviationstack.ErrTimeout) {
				s.metrics.Upstream("timeout")
			} else {
				s.metrics.Upstream("error")
			}
			return nil, 0, false, err
		}
		s.metrics.Upstream("ok")

		all = append(all, p.Records...)
		total = p.Total
		if len(p.Records) == 0 || len(p.Records) < q.Limit || len(all) >= p.Total {
			return all, total, false, nil
		}
		q.Offset += len(p.Records)
	}

	truncated := total > len(all)
	if truncated {
		slog.Info("search: page ceiling reached", "pages", s.opts.MaxPages, "fetched", len(all), "reported_total", total)
	}
	return all, total, truncated, nil
}

func (s *Searcher) persist(ctx context.Context, key string, records []flight.Record, now time.Time) {
	payload, err := json.Marshal(records)
	if err != nil {
		slog.Warn("search: encoding cache entry", "key", key, "error", err)
		s.metrics.PartialFailure("cache_write")
		return
	}
	if err := s.cache.StoreFlights(ctx, key, payload, now); err != nil {
		slog.Warn("search: cache write failed", "key", key, "error", err)
		s.metrics.PartialFailure("cache_write")
	}
}

func (s *Searcher) seed(ctx context.Context, records []flight.Record, now time.Time) {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = flight.SeatKey(r)
	}
	n, err := s.seats.SeedSeats(ctx, keys, now)
	if err != nil {
		slog.Warn("search: seeding seat placeholders failed", "seeded", n, "error", err)
		s.metrics.PartialFailure("seed")
	}
	s.metrics.Seeded(n)
}

// join attaches seat counts. A failed read leaves every count empty rather
// than failing the search.
func (s *Searcher) join(ctx context.Context, records []flight.Record) []flight.Enriched {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = flight.SeatKey(r)
	}

	var rows map[string]storage.SeatRecord
	if len(keys) > 0 {
		var err error
		rows, err = s.seats.GetSeats(ctx, keys)
		if err != nil {
			slog.Warn("search: seat lookup failed, returning flights without seats", "error", err)
			s.metrics.PartialFailure("seat_join")
			rows = nil
		}
	}

	now := s.now()
	out := make([]flight.Enriched, len(records))
	for i, r := range records {
		e := flight.Enriched{Record: r, FlightKey: keys[i], Preferred: s.carriers.Match(r)}
		if row, ok := rows[keys[i]]; ok && !row.Placeholder() {
			seats := *row.SeatsAvailable
			updated := row.UpdatedAt
			e.SeatsAvailable = &seats
			e.SeatsUpdatedAt = &updated
			e.SeatsStale = s.opts.SeatsStaleAfter > 0 && now.Sub(updated) >= s.opts.SeatsStaleAfter
		}
		out[i] = e
	}
	return out
}

// requireParams takes name/value pairs and reports the first empty value.
func requireParams(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingParameter, pairs[i])
		}
	}
	return nil
}

func normalizeAirport(field, code string) (string, error) {
	c, err := flight.NormalizeAirport(code)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidParameter, field, err)
	}
	return c, nil
}

func normalizeDate(date string) (string, error) {
	d := strings.TrimSpace(date)
	if err := flight.ValidateDate(d); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return d, nil
}
