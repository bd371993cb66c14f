package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/kalambet/nonrev/internal/aviationstack"
	"github.com/kalambet/nonrev/internal/metrics"
	"github.com/kalambet/nonrev/internal/pipeline"
	"github.com/kalambet/nonrev/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

const truncatedNote = "More flights may exist than were retrieved."

// FlightSearcher is the pipeline surface used by the HTTP and MCP layers.
type FlightSearcher interface {
	Search(ctx context.Context, req pipeline.SearchRequest) (pipeline.Result, error)
	Departures(ctx context.Context, origin, date string) (pipeline.Result, error)
	LookupFlight(ctx context.Context, flightNumber, date string) (pipeline.Result, error)
	RecordSeats(ctx context.Context, flightKey string, seats int) error
}

// SeatReader reads and clears single seat rows for the maintenance routes.
type SeatReader interface {
	GetSeat(ctx context.Context, flightKey string) (storage.SeatRecord, error)
	DeleteSeats(ctx context.Context, flightKey string) error
}

// TableLister reports the database tables for diagnostics.
type TableLister interface {
	Tables(ctx context.Context) ([]storage.TableInfo, error)
}

type Deps struct {
	Searcher FlightSearcher
	Seats    SeatReader
	Tables   TableLister
	// Token guards the seat write routes when non-empty.
	Token       string
	CORSOrigins []string
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
}

// NewHandler returns the HTTP API consumed by the browser UI.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(deps.Metrics))
	r.Use(corsHandler(deps.CORSOrigins).Handler)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.Get("/health", handleHealth)
	r.Get("/search", handleSearch(deps))
	r.Get("/departures", handleDepartures(deps))
	r.Get("/flight", handleFlight(deps))
	r.Get("/db/tables", handleTables(deps))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/seats", handleRecordSeats(deps))
		r.Get("/seats/{flightKey}", handleGetSeats(deps))
		r.Delete("/seats/{flightKey}", handleDeleteSeats(deps))
	})

	return r
}

func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type searchResponse struct {
	pipeline.Result
	Note string `json:"note,omitempty"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res, err := deps.Searcher.Search(r.Context(), pipeline.SearchRequest{
			Origin:      q.Get("origin"),
			Destination: q.Get("destination"),
			Date:        q.Get("date"),
		})
		writeResult(w, res, err)
	}
}

func handleDepartures(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res, err := deps.Searcher.Departures(r.Context(), q.Get("origin"), q.Get("date"))
		writeResult(w, res, err)
	}
}

func handleFlight(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res, err := deps.Searcher.LookupFlight(r.Context(), q.Get("flight"), q.Get("date"))
		writeResult(w, res, err)
	}
}

func writeResult(w http.ResponseWriter, res pipeline.Result, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Result: res, Note: noteFor(res)})
}

func handleTables(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Tables == nil {
			httpError(w, http.StatusNotImplemented, "not_supported", "table listing is not available")
			return
		}
		tables, err := deps.Tables.Tables(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if tables == nil {
			tables = []storage.TableInfo{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
	}
}

// writeError maps pipeline and store errors onto status codes and stable
// error identifiers.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *aviationstack.APIError
	switch {
	case errors.Is(err, pipeline.ErrMissingParameter):
		httpError(w, http.StatusBadRequest, "missing_parameter", "%v", err)
	case errors.Is(err, pipeline.ErrInvalidParameter):
		httpError(w, http.StatusBadRequest, "invalid_parameter", "%v", err)
	case errors.Is(err, storage.ErrInvalidInput):
		httpError(w, http.StatusBadRequest, "invalid_input", "%v", err)
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, aviationstack.ErrTimeout):
		httpError(w, http.StatusInternalServerError, "upstream_timeout", "%v", err)
	case errors.As(err, &apiErr):
		httpError(w, http.StatusInternalServerError, "upstream_error", "%v", err)
	default:
		slog.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "internal_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error":   errType,
		"details": fmt.Sprintf(format, args...),
	})
}
