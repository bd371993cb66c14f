package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/nonrev/internal/storage"
)

// seatsRequest accepts both camelCase and snake_case field names; the
// browser UI has shipped with each.
type seatsRequest struct {
	FlightKey string
	Seats     int
}

func decodeSeatsRequest(r *http.Request) (seatsRequest, error) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return seatsRequest{}, fmt.Errorf("%w: invalid request body: %v", storage.ErrInvalidInput, err)
	}

	var req seatsRequest
	rawKey := firstField(body, "flightKey", "flight_key")
	if rawKey == nil {
		return seatsRequest{}, fmt.Errorf("%w: flightKey is required", storage.ErrInvalidInput)
	}
	if err := json.Unmarshal(rawKey, &req.FlightKey); err != nil {
		return seatsRequest{}, fmt.Errorf("%w: flightKey must be a string", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(req.FlightKey) == "" {
		return seatsRequest{}, fmt.Errorf("%w: flightKey is required", storage.ErrInvalidInput)
	}

	rawSeats := firstField(body, "seatsAvailable", "seats_available")
	if rawSeats == nil {
		return seatsRequest{}, fmt.Errorf("%w: seatsAvailable is required", storage.ErrInvalidInput)
	}
	// Only a bare JSON integer is accepted: no strings, fractions or exponents.
	n, err := strconv.Atoi(strings.TrimSpace(string(rawSeats)))
	if err != nil {
		return seatsRequest{}, fmt.Errorf("%w: seatsAvailable must be an integer, got %s", storage.ErrInvalidInput, rawSeats)
	}
	if n < 0 {
		return seatsRequest{}, fmt.Errorf("%w: seatsAvailable must not be negative, got %d", storage.ErrInvalidInput, n)
	}
	req.Seats = n
	return req, nil
}

func firstField(body map[string]json.RawMessage, names ...string) json.RawMessage {
	for _, n := range names {
		if v, ok := body[n]; ok && string(v) != "null" {
			return v
		}
	}
	return nil
}

func handleRecordSeats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		req, err := decodeSeatsRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := deps.Searcher.RecordSeats(r.Context(), req.FlightKey, req.Seats); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type seatsResponse struct {
	FlightKey      string     `json:"flight_key"`
	SeatsAvailable *int       `json:"seats_available"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

func handleGetSeats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Seats == nil {
			httpError(w, http.StatusNotImplemented, "not_supported", "seat lookup is not available")
			return
		}
		key := chi.URLParam(r, "flightKey")
		row, err := deps.Seats.GetSeat(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := seatsResponse{FlightKey: row.FlightKey}
		if !row.Placeholder() {
			resp.SeatsAvailable = row.SeatsAvailable
			resp.UpdatedAt = &row.UpdatedAt
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleDeleteSeats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Seats == nil {
			httpError(w, http.StatusNotImplemented, "not_supported", "seat deletion is not available")
			return
		}
		if err := deps.Seats.DeleteSeats(r.Context(), chi.URLParam(r, "flightKey")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
