package aviationstack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/nonrev/internal/flight"
)

const testKey = "secret-access-key"

const pageJSON = `{
	"pagination": {"limit": 100, "offset": 0, "count": 2, "total": 2},
	"data": [
		{
			"flight_date": "2025-04-15",
			"flight_status": "scheduled",
			"departure": {"airport": "John F Kennedy International", "iata": "JFK", "terminal": "4", "gate": "B22", "scheduled": "2025-04-15T08:00:00+00:00"},
			"arrival": {"airport": "Los Angeles International", "iata": "LAX", "terminal": null, "scheduled": "2025-04-15T11:20:00+00:00"},
			"airline": {"name": "Delta Air Lines", "iata": "DL"},
			"flight": {"number": "123", "iata": "DL123"},
			"aircraft": {"iata": "A321"}
		},
		{
			"flight_date": "2025-04-15",
			"flight_status": "incident",
			"departure": {"iata": "jfk", "scheduled": "2025-04-15T09:00:00+00:00"},
			"arrival": {"iata": "lax"},
			"airline": {"name": "JetBlue Airways"},
			"flight": {"number": "623"},
			"aircraft": null
		}
	]
}`

func TestFlights_QueryAndMapping(t *testing.T) {
	var gotQuery map[string]string
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/flights" {
			t.Errorf("path = %q, want /flights", r.URL.Path)
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, pageJSON)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testKey, srv.URL, time.Second)
	c.SetUserAgent("nonrev/test")
	page, err := c.Flights(context.Background(), Query{DepIATA: "JFK", ArrIATA: "LAX", FlightDate: "2025-04-15", Offset: 200, Limit: 500})
	if err != nil {
		t.Fatalf("Flights: %v", err)
	}

	want := map[string]string{
		"access_key":  testKey,
		"dep_iata":    "JFK",
		"arr_iata":    "LAX",
		"flight_date": "2025-04-15",
		"offset":      "200",
		"limit":       "100",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
	if _, ok := gotQuery["flight_iata"]; ok {
		t.Error("flight_iata should be omitted when empty")
	}
	if gotUA != "nonrev/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}

	if page.Total != 2 || page.Count != 2 {
		t.Errorf("Total = %d, Count = %d, want 2, 2", page.Total, page.Count)
	}

	dl := page.Records[0]
	if dl.FlightNumber != "DL123" || dl.AirlineIATA != "DL" || dl.Status != flight.StatusScheduled {
		t.Errorf("first record = %+v", dl)
	}
	if dl.Terminal == nil || *dl.Terminal != "4" || dl.Gate == nil || *dl.Gate != "B22" {
		t.Errorf("terminal/gate = %v/%v", dl.Terminal, dl.Gate)
	}
	if dl.AircraftModel == nil || *dl.AircraftModel != "A321" {
		t.Errorf("aircraft = %v", dl.AircraftModel)
	}

	b6 := page.Records[1]
	if b6.FlightNumber != "623" {
		t.Errorf("flight number fallback = %q, want 623", b6.FlightNumber)
	}
	if b6.DepartureAirport != "JFK" || b6.ArrivalAirport != "LAX" {
		t.Errorf("airports = %q/%q", b6.DepartureAirport, b6.ArrivalAirport)
	}
	if b6.Status != flight.StatusUnknown {
		t.Errorf("status = %q, want unknown", b6.Status)
	}
	if b6.Terminal != nil || b6.Gate != nil || b6.AircraftModel != nil {
		t.Error("missing optional fields should stay nil")
	}
}

func TestFlights_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"usage_limit_reached","message":"Your monthly usage limit has been reached."}}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testKey, srv.URL, time.Second)
	_, err := c.Flights(context.Background(), Query{DepIATA: "JFK"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != "usage_limit_reached" {
		t.Errorf("Code = %q", apiErr.Code)
	}
}

func TestFlights_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"invalid_access_key","message":"bad key `+testKey+`"}}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testKey, srv.URL, time.Second)
	_, err := c.Flights(context.Background(), Query{DepIATA: "JFK"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if strings.Contains(err.Error(), testKey) {
		t.Errorf("error leaks access key: %v", err)
	}
}

func TestFlights_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClientWithBaseURL(testKey, srv.URL, 50*time.Millisecond)
	_, err := c.Flights(context.Background(), Query{DepIATA: "JFK"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if strings.Contains(err.Error(), testKey) {
		t.Errorf("error leaks access key: %v", err)
	}
}

func TestFlights_TransportErrorDoesNotLeakKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClientWithBaseURL(testKey, url, time.Second)
	_, err := c.Flights(context.Background(), Query{DepIATA: "JFK"})
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if strings.Contains(err.Error(), testKey) {
		t.Errorf("error leaks access key: %v", err)
	}
}

func TestFlights_MissingPaginationUsesCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"flight":{"iata":"UA1"},"departure":{"iata":"EWR"},"arrival":{"iata":"SFO"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testKey, srv.URL, time.Second)
	page, err := c.Flights(context.Background(), Query{DepIATA: "EWR"})
	if err != nil {
		t.Fatalf("Flights: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("Total = %d, want 1", page.Total)
	}
}
