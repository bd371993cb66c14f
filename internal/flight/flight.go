// Package flight holds the normalized flight model shared by the upstream
// client, the cache stores and the search pipeline.
package flight

import (
	"strings"
	"time"
)

// Status is the normalized operational status of a flight.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusLanded    Status = "landed"
	StatusCancelled Status = "cancelled"
	StatusDiverted  Status = "diverted"
	StatusUnknown   Status = "unknown"
)

// ParseStatus maps a provider status string onto the known set. Anything
// unrecognized (including the provider's "incident") becomes StatusUnknown.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusScheduled:
		return StatusScheduled
	case StatusActive:
		return StatusActive
	case StatusLanded:
		return StatusLanded
	case StatusCancelled:
		return StatusCancelled
	case StatusDiverted:
		return StatusDiverted
	}
	return StatusUnknown
}

// Record is one scheduled flight as reported by the upstream source.
// Terminal, Gate and AircraftModel are nil when the provider omits them.
type Record struct {
	FlightNumber       string  `json:"flight_number"`
	AirlineName        string  `json:"airline_name"`
	AirlineIATA        string  `json:"airline_iata,omitempty"`
	DepartureAirport   string  `json:"departure_airport"`
	ArrivalAirport     string  `json:"arrival_airport"`
	ScheduledDeparture string  `json:"scheduled_departure"`
	ScheduledArrival   string  `json:"scheduled_arrival"`
	FlightDate         string  `json:"flight_date"`
	Status             Status  `json:"status"`
	Terminal           *string `json:"terminal"`
	Gate               *string `json:"gate"`
	AircraftModel      *string `json:"aircraft_model"`
}

// Complete reports whether the record carries every field needed to identify
// and join it.
func (r Record) Complete() bool {
	return r.FlightNumber != "" && r.DepartureAirport != "" && r.ArrivalAirport != ""
}

// Enriched is a Record joined with the locally tracked seat count.
// SeatsAvailable and SeatsUpdatedAt are both nil when no one has reported a
// count for the flight.
type Enriched struct {
	Record
	FlightKey      string     `json:"flight_key"`
	Preferred      bool       `json:"preferred"`
	SeatsAvailable *int       `json:"seats_available"`
	SeatsUpdatedAt *time.Time `json:"seats_updated_at"`
	SeatsStale     bool       `json:"seats_stale"`
}
