package flight

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the civil date format used in keys and upstream queries.
const DateLayout = "2006-01-02"

const (
	routeNamespace  = "route:"
	flightNamespace = "flight:"
)

var iataAirport = regexp.MustCompile(`^[A-Z]{3}$`)

// IdentityKey is the dedup key of a record: {flightNumber}_{flightDate}.
func IdentityKey(r Record) string {
	return r.FlightNumber + "_" + r.FlightDate
}

// SeatKey is the seat join key: {dep}_{arr}_{date}_{flightNumber}.
func SeatKey(r Record) string {
	return r.DepartureAirport + "_" + r.ArrivalAirport + "_" + r.FlightDate + "_" + r.FlightNumber
}

// RouteCacheKey is the cache key for a route search. An empty destination
// addresses the departures board of origin.
func RouteCacheKey(origin, destination, date string) string {
	return routeNamespace + origin + destination + "_" + date
}

// FlightCacheKey is the cache key for a single flight on a date.
func FlightCacheKey(flightNumber, date string) string {
	return flightNamespace + flightNumber + "_" + date
}

// NormalizeAirport upper-cases and validates a three-letter IATA code.
func NormalizeAirport(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !iataAirport.MatchString(c) {
		return "", fmt.Errorf("invalid airport code %q", code)
	}
	return c, nil
}

// NormalizeFlightNumber upper-cases a flight designator and strips spaces,
// so "dl 123" and "DL123" share a key.
func NormalizeFlightNumber(n string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(n), " ", ""))
}

// ValidateDate checks that date is a YYYY-MM-DD civil date.
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}
	return nil
}
