package aviationstack

import (
	"strings"

	"github.com/kalambet/nonrev/internal/flight"
)

// Query selects one page of flights. Empty optional fields are not sent.
type Query struct {
	DepIATA    string
	ArrIATA    string
	FlightIATA string
	FlightDate string
	Offset     int
	Limit      int
}

// Page is one page of normalized results. Total is the provider's reported
// total across all pages; it is advisory.
type Page struct {
	Records []flight.Record
	Count   int
	Total   int
	Offset  int
}

// flightsResponse mirrors both envelopes returned by GET /flights.
type flightsResponse struct {
	Pagination *pagination  `json:"pagination"`
	Data       []wireFlight `json:"data"`
	Error      *errorBody   `json:"error"`
}

type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
	Total  int `json:"total"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireFlight struct {
	FlightDate   string       `json:"flight_date"`
	FlightStatus string       `json:"flight_status"`
	Departure    wireEndpoint `json:"departure"`
	Arrival      wireEndpoint `json:"arrival"`
	Airline      struct {
		Name string `json:"name"`
		IATA string `json:"iata"`
	} `json:"airline"`
	Flight struct {
		Number string `json:"number"`
		IATA   string `json:"iata"`
	} `json:"flight"`
	Aircraft *struct {
		IATA string `json:"iata"`
		ICAO string `json:"icao"`
	} `json:"aircraft"`
}

type wireEndpoint struct {
	Airport   string  `json:"airport"`
	IATA      string  `json:"iata"`
	Terminal  *string `json:"terminal"`
	Gate      *string `json:"gate"`
	Scheduled string  `json:"scheduled"`
}

// record normalizes a provider flight. Identity fields may come back empty;
// callers drop such records.
func (w wireFlight) record() flight.Record {
	number := w.Flight.IATA
	if number == "" {
		number = w.Flight.Number
	}
	r := flight.Record{
		FlightNumber:       flight.NormalizeFlightNumber(number),
		AirlineName:        strings.TrimSpace(w.Airline.Name),
		AirlineIATA:        strings.ToUpper(strings.TrimSpace(w.Airline.IATA)),
		DepartureAirport:   strings.ToUpper(strings.TrimSpace(w.Departure.IATA)),
		ArrivalAirport:     strings.ToUpper(strings.TrimSpace(w.Arrival.IATA)),
		ScheduledDeparture: w.Departure.Scheduled,
		ScheduledArrival:   w.Arrival.Scheduled,
		FlightDate:         w.FlightDate,
		Status:             flight.ParseStatus(w.FlightStatus),
		Terminal:           nonEmpty(w.Departure.Terminal),
		Gate:               nonEmpty(w.Departure.Gate),
	}
	if w.Aircraft != nil {
		model := w.Aircraft.IATA
		if model == "" {
			model = w.Aircraft.ICAO
		}
		r.AircraftModel = nonEmpty(&model)
	}
	return r
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
