package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/kalambet/nonrev/internal/flight"
	"github.com/kalambet/nonrev/internal/pipeline"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// searchResult mirrors the server's search response.
type searchResult struct {
	pipeline.Result
	Note string `json:"note"`
}

// printFlights writes one row per flight. Preferred carriers are starred.
func printFlights(w io.Writer, res searchResult) {
	if len(res.Flights) == 0 {
		fmt.Fprintln(w, "No flights found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FLIGHT\tAIRLINE\tROUTE\tDEPARTS\tARRIVES\tSTATUS\tSEATS\tKEY")
	for _, f := range res.Flights {
		number := f.FlightNumber
		if f.Preferred {
			number = "*" + number
		}
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\t%s\t%s\t%s\n",
			number,
			f.AirlineName,
			f.DepartureAirport, f.ArrivalAirport,
			f.ScheduledDeparture,
			f.ScheduledArrival,
			f.Status,
			seatLabel(f),
			f.FlightKey,
		)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d flights (source: %s)\n", len(res.Flights), res.Source)
	if res.Note != "" {
		fmt.Fprintln(w, colorize(colorYellow, res.Note))
	}
}

func seatLabel(f flight.Enriched) string {
	if f.SeatsAvailable == nil {
		return "-"
	}
	label := strconv.Itoa(*f.SeatsAvailable)
	if f.SeatsStale {
		label += " (outdated)"
	}
	return label
}
