package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/nonrev/internal/pipeline"
	"github.com/kalambet/nonrev/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Searcher FlightSearcher
	Version  string
}

// NewMCPServer exposes flight search and seat reporting as MCP tools, so an
// assistant can plan standby itineraries with the same data as the UI.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"nonrev",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("nonrev searches scheduled flights between airports and tracks reported open seats for standby travel."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_flights",
			mcp.WithDescription("List flights between two airports on a date, with reported open seats."),
			mcp.WithString("origin", mcp.Description("Departure airport IATA code, e.g. JFK"), mcp.Required()),
			mcp.WithString("destination", mcp.Description("Arrival airport IATA code, e.g. LAX"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Flight date as YYYY-MM-DD"), mcp.Required()),
		),
		mcpSearchFlights(deps),
	)

	s.AddTool(
		mcp.NewTool("list_departures",
			mcp.WithDescription("List every flight leaving an airport on a date."),
			mcp.WithString("origin", mcp.Description("Departure airport IATA code"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Flight date as YYYY-MM-DD"), mcp.Required()),
		),
		mcpListDepartures(deps),
	)

	s.AddTool(
		mcp.NewTool("lookup_flight",
			mcp.WithDescription("Look up a single flight number on a date."),
			mcp.WithString("flight", mcp.Description("Flight designator, e.g. DL123"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Flight date as YYYY-MM-DD"), mcp.Required()),
		),
		mcpLookupFlight(deps),
	)

	s.AddTool(
		mcp.NewTool("record_seats",
			mcp.WithDescription("Report the number of open seats on a flight."),
			mcp.WithString("flight_key", mcp.Description("Flight key as returned by search_flights (DEP_ARR_DATE_FLIGHT)"), mcp.Required()),
			mcp.WithNumber("seats_available", mcp.Description("Open seats, a non-negative integer"), mcp.Required()),
		),
		mcpRecordSeats(deps),
	)

	return s
}

func mcpSearchFlights(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := deps.Searcher.Search(ctx, pipeline.SearchRequest{
			Origin:      req.GetString("origin", ""),
			Destination: req.GetString("destination", ""),
			Date:        req.GetString("date", ""),
		})
		return mcpResult(res, err), nil
	}
}

func mcpListDepartures(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := deps.Searcher.Departures(ctx, req.GetString("origin", ""), req.GetString("date", ""))
		return mcpResult(res, err), nil
	}
}

func mcpLookupFlight(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := deps.Searcher.LookupFlight(ctx, req.GetString("flight", ""), req.GetString("date", ""))
		return mcpResult(res, err), nil
	}
}

func mcpRecordSeats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("flight_key")
		if err != nil {
			return mcpError("flight_key is required"), nil
		}
		seats, err := req.RequireFloat("seats_available")
		if err != nil {
			return mcpError("seats_available is required"), nil
		}
		if seats != float64(int(seats)) {
			return mcpError(fmt.Sprintf("seats_available must be an integer, got %v", seats)), nil
		}

		if err := deps.Searcher.RecordSeats(ctx, key, int(seats)); err != nil {
			if errors.Is(err, storage.ErrInvalidInput) {
				return mcpError(err.Error()), nil
			}
			return mcpError(fmt.Sprintf("failed to record seats: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Recorded %d seats for %s", int(seats), key)), nil
	}
}

func mcpResult(res pipeline.Result, err error) *mcp.CallToolResult {
	if err != nil {
		return mcpError(fmt.Sprintf("search failed: %v", err))
	}
	b, err := json.Marshal(searchResponse{Result: res, Note: noteFor(res)})
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal results: %v", err))
	}
	return mcpText(string(b))
}

// noteFor returns the user-facing note for a result, empty unless it was truncated.
func noteFor(res pipeline.Result) string {
	if res.Truncated {
		return truncatedNote
	}
	return ""
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
