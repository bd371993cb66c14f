package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/nonrev/internal/config"
	"github.com/kalambet/nonrev/internal/storage"
)

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <origin> <destination> <date>",
	Short: "Search flights between two airports",
	Long: `Search flights between two airports on a date through a running server.

Examples:
  nonrev search JFK LAX 2025-04-15
  nonrev search jfk lax 2025-04-15 --json`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		q.Set("origin", args[0])
		q.Set("destination", args[1])
		q.Set("date", args[2])
		return runQuery(cmd, "/search?"+q.Encode())
	},
}

var departuresCmd = &cobra.Command{
	Use:   "departures <origin> <date>",
	Short: "List every flight leaving an airport on a date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		q.Set("origin", args[0])
		q.Set("date", args[1])
		return runQuery(cmd, "/departures?"+q.Encode())
	},
}

var flightCmd = &cobra.Command{
	Use:   "flight <number> <date>",
	Short: "Look up a single flight",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		q.Set("flight", args[0])
		q.Set("date", args[1])
		return runQuery(cmd, "/flight?"+q.Encode())
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, departuresCmd, flightCmd} {
		c.Flags().Bool("json", false, "print the raw JSON response")
	}
}

func runQuery(cmd *cobra.Command, path string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	return fetchFlights(cmd.Context(), client, path, asJSON, os.Stdout)
}

func fetchFlights(ctx context.Context, client *apiClient, path string, asJSON bool, w io.Writer) error {
	resp, err := client.get(ctx, path)
	if err != nil {
		return err
	}

	var res searchResult
	if err := decodeJSON(resp, &res); err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printFlights(w, res)
	return nil
}

// --- seats ---

var seatsCmd = &cobra.Command{
	Use:   "seats",
	Short: "Report or inspect open seat counts",
}

var seatsSetCmd = &cobra.Command{
	Use:   "set <flight-key> <seats>",
	Short: "Report the number of open seats on a flight",
	Long: `Report the number of open seats on a flight. The flight key is shown in
the KEY column of "nonrev search".

Example:
  nonrev seats set JFK_LAX_2025-04-15_DL123 4`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seats, err := parseSeats(args[1])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := recordSeats(cmd.Context(), client, args[0], seats); err != nil {
			return err
		}
		printSuccess("Recorded %d seats for %s", seats, args[0])
		return nil
	},
}

var seatsGetCmd = &cobra.Command{
	Use:   "get <flight-key>",
	Short: "Show the reported seat count for a flight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/seats/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var row struct {
			FlightKey      string     `json:"flight_key"`
			SeatsAvailable *int       `json:"seats_available"`
			UpdatedAt      *time.Time `json:"updated_at"`
		}
		if err := decodeJSON(resp, &row); err != nil {
			return err
		}
		if row.SeatsAvailable == nil {
			printStatus(row.FlightKey, "no seat report yet")
			return nil
		}
		printStatus(row.FlightKey, "%d seats (reported %s)", *row.SeatsAvailable, row.UpdatedAt.Local().Format(time.RFC1123))
		return nil
	},
}

var seatsClearCmd = &cobra.Command{
	Use:   "clear <flight-key>",
	Short: "Delete the seat report for a flight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/seats/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]bool
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Cleared seats for %s", args[0])
		return nil
	},
}

func init() {
	seatsCmd.AddCommand(seatsSetCmd)
	seatsCmd.AddCommand(seatsGetCmd)
	seatsCmd.AddCommand(seatsClearCmd)
}

func parseSeats(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("seats must be a whole number, got %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("seats must not be negative, got %d", n)
	}
	return n, nil
}

func recordSeats(ctx context.Context, client *apiClient, flightKey string, seats int) error {
	resp, err := client.post(ctx, "/seats", map[string]any{
		"flightKey":      flightKey,
		"seatsAvailable": seats,
	})
	if err != nil {
		return err
	}
	var result struct {
		Success bool `json:"success"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("server did not confirm the seat report")
	}
	return nil
}

// --- db ---

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and maintain the local database",
}

var dbTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List database tables and row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			tables, err := store.Tables(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tables {
				printStatus(t.Name, "%d rows", t.Rows)
			}
			return nil
		})
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			versions, err := store.AppliedMigrations()
			if err != nil {
				return err
			}
			printSuccess("Schema up to date (%s, %d migrations applied)", store.Driver(), len(versions))
			return nil
		})
	},
}

var dbPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached flight lists older than a given age",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			printWarning("Nothing to do: --older-than must be positive.")
			return nil
		}
		return withStore(func(store *storage.Store) error {
			n, err := store.PurgeFlights(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			printSuccess("Purged %d cached flight lists", n)
			return nil
		})
	},
}

func init() {
	dbPurgeCmd.Flags().Duration("older-than", 7*24*time.Hour, "delete entries stored longer ago than this")
	dbCmd.AddCommand(dbTablesCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbPurgeCmd)
}

// withStore opens the configured store, which applies pending migrations,
// and closes it after fn returns.
func withStore(fn func(*storage.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		fmt.Printf("\n  config file:  %s\n  secrets file: %s\n", config.ConfigFilePath(), config.SecretsFilePath())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value (an empty value resets it)",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.ValidKeys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if config.IsSecret(key) {
			printSuccess("Stored secret %s in %s", key, config.SecretsFilePath())
			return nil
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
