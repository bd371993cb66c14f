package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/nonrev/internal/api"
	"github.com/kalambet/nonrev/internal/aviationstack"
	"github.com/kalambet/nonrev/internal/config"
	"github.com/kalambet/nonrev/internal/events"
	"github.com/kalambet/nonrev/internal/maintenance"
	"github.com/kalambet/nonrev/internal/metrics"
	"github.com/kalambet/nonrev/internal/pipeline"
	"github.com/kalambet/nonrev/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		return runServer(host)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the flight tools to an MCP client over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "interface to listen on")
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// app holds the long-lived components shared by serve and mcp.
type app struct {
	cfg       config.Config
	store     *storage.Store
	cache     pipeline.FlightCache
	publisher events.Publisher
	metrics   *metrics.Metrics
	searcher  *pipeline.Searcher
	closers   []func() error
}

func openStore(cfg config.Config) (*storage.Store, error) {
	switch cfg.Storage.Driver {
	case storage.DriverPostgres:
		return storage.OpenPostgres(cfg.Storage.DSN)
	default:
		return storage.Open(cfg.Storage.DataDir)
	}
}

func newApp(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New(reg)}

	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	a.cache = store

	if cfg.Cache.Backend == "redis" {
		client, err := storage.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		rc := storage.NewRedisCache(client, "nonrev:", cfg.Cache.RedisRetention)
		a.cache = rc
		a.closers = append(a.closers, rc.Close)
		slog.Info("using redis flight cache", "addr", cfg.Cache.RedisAddr)
	}

	a.publisher = events.Noop{}
	if cfg.Events.AMQPURL != "" {
		a.publisher = events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Queue)
		slog.Info("publishing seat updates", "queue", cfg.Events.Queue)
	}
	a.closers = append(a.closers, a.publisher.Close)

	client := aviationstack.NewClientWithBaseURL(cfg.Upstream.AccessKey, cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	client.SetUserAgent("nonrev/" + version)

	a.searcher = pipeline.NewSearcher(pipeline.Deps{
		Cache:     a.cache,
		Seats:     store,
		Source:    client,
		Publisher: a.publisher,
		Metrics:   a.metrics,
	}, pipeline.Options{
		FreshnessWindow:   cfg.Cache.FreshnessWindow,
		PageLimit:         cfg.Upstream.PageLimit,
		MaxPages:          cfg.Upstream.MaxPages,
		PreferredCarriers: cfg.Search.PreferredCarriers,
		SeedPlaceholders:  cfg.Seats.SeedPlaceholders,
		SeatsStaleAfter:   cfg.Seats.StaleAfter,
	})
	return a, nil
}

// Close releases components in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closing component", "error", err)
		}
	}
}

func loadServeConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	setupLogging(cfg.Log.Level)
	return cfg, nil
}

func runServer(host string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}
	slog.Info("starting nonrev", "version", version, "storage", cfg.Storage.Driver, "cache", cfg.Cache.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.APIToken == "" {
		slog.Warn("server.api_token is not set; seat routes accept unauthenticated writes")
	}

	handler := api.NewHandler(api.Deps{
		Searcher:    a.searcher,
		Seats:       a.store,
		Tables:      a.store,
		Token:       cfg.Server.APIToken,
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     a.metrics,
		Gatherer:    prometheus.DefaultGatherer,
	})

	addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("nonrev listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Cache.Backend == "sql" && cfg.Cache.PurgeAfter > 0 {
		purger := maintenance.NewPurger(a.store, cfg.Cache.PurgeAfter, cfg.Cache.PurgeInterval, a.metrics)
		g.Go(func() error {
			purger.Run(gctx)
			return nil
		})
	}

	return g.Wait()
}

func runMCP() error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{Searcher: a.searcher, Version: version})
	slog.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}
