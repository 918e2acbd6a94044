package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/asclepius/internal/config"
	"github.com/UnknownOlympus/asclepius/internal/dispatch"
	"github.com/UnknownOlympus/asclepius/internal/facilities"
	"github.com/UnknownOlympus/asclepius/internal/metrics"
	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/UnknownOlympus/asclepius/internal/observer"
	"github.com/UnknownOlympus/asclepius/internal/report"
	"github.com/UnknownOlympus/asclepius/internal/routing"
	"github.com/UnknownOlympus/asclepius/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

var version = "dev"

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	if err := report.SetupSentry(cfg.SentryDSN, cfg.Env, version); err != nil {
		logger.ErrorContext(ctx, "Failed to initialize Sentry, error reporting disabled", "error", err)
	}
	report.ConfigureScope(cfg.Env, version, cfg.Provider.Type)
	defer report.FlushSentry()

	// Pick the facility source: the CSV asset or the postgres table.
	source, health, closeSource := mustFacilitySource(ctx, cfg, logger)
	defer closeSource()

	list, err := source.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load facilities: %v", err)
	}
	appMetrics.FacilitiesTotal.Set(float64(len(list)))
	logger.InfoContext(ctx, "Facilities loaded", "count", len(list), "source", cfg.Facilities.Source)

	// Create routing provider using factory pattern based on configuration.
	providerConfig := routing.ProviderConfig{
		Type:       routing.ProviderType(cfg.Provider.Type),
		APIKey:     cfg.Provider.APIKey,
		BaseURL:    cfg.Provider.BaseURL,
		RateLimit:  cfg.Provider.RateLimit,
		Timeout:    cfg.Provider.Timeout,
		HTTPClient: routing.NewPooledClient(cfg.Provider.Timeout, appMetrics.OutgoingLatency),
		Logger:     logger,
	}

	routeProvider, err := routing.NewProvider(providerConfig)
	if err != nil {
		log.Fatalf("Failed to create routing provider: %v", err)
	}

	logger.InfoContext(ctx, "Routing provider initialized", "type", cfg.Provider.Type)

	fetcher := routing.NewFetcher(logger, routeProvider, cfg.Provider.Type, appMetrics)

	session := startSession(ctx, cfg, logger, fetcher, appMetrics, list)
	if session != nil {
		defer session.Close()
	}

	srv := server.New(server.Options{
		Logger:     logger,
		Facilities: source,
		Fetcher:    fetcher,
		Metrics:    appMetrics,
		Gatherer:   reg,
		Session:    session,
		Health:     health,
	})

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	httpServer := startHTTPServer(ctx, logger, srv.Routes(), cfg.Port)

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	shutdownTimeout := 10 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "HTTP server shutdown failed", "error", err)
	}
	fetcher.Wait()

	// Log graceful shutdown completion.
	logger.InfoContext(shutdownCtx, "Application stopped gracefully.")
}

// mustFacilitySource builds the configured facility source. For postgres it also
// returns a readiness check and a function releasing the pool.
func mustFacilitySource(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (facilities.Source, func(context.Context) error, func()) {
	if cfg.Facilities.Source != config.SourcePostgres {
		return facilities.NewCSVSource(cfg.Facilities.Path, logger), nil, func() {}
	}

	dtb, err := facilities.NewDatabase(
		ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	repo := facilities.NewRepository(dtb, logger)
	if err = repo.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize facilities schema: %v", err)
	}

	return repo, dtb.Ping, dtb.Close
}

// startSession starts the tracking session when an observer is configured: a serial
// GPS receiver takes precedence over a fixed location. Returns nil when neither is set.
func startSession(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	fetcher *routing.Fetcher,
	appMetrics *metrics.Metrics,
	list []models.Facility,
) *dispatch.Session {
	if cfg.Observer.Device == "" && cfg.Observer.Location == "" {
		return nil
	}

	session := dispatch.NewSession(logger, fetcher, appMetrics, list,
		dispatch.WithOnChange(func(snapshot dispatch.Snapshot) {
			logger.InfoContext(ctx, "Session changed",
				"version", snapshot.Version, "state", snapshot.State.String())
		}))

	update := func(location models.Coordinate) {
		if err := session.UpdateObserver(ctx, location); err != nil {
			logger.WarnContext(ctx, "Observer update rejected", "error", err)
		}
	}

	if cfg.Observer.Device != "" {
		port, err := observer.OpenSerial(cfg.Observer.Device, cfg.Observer.Baud)
		if err != nil {
			log.Fatalf("Failed to open GPS receiver: %v", err)
		}

		go func() {
			defer port.Close()
			if errWatch := observer.NewNMEASource(port, logger).Watch(ctx, update); errWatch != nil &&
				!errors.Is(errWatch, context.Canceled) {
				logger.ErrorContext(ctx, "GPS receiver stopped", "error", errWatch)
				report.ReportError(errWatch)
			}
		}()

		return session
	}

	location, err := models.ParseCoordinate(cfg.Observer.Location)
	if err != nil {
		log.Fatalf("Failed to parse observer location: %v", err)
	}
	current, err := observer.NewStatic(&location).Current(ctx)
	if err != nil {
		log.Fatalf("Failed to read observer location: %v", err)
	}
	update(current)

	return session
}

// startHTTPServer starts the API server, which also serves health check and metrics endpoints.
// It listens on the specified port in a goroutine and logs the server's status and any errors encountered.
func startHTTPServer(ctx context.Context, log *slog.Logger, handler http.Handler, port int) *http.Server {
	readTimeout := 5
	writeTimeout := 30
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	go func() {
		log.InfoContext(ctx, "Starting HTTP server", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "HTTP server failed", "error", err)
		}
	}()

	return server
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified	 or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
