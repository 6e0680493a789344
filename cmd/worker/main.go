package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nba_salaries/ingestion/internal/bootstrap"
	"nba_salaries/ingestion/internal/config"
	"nba_salaries/ingestion/internal/metrics"
	"nba_salaries/ingestion/internal/repository"
	"nba_salaries/ingestion/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Setup logger
	setupLogger(cfg)

	log.Info().Msg("Starting NBA Salary Ingestion Worker")
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Str("sink", cfg.Sink).
		Int("season", cfg.SeasonYear).
		Msg("Configuration loaded")

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	// Initialize sink and page cache
	rt, err := bootstrap.Setup(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open sink")
	}
	defer rt.Close()
	log.Info().Str("sink", cfg.Sink).Bool("dry_run", cfg.DryRun).Msg("Pipeline ready")

	// Start metrics HTTP server
	var server *http.Server
	if cfg.EnableMetrics {
		server = startMetricsServer(cfg.MetricsPort, rt.DB)
	}

	// Update system uptime metric
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
				if rt.DB != nil {
					stat := rt.DB.Pool.Stat()
					metrics.UpdateDBConnectionStats(stat.AcquiredConns(), stat.IdleConns())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	afterRun := func(ctx context.Context) {
		if rt.DB != nil {
			updateStoredStats(ctx, rt.DB, cfg.SeasonYear)
		}
	}

	// Create and start scheduler
	sched := scheduler.NewScheduler(cfg.RefreshCron, rt.Pipeline, afterRun)

	if cfg.EnableScheduler {
		log.Info().Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		log.Info().Time("next_run", sched.Next()).Msg("Next salary refresh")
	}

	// Run initial sync if enabled
	if cfg.InitialSyncEnabled {
		log.Info().Msg("Running initial salary sync...")
		sched.RunOnce(ctx)
	}

	// Keep running until context is cancelled
	<-ctx.Done()

	// Graceful shutdown
	log.Info().Msg("Shutting down scheduler...")
	sched.Stop()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	log.Info().Msg("Worker shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger(cfg *config.Config) {
	// Pretty console logging in development
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		parsedLevel, err := zerolog.ParseLevel(cfg.LogLevel)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// updateStoredStats publishes table sizes after a successful run
func updateStoredStats(ctx context.Context, db *repository.Database, year int) {
	teams, err := db.Teams.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count teams")
		return
	}
	players, err := db.Players.CountByYear(ctx, year)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count players")
		return
	}

	metrics.UpdateStoredStats(int64(teams), int64(players))
	log.Debug().
		Int("teams", teams).
		Int("players", players).
		Int("season", year).
		Msg("Stored stats updated")
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(port int, db *repository.Database) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Int("port", port).Msg("Starting metrics server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return server
}
