package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/finexia-io/finexia-stream/internal/api"
	"github.com/finexia-io/finexia-stream/internal/auth"
	"github.com/finexia-io/finexia-stream/internal/config"
	"github.com/finexia-io/finexia-stream/internal/database"
	"github.com/finexia-io/finexia-stream/internal/recorder"
	"github.com/finexia-io/finexia-stream/internal/stream"
	"github.com/finexia-io/finexia-stream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/consumer.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
		"stream_url", cfg.API.StreamURL,
		"topics", len(cfg.Topics),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Authenticate against the Finexia API
	session := auth.NewSession()
	apiClient := api.NewClient(
		cfg.API.RestURL,
		session,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	if _, err := apiClient.Login(ctx, cfg.Credentials.Username, cfg.Credentials.Password); err != nil {
		logger.Error("login failed", "error", err)
		os.Exit(1)
	}
	claims, _ := session.Claims()
	logger.Info("authenticated", "user", claims.Subject, "tenant_id", claims.TenantID)

	// Create multiplexer and recorder
	mux := stream.NewMux(stream.Config{
		BaseURL:          cfg.API.StreamURL,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		WriteTimeout:     cfg.Stream.WriteTimeout,
	}, session, logger)

	rec := recorder.NewRecorder(recorder.WriterConfig{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
	}, cfg.Recorder.BufferSize, pool, logger)

	for _, topic := range cfg.Topics {
		rec.Attach(mux, topic.Name, topic.TaskID)
	}

	if err := rec.Start(ctx); err != nil {
		logger.Error("failed to start recorder", "error", err)
		os.Exit(1)
	}

	// Health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg, pool, mux, rec),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Supervised stream connections
	group, groupCtx := errgroup.WithContext(ctx)
	for _, topic := range cfg.Topics {
		sup := stream.NewSupervisor(mux, topic.Name, topic.TaskID, logger)
		sup.BaseDelay = cfg.Stream.ReconnectBaseDelay
		sup.MaxDelay = cfg.Stream.ReconnectMaxDelay
		group.Go(func() error {
			err := sup.Run(groupCtx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	logger.Info("recorder running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	// Wait for shutdown or supervisor failure
	if err := group.Wait(); err != nil {
		logger.Error("stream supervision failed", "error", err)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	healthServer.Shutdown(shutdownCtx)
	if err := rec.Stop(shutdownCtx); err != nil {
		logger.Error("recorder stop failed", "error", err)
	}

	logger.Info("recorder stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(cfg *config.Config, pool *pgxpool.Pool, mux *stream.Mux, rec *recorder.Recorder) http.Handler {
	handler := http.NewServeMux()

	handler.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Check database
		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		// Check stream connections
		streams := make(map[string]string, len(cfg.Topics))
		for _, topic := range cfg.Topics {
			key := topic.Name
			if topic.TaskID != "" {
				key += ":" + topic.TaskID
			}
			status := mux.Status(topic.Name, topic.TaskID)
			streams[key] = string(status)
			if status != stream.StatusConnected && health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
		health.Components["streams"] = streams

		// Writer metrics
		predictions, pipeline := rec.Stats()
		health.Components["writers"] = map[string]any{
			"predictions": predictions,
			"pipeline":    pipeline,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return handler
}
