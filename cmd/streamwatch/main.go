// streamwatch connects to the Finexia event streams and tails decoded
// events to the console.
// Usage: go run ./cmd/streamwatch --config configs/consumer.local.yaml
//
// Required environment variables:
//
//	FINEXIA_PASSWORD - password for the configured username
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/finexia-io/finexia-stream/internal/api"
	"github.com/finexia-io/finexia-stream/internal/auth"
	"github.com/finexia-io/finexia-stream/internal/config"
	"github.com/finexia-io/finexia-stream/internal/dashboard"
	"github.com/finexia-io/finexia-stream/internal/stream"
)

func main() {
	configPath := flag.String("config", "configs/consumer.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})).With("session", uuid.NewString()[:8])

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Authenticate
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

	// Create multiplexer
	mux := stream.NewMux(stream.Config{
		BaseURL:          cfg.API.StreamURL,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		WriteTimeout:     cfg.Stream.WriteTimeout,
	}, session, logger)

	// Live prediction board, primed from REST
	board := dashboard.NewBoard(logger)
	board.Attach(mux)
	if err := board.Prime(ctx, apiClient); err != nil {
		logger.Warn("board prime failed, starting empty", "error", err)
	}

	// Print every application event per configured topic
	for _, topic := range cfg.Topics {
		for _, eventType := range watchedTypes(topic.Name) {
			mux.AddListener(topic.Name, topic.TaskID, eventType, printEvent(*verbose))
		}
		mux.AddListener(topic.Name, topic.TaskID, stream.EventConnection, func(ev stream.Event) {
			fmt.Printf("[CONNECTION] topic=%s task=%s status=%s\n", ev.Topic, ev.TaskID, ev.Status)
		})
		mux.AddListener(topic.Name, topic.TaskID, stream.EventError, func(ev stream.Event) {
			fmt.Printf("[ERROR] topic=%s task=%s err=%v\n", ev.Topic, ev.TaskID, ev.Err)
		})
	}

	// Supervised connections
	for _, topic := range cfg.Topics {
		sup := stream.NewSupervisor(mux, topic.Name, topic.TaskID, logger)
		sup.BaseDelay = cfg.Stream.ReconnectBaseDelay
		sup.MaxDelay = cfg.Stream.ReconnectMaxDelay
		go sup.Run(ctx)
	}

	// Board printer
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := board.Snapshot()
				fmt.Printf("[BOARD] entries=%d stale=%v\n", len(snap), board.Stale())
				for _, e := range snap {
					fmt.Printf("  %-10s %-5s conf=%.2f date=%s\n", e.Symbol, e.Direction, e.Confidence, e.PredictionDate)
				}
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("shutdown complete")
}

// watchedTypes maps a topic to the application event types it carries.
func watchedTypes(topic string) []string {
	switch topic {
	case config.TopicPredictions:
		return []string{stream.TypePrediction, stream.TypeNotification}
	case config.TopicPipeline:
		return []string{stream.TypePipelineStatus, stream.TypeModelStatus}
	case config.TopicSystem:
		return []string{stream.TypeSystemStatus, stream.TypeNotification}
	}
	return nil
}

func printEvent(verbose bool) stream.Listener {
	return func(ev stream.Event) {
		if verbose {
			data, _ := json.MarshalIndent(ev.Msg, "", "  ")
			fmt.Printf("[%s] %s\n", ev.Type, data)
			return
		}
		fmt.Printf("[%s] topic=%s task=%s tenant=%d id=%s data=%s\n",
			ev.Type, ev.Topic, ev.TaskID, ev.Msg.TenantID, ev.Msg.MessageID, compact(ev.Msg.Data))
	}
}

func compact(data json.RawMessage) string {
	if len(data) > 120 {
		return string(data[:120]) + "..."
	}
	return string(data)
}
