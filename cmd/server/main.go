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

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/giphy"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanup always executes
// before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// A joining session receives history plus the welcome notice before
	// its write pump catches up; the buffer must hold all of it.
	if config.ConnectionBufferSize < config.HistoryLimit+1 {
		log.Warn("Connection buffer smaller than history window, raising it",
			"buffer", config.ConnectionBufferSize, "history", config.HistoryLimit)
		config.ConnectionBufferSize = config.HistoryLimit + 8
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Hub wiring
	store, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return fmt.Errorf("message store init failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	monitor := observability.NewMonitor(log)
	registry := runtime.NewRegistry()
	history := runtime.NewHistoryLoader(store, config.HistoryLimit, log)
	hub := runtime.NewHub(log, store, registry, history, monitor, config.LeavePrefixLen)
	searcher := giphy.NewClient(log, config.GiphyAPIKey)
	if config.GiphyAPIKey == "" {
		log.Warn("GIPHY_API_KEY not set, GIF search will answer with a configuration error")
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewGCWorker(log, db, config.GCInterval))
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. HTTP server
	server := transport.NewServer(log, hub, searcher, monitor, config.ConnectionBufferSize)
	httpServer := &http.Server{
		Addr:              config.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Chat server listening", "addr", config.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
