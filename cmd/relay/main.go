package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/search"
	"chat-relay/server"

	authpkg "chat-relay/auth"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern keeps every defer (database and index cleanup) on the exit path and
// decouples the wiring from the process entry point.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := config.CharacterRune()
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Full-text index (Bluge)
	index, err := search.NewMessageIndex(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open message index: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = index.Close()
	}()

	// 4. Core wiring: storage, fan-out, dispatch
	stats := observability.NewStats()
	registry := runtime.NewRegistry()
	storage := repositories.NewStorage(db, logger, config.LimitMessages)
	accounts := repositories.NewAccountRepository(db)
	timeline := projection.NewTimeline(config.TimelineLimit)

	var moderator *moderation.Moderator
	if words := config.WordList(); len(words) > 0 {
		moderator, err = moderation.NewModerator(words, charReplacement)
		if err != nil {
			return exitConfig, fmt.Errorf("moderation vocabulary rejected: %w", err)
		}
	}

	router := runtime.NewRouter(logger, registry, config.BufferSize, config.SinkTimeout, stats).
		Add(index, timeline)
	dispatcher := runtime.NewDispatcher(logger, storage, router, moderator, stats)
	dispatcher.BroadcastLeave = config.BroadcastLeave

	// 5. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervised background workers
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(router, workers.NewTelemetryWorker(logger, stats, config.TelemetryInterval))
	go sup.Run(ctx)

	// 7. HTTP & WebSocket edge
	tokens := authpkg.NewTokenManager([]byte(config.AuthSecret), config.AuthTokenDuration)
	srv := server.New(ctx, server.Deps{
		Log:                  logger,
		Registry:             registry,
		Dispatcher:           dispatcher,
		Storage:              storage,
		Accounts:             accounts,
		Tokens:               tokens,
		Index:                index,
		Timeline:             timeline,
		Stats:                stats,
		ConnectionBufferSize: config.ConnectionBufferSize,
	})

	errChan := make(chan error, 1)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	go func() {
		logger.Info("Starting relay server", "address", address)
		if err := srv.Listen(address); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	if err := srv.Shutdown(); err != nil {
		logger.Warn("Server shutdown reported an error", "error", err)
	}
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
