package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"meet-lab/contract"
	"meet-lab/infrastructure/api"
	"meet-lab/infrastructure/ws"
	"meet-lab/internal"
	"meet-lab/observability"
	"meet-lab/repositories"
	"meet-lab/routing"
	"meet-lab/runtime"
	"meet-lab/runtime/workers"
	"meet-lab/services"
	"meet-lab/sink"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and owns the server lifecycle so that deferred cleanups always run.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, RecordMapper)
	}

	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages, config.MessageTTL)
	var roomRepository repositories.IRoomRepository = repositories.NewRoomRepository(db, logger, config.RoomTTL)
	if config.StoreBackend == internal.BackendRedis {
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return exitRuntime, fmt.Errorf("redis unreachable at %s: %w", config.RedisAddr, err)
		}
		defer func() {
			logger.Info("Closing Redis client...")
			_ = client.Close()
		}()
		roomRepository = repositories.NewRedisRoomRepository(client, logger, config.RoomTTL)
	}

	// 3. Routing provider
	var router contract.RouteProvider = routing.NewHaversine(logger)
	if config.OrsAPIKey != "" {
		router = routing.NewORSClient(logger, config.OrsBaseURL, config.OrsAPIKey, config.RoutingTimeout)
	} else {
		logger.Warn("ORS_API_KEY is not set, falling back to straight-line estimates")
	}

	// 4. Moderation & Monitoring
	moderator, err := runtime.PrepareModeration(logger, charReplacement)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderation setup failed: %w", err)
	}
	monitoring, err := observability.NewMonitoringManager(logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("monitoring setup failed: %w", err)
	}

	// 5. Setup Supervision & Orchestration
	orchestrator := runtime.NewOrchestrator(
		logger,
		workers.NewSupervisor(logger, config.RestartInterval),
		runtime.NewRegistry(config.TombstoneCapacity),
		runtime.NewRoomStore(),
		router, moderator, monitoring,
		config.BufferSize, config.SinkTimeout, config.RoutingTimeout, config.MetricInterval,
	)
	orchestrator.Add(
		sink.NewRoomRecordSink(roomRepository, logger),
		sink.NewDiskSink(messageRepository, logger),
	)

	errChan := make(chan error, 2)
	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. HTTP & WebSocket
	service := services.NewPresenceService(orchestrator, router, roomRepository, messageRepository, monitoring)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           api.NewRouter(logger, service, ws.NewHandler(logger, service, config.ConnectionBufferSize, config.MaxMessageSize, config.SinkTimeout), os.Stdout),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		orchestrator.Stop()
		return exitRuntime, err
	}

	// 8. Graceful Shutdown
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
	}
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}

// RecordMapper renders room records and chat lines in the debug inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, "room:"):
		var record repositories.RoomRecord
		if err := record.UnmarshalBinary(val); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "ROOM"
		row.Detail = "created " + record.CreatedAt.Format(time.RFC3339)
		if record.Destination != nil {
			row.Detail += fmt.Sprintf(", meeting point %.5f,%.5f", record.Destination.Lat, record.Destination.Lng)
		}
	case strings.HasPrefix(key, "msg:"):
		var message repositories.DiskMessage
		if err := json.Unmarshal(val, &message); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "CHAT"
		if message.System {
			row.Type = "SYSTEM"
		}
		row.Detail = message.Author + ": " + message.Content
	}
	return row
}
