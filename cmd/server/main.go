/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the chazarah obligation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment (config.Load), then flags
  2. Build the zap logger
  3. Open the SQLite or PostgreSQL store
  4. Create API handler (engine + tracker) and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (default: from HTTP_ADDR, ":8080")
  -db      SQLite database path (default: from DB_PATH, "chazarah.db")
           Use ":memory:" for in-memory database

ENVIRONMENT:
  HTTP_ADDR, DB_DRIVER (sqlite|postgres), DB_PATH, DATABASE_URL,
  JWT_SECRET, LOG_LEVEL, CORS_ORIGINS, SHUTDOWN_TIMEOUT

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db=":memory:"
  DB_DRIVER=postgres DATABASE_URL=postgres://localhost/chazarah ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment variables
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chazarah/obligation-engine/api"
	"github.com/chazarah/obligation-engine/chazarah"
	"github.com/chazarah/obligation-engine/config"
	"github.com/chazarah/obligation-engine/logger"
	"github.com/chazarah/obligation-engine/store/postgres"
	"github.com/chazarah/obligation-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides HTTP_ADDR)")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	if *port > 0 {
		cfg.HTTPAddr = fmt.Sprintf(":%d", *port)
	}
	cfg.DBPath = *dbPath

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	// Initialize store
	store, err := openStore(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer store.Close()

	handler := api.NewHandler(store, nil, log)
	router := api.NewRouter(handler, api.Options{
		AllowedOrigins: cfg.CORSOrigins,
		JWTSecret:      cfg.JWTSecret,
	})
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty, user routes are unauthenticated")
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting", zap.String("addr", cfg.HTTPAddr), zap.String("driver", cfg.DBDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("server stopped")
}

func openStore(cfg config.Config) (chazarah.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return postgres.New(ctx, cfg.DatabaseURL)
	default:
		return sqlite.New(cfg.DBPath)
	}
}
