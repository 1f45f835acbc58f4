/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Build the API handler with the shipped legal parameters
  4. Start the month-close scheduler
  5. Start the HTTP server with graceful shutdown

CONFIGURATION:
  Flags take precedence; environment variables (optionally via .env) fill
  the defaults:
    -port / PORT           HTTP server port (default: 8080)
    -db   / DB_PATH        SQLite database path (default: payroll.db)
                           Use ":memory:" for an in-memory database
    -log  / LOG_LEVEL      logrus level (default: info)
    -scheduler             Enable the month-close scheduler (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the database connection

EXAMPLES:
  # Run with a file database
  ./server -db="./data/payroll.db"

  # Run with an in-memory database, verbose logging
  ./server -db=":memory:" -log=debug

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/andino-hr/payroll-engine/api"
	"github.com/andino-hr/payroll-engine/factory"
	"github.com/andino-hr/payroll-engine/store/sqlite"
)

func main() {
	// .env is optional; missing files are fine.
	_ = godotenv.Load()

	port := flag.String("port", envOr("PORT", "8080"), "HTTP server port")
	dbPath := flag.String("db", envOr("DB_PATH", "payroll.db"), "SQLite database path")
	logLevel := flag.String("log", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	schedulerOn := flag.Bool("scheduler", true, "enable the month-close scheduler")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("unknown log level %q, using info", *logLevel)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store, factory.DefaultConfig(), log)
	router := api.NewRouter(handler)

	scheduler := api.NewMonthCloseScheduler(store, handler)
	scheduler.Enabled = *schedulerOn
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": *port, "db": *dbPath}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}
	log.Info("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
