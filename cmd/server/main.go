/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Parse flags, load TOML config
  2. Open the SQLite store
  3. Create the ledger Book and hydrate it from the store
  4. Configure the HTTP router
  5. Serve with graceful shutdown

FLAGS:
  -config  TOML config file path (optional)
  -addr    listen address, overrides config
  -db      SQLite database path, overrides config; ":memory:" works

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM the server stops accepting connections, waits up to
  30s for in-flight requests, drains pending durable writes, and closes
  the database.
*/
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harambee/chama-ledger/api"
	"github.com/harambee/chama-ledger/config"
	"github.com/harambee/chama-ledger/ledger"
	"github.com/harambee/chama-ledger/logging"
	"github.com/harambee/chama-ledger/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "TOML config file path")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logging.Setup(cfg.Log.Level)
	log := slog.Default()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	book := ledger.NewBook(store, log)
	defer book.Close()

	if err := book.Reload(context.Background()); err != nil {
		log.Error("failed to load ledger from store", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.NewHandler(book, log))
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", cfg.Server.Addr, "db", cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
	log.Info("server stopped")
}
