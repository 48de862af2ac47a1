// Package main implements slice-server: a thin read-only HTTP query
// server over a slice manifest database produced by cmd/slicer. Config
// resolves from flags with env-var fallback, a single-connection
// *sql.DB backs the handlers (manifests are small and read-mostly), and
// shutdown drains in-flight requests on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// requiredTables lists the store.Write schema this server queries against;
// a manifest missing any of them is not a slice database at all (wrong
// path, or a database from an interrupted run) and the server refuses to
// serve rather than returning empty results that look like a real slice.
var requiredTables = []string{"retained_lines", "criteria", "stats"}

type config struct {
	dbPath string
	port   string
}

func configFromEnv() (config, error) {
	dbPath := flag.String("db", "", "Path to a slice manifest SQLite database. Can be set via DB_PATH env.")
	port := flag.String("port", "8080", "HTTP port. Can be set via PORT env.")
	flag.Parse()

	cfg := config{dbPath: *dbPath, port: *port}
	if cfg.dbPath == "" {
		cfg.dbPath = os.Getenv("DB_PATH")
	}
	if cfg.dbPath == "" {
		return config{}, fmt.Errorf("db path required: set -db or DB_PATH")
	}
	if env := os.Getenv("PORT"); cfg.port == "8080" && env != "" {
		cfg.port = env
	}
	return cfg, nil
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})

	cfg, err := configFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	db, err := openManifest(cfg.dbPath)
	if err != nil {
		log.WithError(err).Fatal("open manifest")
	}
	defer db.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.port,
		Handler:      NewApp(db).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.port, "db": cfg.dbPath}).Info("listening")
		serveErr <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server")
		}
	case <-quit:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("shutdown")
			os.Exit(1)
		}
	}
}

// openManifest opens the manifest database read-mostly (a single
// connection is plenty for a generated, immutable file) and verifies its
// schema carries every table the handlers query, failing fast rather
// than serving a server that can only 500 on first request.
func openManifest(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := verifySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func verifySchema(db *sql.DB) error {
	for _, table := range requiredTables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("manifest missing table %q: not a slice manifest database", table)
		}
		if err != nil {
			return fmt.Errorf("check table %q: %w", table, err)
		}
	}
	return nil
}
