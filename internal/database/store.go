/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package database owns the analytical store: connection management, the
// schema catalog and the guarded query executor. The store speaks two
// dialects, an embedded SQLite file for local work and PostgreSQL for a
// shared warehouse, behind one database/sql handle.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"landuse-agent/internal/config"
	"landuse-agent/internal/logging"
)

// Store wraps the database handle together with the dialect it speaks.
type Store struct {
	db       *sql.DB
	dialect  string // "sqlite" or "postgres"
	path     string
	readOnly bool
}

// Open connects to the store described by cfg and verifies the connection
// with a ping. The caller owns the returned Store and must Close it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	var (
		db      *sql.DB
		dialect string
		err     error
	)
	if cfg.IsPostgres() {
		dialect = "postgres"
		db, err = sql.Open("pgx", cfg.Path)
	} else {
		dialect = "sqlite"
		db, err = sql.Open("sqlite", sqliteDSN(cfg.Path, cfg.ReadOnly))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.PoolMaxConns)
	db.SetMaxIdleConns(cfg.PoolMinConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.Info("connected to database", "dialect", dialect, "path", redactDSN(cfg.Path))
	return &Store{db: db, dialect: dialect, path: cfg.Path, readOnly: cfg.ReadOnly}, nil
}

func sqliteDSN(path string, readOnly bool) string {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"
	if readOnly {
		dsn += "&mode=ro"
	}
	return dsn
}

// redactDSN strips credentials from a connection URL before it reaches a log
// line. Plain file paths pass through unchanged.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	u.User = url.User(u.User.Username())
	return u.String()
}

// DB exposes the underlying handle for the catalog and executor.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports which SQL dialect the store speaks.
func (s *Store) Dialect() string { return s.dialect }

// Close releases the connection pool.
func (s *Store) Close() error {
	logging.Debug("closing database", "dialect", s.dialect)
	return s.db.Close()
}
