// Package db wires up the Postgres connection pool and embedded schema
// migrations for the six orchepy_* tables (spec.md §6).
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// maxOpenConns mirrors spec.md §5's "single DB connection pool (max 5
// default)".
const maxOpenConns = 5

// DB wraps the shared connection pool used by every repository.
type DB struct {
	conn *sqlx.DB
}

// New opens a pgx-backed Postgres connection pool at databaseURL.
func New(databaseURL string) (*DB, error) {
	conn, err := sqlx.Connect("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxOpenConns)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close releases the pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying *sqlx.DB for repository construction.
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// Migrate runs every embedded migration that has not yet been applied.
func (db *DB) Migrate() error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	var stdConn *sql.DB = db.conn.DB
	if err := goose.Up(stdConn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
