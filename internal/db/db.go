// Package db provides database utilities and connection handling for the
// scoring API server.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	// defaultMaxOpenConns bounds the connection pool. Score recomputation
	// fans out short queries, so a modest pool is enough.
	defaultMaxOpenConns = 25

	// defaultMaxIdleConns keeps warm connections for burst traffic.
	defaultMaxIdleConns = 5

	// defaultConnMaxLifetime recycles connections so load balancer and
	// server-side timeouts never hand us a dead connection.
	defaultConnMaxLifetime = 30 * time.Minute
)

// Open connects to PostgreSQL, configures the connection pool, and verifies
// the connection with a ping.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(defaultMaxOpenConns)
	conn.SetMaxIdleConns(defaultMaxIdleConns)
	conn.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, nil
}
