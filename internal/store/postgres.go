// Package store persists the gateway's login audit trail in Postgres.
//
// postgres.go -- pgxpool connection setup and queries.
// Creates a connection pool at startup, shared across all handlers.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the store used by the program to talk to Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool, pings it, and returns a ready-to-use store.
// Call once at startup from main.go...the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	// Create a pool w/ database url, return if err
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	// Ping db to make sure connection works
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
// Supposed to call via defer in main.go after creating the store.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks connectivity, used by the health check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RecordLogin inserts e, generating its id when unset. CreatedAt is set by the database.
func (s *PostgresStore) RecordLogin(ctx context.Context, e LoginEvent) error {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating login event id: %w", err)
		}
		e.ID = id
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO login_events (id, provider, action, outcome, subject, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		e.ID, e.Provider, e.Action, e.Outcome, e.Subject, e.IPAddress, e.UserAgent)
	if err != nil {
		return fmt.Errorf("recording login event: %w", err)
	}
	return nil
}

// RecentLogins returns up to limit events for subject at provider, newest first.
func (s *PostgresStore) RecentLogins(ctx context.Context, provider, subject string, limit int) ([]LoginEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, provider, action, outcome, COALESCE(subject, ''), ip_address::text, user_agent, created_at
		   FROM login_events
		  WHERE provider = $1 AND subject = $2
		  ORDER BY created_at DESC
		  LIMIT $3`,
		provider, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("querying login events: %w", err)
	}

	// CollectRows closes rows for us
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LoginEvent, error) {
		var e LoginEvent
		err := row.Scan(&e.ID, &e.Provider, &e.Action, &e.Outcome, &e.Subject, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning login events: %w", err)
	}
	return events, nil
}
