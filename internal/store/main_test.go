package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"testing"
)

// Shared test connection for the store package
var testStore *PostgresStore

// TestMain connects to TEST_DATABASE_URL, migrates, runs all store tests, tears down.
// Without TEST_DATABASE_URL the package is skipped; these tests need a real Postgres.
func TestMain(m *testing.M) {
	ctx := context.Background()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "TEST_DATABASE_URL not set, skipping store tests")
		os.Exit(0)
	}

	ps, err := NewPostgresStore(ctx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	testStore = ps

	if err := testStore.Migrate(ctx, migrationsOnDisk()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		testStore.Close()
		os.Exit(1)
	}

	code := m.Run()
	// Couldn't defer close bc Exit(), call here
	testStore.Close()
	os.Exit(code)
}

// --- Helpers ---

// migrationsOnDisk is the migrations directory main.go embeds.
func migrationsOnDisk() fs.FS { return os.DirFS("../../migrations") }

// Delete every event for subject, for cleanup
func cleanupEvents(t *testing.T, ctx context.Context, subjects ...string) {
	t.Helper()
	for _, s := range subjects {
		testStore.pool.Exec(ctx, "DELETE FROM login_events WHERE subject = $1", s)
	}
}

func strPtr(s string) *string { return &s }
