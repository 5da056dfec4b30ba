package store

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
)

// --- RecordLogin ---

func TestRecordLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("stores event with generated id", func(t *testing.T) {
		subject := "record-" + uuid.Must(uuid.NewV7()).String()
		t.Cleanup(func() { cleanupEvents(t, ctx, subject) })

		err := testStore.RecordLogin(ctx, LoginEvent{
			Provider:  "google",
			Action:    "login",
			Outcome:   "success",
			Subject:   subject,
			IPAddress: strPtr("203.0.113.7"),
			UserAgent: strPtr("test-agent"),
		})
		if err != nil {
			t.Fatalf("RecordLogin: %v", err)
		}

		events, err := testStore.RecentLogins(ctx, "google", subject, 10)
		if err != nil {
			t.Fatalf("RecentLogins: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		e := events[0]
		if e.ID == uuid.Nil {
			t.Error("expected generated id, got nil UUID")
		}
		if e.Outcome != "success" || e.Action != "login" {
			t.Errorf("unexpected action/outcome: %q/%q", e.Action, e.Outcome)
		}
		if e.IPAddress == nil || *e.IPAddress != "203.0.113.7" {
			t.Errorf("ip address: got %v", e.IPAddress)
		}
		if e.UserAgent == nil || *e.UserAgent != "test-agent" {
			t.Errorf("user agent: got %v", e.UserAgent)
		}
		if time.Since(e.CreatedAt) > time.Minute {
			t.Errorf("created_at looks wrong: %v", e.CreatedAt)
		}
	})

	t.Run("nil ip and agent stored as NULL", func(t *testing.T) {
		subject := "nulls-" + uuid.Must(uuid.NewV7()).String()
		t.Cleanup(func() { cleanupEvents(t, ctx, subject) })

		if err := testStore.RecordLogin(ctx, LoginEvent{Provider: "fusion", Action: "logout", Outcome: "success", Subject: subject}); err != nil {
			t.Fatalf("RecordLogin: %v", err)
		}
		events, err := testStore.RecentLogins(ctx, "fusion", subject, 10)
		if err != nil {
			t.Fatalf("RecentLogins: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].IPAddress != nil || events[0].UserAgent != nil {
			t.Errorf("expected NULL ip/agent, got %v / %v", events[0].IPAddress, events[0].UserAgent)
		}
	})

	t.Run("empty subject stored as NULL", func(t *testing.T) {
		id := uuid.Must(uuid.NewV7())
		t.Cleanup(func() { testStore.pool.Exec(ctx, "DELETE FROM login_events WHERE id = $1", id) })

		if err := testStore.RecordLogin(ctx, LoginEvent{ID: id, Provider: "github", Action: "login", Outcome: "state_mismatch"}); err != nil {
			t.Fatalf("RecordLogin: %v", err)
		}
		var isNull bool
		if err := testStore.pool.QueryRow(ctx, "SELECT subject IS NULL FROM login_events WHERE id = $1", id).Scan(&isNull); err != nil {
			t.Fatalf("querying event: %v", err)
		}
		if !isNull {
			t.Error("expected subject to be NULL")
		}
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		err := testStore.RecordLogin(ctx, LoginEvent{Provider: "google", Action: "refresh", Outcome: "success", Subject: "x"})
		if err == nil {
			t.Fatal("expected CHECK constraint violation, got nil")
		}
	})
}

// --- RecentLogins ---

func TestRecentLogins(t *testing.T) {
	ctx := context.Background()
	subject := "recent-" + uuid.Must(uuid.NewV7()).String()
	t.Cleanup(func() { cleanupEvents(t, ctx, subject) })

	for _, outcome := range []string{"success", "exchange_failed", "success"} {
		if err := testStore.RecordLogin(ctx, LoginEvent{Provider: "google", Action: "login", Outcome: outcome, Subject: subject}); err != nil {
			t.Fatalf("RecordLogin: %v", err)
		}
	}
	// Same subject at another provider must not show up
	if err := testStore.RecordLogin(ctx, LoginEvent{Provider: "fusion", Action: "login", Outcome: "success", Subject: subject}); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}

	t.Run("filters by provider and honours limit", func(t *testing.T) {
		events, err := testStore.RecentLogins(ctx, "google", subject, 2)
		if err != nil {
			t.Fatalf("RecentLogins: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		for _, e := range events {
			if e.Provider != "google" {
				t.Errorf("unexpected provider %q", e.Provider)
			}
		}
	})

	t.Run("newest first", func(t *testing.T) {
		events, err := testStore.RecentLogins(ctx, "google", subject, 10)
		if err != nil {
			t.Fatalf("RecentLogins: %v", err)
		}
		for i := 1; i < len(events); i++ {
			if events[i].CreatedAt.After(events[i-1].CreatedAt) {
				t.Errorf("events not ordered newest first at %d", i)
			}
		}
	})

	t.Run("unknown subject returns empty", func(t *testing.T) {
		events, err := testStore.RecentLogins(ctx, "google", "nobody-"+subject, 10)
		if err != nil {
			t.Fatalf("RecentLogins: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("expected no events, got %d", len(events))
		}
	})
}
