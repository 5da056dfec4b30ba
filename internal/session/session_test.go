package session

import (
	"context"
	"testing"
	"time"
)

func TestStart_FreshIDs(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	a, err := Start(store)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	b, _ := Start(store)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("ids: %q, %q", a.ID(), b.ID())
	}
}

func TestSession_RenewRebinds(t *testing.T) {
	ctx := context.Background()
	sess := New(NewMemoryStore(time.Hour), "pre-login")
	sess.Put(ctx, KeyAccessToken, "AT1")

	if err := sess.Renew(ctx); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if sess.ID() == "pre-login" {
		t.Fatal("id unchanged after Renew")
	}
	if v, _, _ := sess.Get(ctx, KeyAccessToken); v != "AT1" {
		t.Errorf("handle lost contents: got %q", v)
	}
}

// --- Flow state ---

func TestFlow_RoundTrip(t *testing.T) {
	ctx := context.Background()
	sess := New(NewMemoryStore(time.Hour), "s1")

	want := FlowState{CSRFToken: "st", PKCEVerifier: "ver", Provider: "google", Nonce: "n"}
	if err := SaveFlow(ctx, sess, want); err != nil {
		t.Fatalf("SaveFlow: %v", err)
	}
	got, err := LoadFlow(ctx, sess)
	if err != nil {
		t.Fatalf("LoadFlow: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if !got.Ready() {
		t.Error("complete flow should be Ready")
	}

	if err := ClearFlow(ctx, sess); err != nil {
		t.Fatalf("ClearFlow: %v", err)
	}
	got, _ = LoadFlow(ctx, sess)
	if got != (FlowState{}) || got.Ready() {
		t.Errorf("after ClearFlow: %+v", got)
	}
}

func TestFlow_NewFlowDropsStaleNonce(t *testing.T) {
	ctx := context.Background()
	sess := New(NewMemoryStore(time.Hour), "s1")
	SaveFlow(ctx, sess, FlowState{CSRFToken: "a", PKCEVerifier: "b", Provider: "google", Nonce: "old"})
	SaveFlow(ctx, sess, FlowState{CSRFToken: "c", PKCEVerifier: "d", Provider: "github"})

	got, _ := LoadFlow(ctx, sess)
	if got.Nonce != "" {
		t.Errorf("nonce from previous flow survived: %q", got.Nonce)
	}
	if got.CSRFToken != "c" {
		t.Errorf("last writer should win: got %q", got.CSRFToken)
	}
}

func TestFlow_MissingVerifierNotReady(t *testing.T) {
	ctx := context.Background()
	sess := New(NewMemoryStore(time.Hour), "s1")
	sess.Put(ctx, KeyState, "st")
	sess.Put(ctx, KeyProvider, "google")

	got, err := LoadFlow(ctx, sess)
	if err != nil {
		t.Fatalf("LoadFlow: %v", err)
	}
	if got.Ready() {
		t.Error("flow without verifier must not be Ready")
	}
}
