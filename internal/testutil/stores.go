// stores.go
//
// Shared fakes for the gateway's storage-side dependencies.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/MGallo-Code/authgate/internal/session"
	"github.com/MGallo-Code/authgate/internal/store"
)

// MockAuditor implements auth.Auditor, keeping events in memory.
// Set RecordErr to make every RecordLogin fail.
type MockAuditor struct {
	RecordErr error

	mu     sync.Mutex
	events []store.LoginEvent
}

func (a *MockAuditor) RecordLogin(_ context.Context, e store.LoginEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.RecordErr != nil {
		return a.RecordErr
	}
	a.events = append(a.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (a *MockAuditor) Events() []store.LoginEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]store.LoginEvent(nil), a.events...)
}

// Last returns the most recent event, failing t if there is none.
func (a *MockAuditor) Last(t testing.TB) store.LoginEvent {
	t.Helper()
	events := a.Events()
	if len(events) == 0 {
		t.Fatal("expected an audit event, got none")
	}
	return events[len(events)-1]
}

// MockPinger implements auth.Pinger.
type MockPinger struct {
	Err error
}

func (p MockPinger) Ping(context.Context) error { return p.Err }

// FaultyStore wraps a real session.Store and injects errors per operation.
// Zero value fields pass through to the wrapped store.
type FaultyStore struct {
	session.Store

	PutErr   error
	GetErr   error
	RenewErr error
}

func (s *FaultyStore) Put(ctx context.Context, id, key, value string) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	return s.Store.Put(ctx, id, key, value)
}

func (s *FaultyStore) Get(ctx context.Context, id, key string) (string, bool, error) {
	if s.GetErr != nil {
		return "", false, s.GetErr
	}
	return s.Store.Get(ctx, id, key)
}

func (s *FaultyStore) Renew(ctx context.Context, id string) (string, error) {
	if s.RenewErr != nil {
		return "", s.RenewErr
	}
	return s.Store.Renew(ctx, id)
}
