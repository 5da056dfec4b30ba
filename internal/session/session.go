// Package session is the server-side key/value store behind the gateway's session cookie.
//
// The browser only ever holds an opaque session id. Everything else (flow state during
// login, provider tokens afterwards) lives in a Store keyed by that id.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
)

// ErrSessionNotFound is returned by Renew when the id has no stored contents.
var ErrSessionNotFound = errors.New("session not found")

// Keys the gateway stores in a session.
const (
	KeyState        = "oauth_state"
	KeyCodeVerifier = "oauth_code_verifier"
	KeyProvider     = "oauth_provider"
	KeyNonce        = "oauth_nonce"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyAuthProvider = "auth_provider"
)

// Store holds session contents. Implementations must be safe for concurrent use,
// must not let one id observe another's keys, and must not serialize unrelated ids
// behind a shared lock for longer than a map access.
type Store interface {
	// Put sets key in session id, creating the session if needed.
	Put(ctx context.Context, id, key, value string) error
	// Get returns ("", false, nil) for a missing key or session.
	Get(ctx context.Context, id, key string) (string, bool, error)
	// Delete removes keys from session id. Missing keys are ignored.
	Delete(ctx context.Context, id string, keys ...string) error
	// Purge destroys the session.
	Purge(ctx context.Context, id string) error
	// Renew moves the contents of id under a freshly generated id and returns it.
	// The old id is unusable afterwards.
	Renew(ctx context.Context, id string) (string, error)
}

// NewID returns a fresh session id (UUIDv7, 74 random bits after the timestamp).
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return id.String(), nil
}

// Session is a handle on one session id, passed explicitly into every flow step.
// Not safe for concurrent use; one request owns one handle.
type Session struct {
	store Store
	id    string
}

// New binds an existing id (from the cookie) to store.
func New(store Store, id string) *Session {
	return &Session{store: store, id: id}
}

// Start creates a handle with a new id. Nothing is written until the first Put.
func Start(store Store) (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	return &Session{store: store, id: id}, nil
}

// ID is the current session id. It changes after Renew.
func (s *Session) ID() string { return s.id }

func (s *Session) Put(ctx context.Context, key, value string) error {
	return s.store.Put(ctx, s.id, key, value)
}

func (s *Session) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.id, key)
}

func (s *Session) Delete(ctx context.Context, keys ...string) error {
	return s.store.Delete(ctx, s.id, keys...)
}

func (s *Session) Purge(ctx context.Context) error {
	return s.store.Purge(ctx, s.id)
}

// Renew rotates the id, keeping the contents, and rebinds the handle to the new id.
func (s *Session) Renew(ctx context.Context) error {
	newID, err := s.store.Renew(ctx, s.id)
	if err != nil {
		return err
	}
	s.id = newID
	return nil
}
