package session

import (
	"context"
	"fmt"
)

// FlowState is what Begin leaves in the session for the callback to check.
type FlowState struct {
	CSRFToken    string
	PKCEVerifier string
	Provider     string
	Nonce        string // empty for opaque-token providers
}

// Ready reports whether the state carries enough to complete a callback.
func (f FlowState) Ready() bool {
	return f.CSRFToken != "" && f.PKCEVerifier != "" && f.Provider != ""
}

var flowKeys = []string{KeyState, KeyCodeVerifier, KeyProvider, KeyNonce}

// SaveFlow writes f, replacing any earlier flow in the same session.
// A stale nonce from a previous attempt is removed when f has none.
func SaveFlow(ctx context.Context, s *Session, f FlowState) error {
	for _, kv := range [][2]string{
		{KeyState, f.CSRFToken},
		{KeyCodeVerifier, f.PKCEVerifier},
		{KeyProvider, f.Provider},
	} {
		if err := s.Put(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("saving flow state: %w", err)
		}
	}
	if f.Nonce == "" {
		if err := s.Delete(ctx, KeyNonce); err != nil {
			return fmt.Errorf("saving flow state: %w", err)
		}
		return nil
	}
	if err := s.Put(ctx, KeyNonce, f.Nonce); err != nil {
		return fmt.Errorf("saving flow state: %w", err)
	}
	return nil
}

// LoadFlow reads the flow keys. Missing keys come back empty; check Ready.
func LoadFlow(ctx context.Context, s *Session) (FlowState, error) {
	var f FlowState
	for _, dst := range []struct {
		key string
		val *string
	}{
		{KeyState, &f.CSRFToken},
		{KeyCodeVerifier, &f.PKCEVerifier},
		{KeyProvider, &f.Provider},
		{KeyNonce, &f.Nonce},
	} {
		v, _, err := s.Get(ctx, dst.key)
		if err != nil {
			return FlowState{}, fmt.Errorf("loading flow state: %w", err)
		}
		*dst.val = v
	}
	return f, nil
}

// ClearFlow removes the flow keys.
func ClearFlow(ctx context.Context, s *Session) error {
	if err := s.Delete(ctx, flowKeys...); err != nil {
		return fmt.Errorf("clearing flow state: %w", err)
	}
	return nil
}
