package gateway

import (
	"errors"
	"fmt"

	"github.com/MGallo-Code/authgate/internal/jwks"
	"github.com/MGallo-Code/authgate/internal/oauth"
)

// Kind classifies an AuthError for the HTTP layer.
type Kind int

const (
	// KindConfiguration is a gateway misconfiguration, e.g. an unknown provider. Answer 500.
	KindConfiguration Kind = iota + 1
	// KindFlowIntegrity is a missing or forged flow state. Restart the login; never exchange.
	KindFlowIntegrity
	// KindTransport is a network failure or timeout talking to the provider.
	KindTransport
	// KindCrypto is a rejected ID token. Never downgraded to a warning.
	KindCrypto
	// KindSession is a failure of the session store itself.
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindFlowIntegrity:
		return "flow_integrity"
	case KindTransport:
		return "transport"
	case KindCrypto:
		return "crypto"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNoFlowState     = errors.New("no login in progress for this session")
	ErrStateMismatch   = errors.New("state does not match the stored csrf token")
	ErrExchangeFailed  = errors.New("code exchange failed")
	ErrIDTokenMissing  = errors.New("oidc provider returned no id token")
)

// AuthError is every error the gateway returns. Match causes with errors.Is,
// e.g. errors.Is(err, ErrStateMismatch) or errors.Is(err, jwks.ErrKidNotFound).
type AuthError struct {
	Kind     Kind
	Op       string
	Provider oauth.ProviderID
	Err      error
}

func (e *AuthError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Retryable reports whether starting a new login could succeed: transport
// failures and key rotation (kid not yet published or cache stale).
func (e *AuthError) Retryable() bool {
	return e.Kind == KindTransport || errors.Is(e.Err, jwks.ErrKidNotFound)
}

// KindOf returns err's Kind, or 0 when err is not an *AuthError.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// verifyKind sorts verifier errors: an unreachable key set is transport, the rest is crypto.
func verifyKind(err error) Kind {
	if errors.Is(err, jwks.ErrFetchFailed) {
		return KindTransport
	}
	return KindCrypto
}

// OutcomeLabel is the metrics and audit label for err.
func OutcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnknownProvider):
		return "unknown_provider"
	case errors.Is(err, ErrNoFlowState):
		return "no_flow_state"
	case errors.Is(err, ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, ErrExchangeFailed):
		return "exchange_failed"
	case errors.Is(err, jwks.ErrFetchFailed):
		return "jwks_unavailable"
	case KindOf(err) == KindCrypto:
		return "id_token_rejected"
	case KindOf(err) == KindSession:
		return "session_error"
	default:
		return "error"
	}
}
