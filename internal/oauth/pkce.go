// pkce.go -- PKCE verifier/challenge pairs, CSRF state and OIDC nonces.
package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// NewChallenge returns a fresh PKCE verifier and its S256 challenge.
// The verifier is 256 bits from crypto/rand, base64url without padding (43 chars).
func NewChallenge() (verifier, challenge string) {
	verifier = oauth2.GenerateVerifier()
	return verifier, S256Challenge(verifier)
}

// S256Challenge is base64url(SHA-256(verifier)) without padding, per RFC 7636 §4.2.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewCSRFToken returns a 256-bit random state value.
func NewCSRFToken() string { return randomToken() }

// NewNonce returns a 256-bit random OIDC nonce.
func NewNonce() string { return randomToken() }

// randomToken panics if the system RNG fails; there's nothing a request can do about that.
func randomToken() string {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("oauth: crypto/rand failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b[:])
}
