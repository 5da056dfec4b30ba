// Package jwks fetches a provider's JSON Web Key Set and verifies RS256 ID tokens against it.
package jwks

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Key is one published signing key. N and E are base64url big-endian unsigned
// integers exactly as the provider publishes them.
type Key struct {
	Kty string `json:"kty"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Set is a JWKS document.
type Set struct {
	Keys []Key `json:"keys"`
}

// Lookup linear-scans for kid.
func (s *Set) Lookup(kid string) (*Key, bool) {
	for i := range s.Keys {
		if s.Keys[i].Kid == kid {
			return &s.Keys[i], true
		}
	}
	return nil, false
}

// RSAPublicKey rebuilds the public key from N and E.
func (k *Key) RSAPublicKey() (*rsa.PublicKey, error) {
	if !strings.EqualFold(k.Kty, "RSA") {
		return nil, fmt.Errorf("key %s: kty %q is not RSA", k.Kid, k.Kty)
	}
	if k.Alg != "" && k.Alg != "RS256" {
		return nil, fmt.Errorf("key %s: alg %q is not RS256", k.Kid, k.Alg)
	}
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("key %s: decoding modulus: %w", k.Kid, err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("key %s: decoding exponent: %w", k.Kid, err)
	}
	if len(nb) == 0 || len(eb) == 0 {
		return nil, errors.New("key " + k.Kid + ": empty modulus or exponent")
	}
	e := new(big.Int).SetBytes(eb)
	if !e.IsInt64() || e.Int64() > 1<<31-1 || e.Int64() < 3 {
		return nil, fmt.Errorf("key %s: exponent out of range", k.Kid)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(e.Int64())}, nil
}
