// idp.go
//
// FakeIdP is an in-process identity provider for tests: token, JWKS, revoke,
// introspect and discovery endpoints on an httptest.Server, signing ID tokens with
// a throwaway RSA key. Counters let tests assert which endpoints were (not) hit.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWK is the wire shape of one published RSA key.
type JWK struct {
	Kty string `json:"kty"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// FakeIdP fields may be changed between requests; guard concurrent tests with their own sync.
type FakeIdP struct {
	Server *httptest.Server

	Key          *rsa.PrivateKey
	KID          string
	ClientID     string
	ClientSecret string

	// Token endpoint behaviour.
	AccessToken     string
	RefreshToken    string
	IDToken         string // returned verbatim when non-empty
	TokenStatus     int    // 0 means 200
	ExpectCode      string // when set, other codes get invalid_grant
	ExpectChallenge string // when set, sha256(code_verifier) must match
	TokenDelay      time.Duration

	// JWKS endpoint behaviour.
	Keys       []JWK // published keys; defaults to the public half of Key
	JWKSStatus int
	JWKSMaxAge int // Cache-Control max-age seconds, 0 = header omitted
	JWKSDelay  time.Duration

	// Introspection result.
	Active bool

	TokenCalls      atomic.Int32
	JWKSCalls       atomic.Int32
	RevokeCalls     atomic.Int32
	IntrospectCalls atomic.Int32

	mu            sync.Mutex
	lastTokenForm url.Values
	revoked       []string
}

// NewFakeIdP starts the server and registers cleanup on t.
func NewFakeIdP(t testing.TB) *FakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating rsa key: %v", err)
	}
	f := &FakeIdP{
		Key:          key,
		KID:          "test-key-1",
		ClientID:     "gateway-client",
		ClientSecret: "gateway-secret",
		AccessToken:  "AT1",
		Active:       true,
	}
	f.Keys = []JWK{PublicJWK(&key.PublicKey, f.KID)}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", f.handleToken)
	mux.HandleFunc("/jwks", f.handleJWKS)
	mux.HandleFunc("/revoke", f.handleRevoke)
	mux.HandleFunc("/introspect", f.handleIntrospect)
	mux.HandleFunc("/.well-known/openid-configuration", f.handleDiscovery)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// Issuer is the server's base URL, used as "iss".
func (f *FakeIdP) Issuer() string        { return f.Server.URL }
func (f *FakeIdP) AuthURL() string       { return f.Server.URL + "/authorize" }
func (f *FakeIdP) TokenURL() string      { return f.Server.URL + "/token" }
func (f *FakeIdP) JWKSURL() string       { return f.Server.URL + "/jwks" }
func (f *FakeIdP) RevokeURL() string     { return f.Server.URL + "/revoke" }
func (f *FakeIdP) IntrospectURL() string { return f.Server.URL + "/introspect" }

// LastTokenForm returns the form body of the most recent token request.
func (f *FakeIdP) LastTokenForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTokenForm
}

// Revoked returns every token the revoke endpoint has received.
func (f *FakeIdP) Revoked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

// Claims returns a valid claim set for sub, issued by this IdP for its client id.
func (f *FakeIdP) Claims(sub string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            f.Issuer(),
		"aud":            f.ClientID,
		"sub":            sub,
		"email":          sub + "@example.com",
		"email_verified": true,
		"name":           "Test User",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

// SignIDToken signs claims with the IdP's key and kid.
func (f *FakeIdP) SignIDToken(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	return SignRS256(t, f.Key, f.KID, claims)
}

// SignRS256 signs claims with key, putting kid in the header unless it is empty.
func SignRS256(t testing.TB, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

// PublicJWK encodes pub as a JWK with base64url big-endian modulus and exponent.
func PublicJWK(pub *rsa.PublicKey, kid string) JWK {
	return JWK{
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func (f *FakeIdP) handleToken(w http.ResponseWriter, r *http.Request) {
	f.TokenCalls.Add(1)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.lastTokenForm = r.PostForm
	f.mu.Unlock()

	if f.TokenDelay > 0 {
		select {
		case <-time.After(f.TokenDelay):
		case <-r.Context().Done():
			return
		}
	}
	if f.TokenStatus != 0 && f.TokenStatus != http.StatusOK {
		writeJSON(w, f.TokenStatus, map[string]string{"error": "server_error"})
		return
	}
	if f.ExpectCode != "" && r.PostForm.Get("code") != f.ExpectCode {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}
	if f.ExpectChallenge != "" {
		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != f.ExpectChallenge {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "pkce mismatch"})
			return
		}
	}

	body := map[string]any{
		"access_token": f.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if f.RefreshToken != "" {
		body["refresh_token"] = f.RefreshToken
	}
	if f.IDToken != "" {
		body["id_token"] = f.IDToken
	}
	writeJSON(w, http.StatusOK, body)
}

func (f *FakeIdP) handleJWKS(w http.ResponseWriter, r *http.Request) {
	f.JWKSCalls.Add(1)
	if f.JWKSDelay > 0 {
		select {
		case <-time.After(f.JWKSDelay):
		case <-r.Context().Done():
			return
		}
	}
	if f.JWKSStatus != 0 && f.JWKSStatus != http.StatusOK {
		w.WriteHeader(f.JWKSStatus)
		return
	}
	if f.JWKSMaxAge > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(f.JWKSMaxAge))
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": f.Keys})
}

func (f *FakeIdP) handleRevoke(w http.ResponseWriter, r *http.Request) {
	f.RevokeCalls.Add(1)
	_ = r.ParseForm()
	f.mu.Lock()
	f.revoked = append(f.revoked, r.PostForm.Get("token"))
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *FakeIdP) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	f.IntrospectCalls.Add(1)
	_ = r.ParseForm()
	writeJSON(w, http.StatusOK, map[string]any{"active": f.Active, "client_id": f.ClientID})
}

func (f *FakeIdP) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                 f.Issuer(),
		"authorization_endpoint": f.AuthURL(),
		"token_endpoint":         f.TokenURL(),
		"jwks_uri":               f.JWKSURL(),
		"revocation_endpoint":    f.RevokeURL(),
		"introspection_endpoint": f.IntrospectURL(),
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
