// verify.go -- RS256 ID-token verification against a provider's published keys.
package jwks

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MGallo-Code/authgate/internal/oauth"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoKid means the token header carries no key id. Fatal for the attempt.
	ErrNoKid = errors.New("id token has no kid")
	// ErrFetchFailed means the key set could not be downloaded.
	ErrFetchFailed = errors.New("fetching jwks failed")
	// ErrKidNotFound means no published key matches the token's kid, usually key rotation.
	ErrKidNotFound = errors.New("kid not found in jwks")
	// ErrInvalidToken covers bad signatures and failed iss/aud/exp/nonce checks.
	ErrInvalidToken = errors.New("id token signature or claims invalid")
)

// iatSkew is how far ahead of our clock a token's iat may be. exp gets no leeway.
const iatSkew = 2 * time.Minute

// Target is what the verifier needs to know about the issuing provider.
// oauth.Provider satisfies it.
type Target interface {
	JWKSURL() string
	Issuer() string
	ClientID() string
}

// Verifier checks ID tokens. Safe for concurrent use.
type Verifier struct {
	fetcher *Fetcher
	now     func() time.Time
	logger  *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock replaces time.Now for exp/iat checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// WithVerifierLogger sets the logger; defaults to slog.Default().
func WithVerifierLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) { v.logger = l }
}

// NewVerifier returns a Verifier that gets keys from f.
func NewVerifier(f *Fetcher, opts ...VerifierOption) *Verifier {
	v := &Verifier{fetcher: f, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify checks raw against t's key set and returns its claims.
// A non-empty nonce must equal the token's nonce claim.
func (v *Verifier) Verify(ctx context.Context, raw string, t Target, nonce string) (*oauth.Claims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if unverified.Method.Alg() != jwt.SigningMethodRS256.Alg() {
		return nil, fmt.Errorf("%w: alg %q", ErrInvalidToken, unverified.Method.Alg())
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, ErrNoKid
	}

	key, err := v.lookup(ctx, t.JWKSURL(), kid)
	if err != nil {
		return nil, err
	}
	pub, err := key.RSAPublicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	mc := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, mc,
		func(*jwt.Token) (any, error) { return pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(t.Issuer()),
		jwt.WithAudience(t.ClientID()),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	iat, err := mc.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if iat != nil && iat.After(v.now().Add(iatSkew)) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, jwt.ErrTokenUsedBeforeIssued)
	}

	claims := toClaims(mc)
	if nonce != "" && subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1 {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrInvalidToken)
	}
	return claims, nil
}

// lookup finds kid in the key set. A miss on a cached set refetches once, so a
// rotated key is picked up before giving up.
func (v *Verifier) lookup(ctx context.Context, url, kid string) (*Key, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: provider has no jwks url", ErrFetchFailed)
	}
	set, cached, err := v.fetcher.fetch(ctx, url, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if k, ok := set.Lookup(kid); ok {
		return k, nil
	}
	if cached {
		v.logger.Info("kid missing from cached jwks, refetching", "kid", kid, "url", url)
		set, _, err = v.fetcher.fetch(ctx, url, true)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		if k, ok := set.Lookup(kid); ok {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrKidNotFound, kid)
}

func toClaims(mc jwt.MapClaims) *oauth.Claims {
	c := &oauth.Claims{Raw: map[string]any(mc)}
	c.Issuer, _ = mc.GetIssuer()
	c.Subject, _ = mc.GetSubject()
	if aud, err := mc.GetAudience(); err == nil {
		c.Audience = aud
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	c.Email, _ = mc["email"].(string)
	c.Name, _ = mc["name"].(string)
	c.Picture, _ = mc["picture"].(string)
	c.Nonce, _ = mc["nonce"].(string)
	switch ev := mc["email_verified"].(type) {
	case bool:
		c.EmailVerified = ev
	case string:
		// some providers send "true"/"false"
		c.EmailVerified = ev == "true"
	}
	return c
}
