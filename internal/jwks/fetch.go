// fetch.go -- JWKS download with one retry, per-URL dedup, and optional TTL cache.
package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MGallo-Code/authgate/internal/metrics"
	"github.com/cenkalti/backoff/v5"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// maxJWKSBytes caps the document size; real key sets are a few KB.
const maxJWKSBytes = 1 << 20

// downloadTimeout bounds a shared download, retry included, when the HTTP
// client sets no timeout of its own.
const downloadTimeout = 10 * time.Second

// Fetcher downloads key sets. With TTL zero every Fetch goes to the network.
// Safe for concurrent use.
type Fetcher struct {
	http      *http.Client
	ttl       time.Duration
	cache     *gocache.Cache
	group     singleflight.Group
	retryWait time.Duration
	logger    *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client (5s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.http = c }
}

// WithTTL enables caching key sets for up to ttl. A provider's Cache-Control
// max-age shortens it, never lengthens it.
func WithTTL(ttl time.Duration) Option {
	return func(f *Fetcher) { f.ttl = ttl }
}

// WithRetryWait sets the pause before the single retry.
func WithRetryWait(d time.Duration) Option {
	return func(f *Fetcher) { f.retryWait = d }
}

// WithLogger sets the logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher returns a Fetcher with fetch-per-call semantics unless WithTTL is given.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		http:      &http.Client{Timeout: 5 * time.Second},
		retryWait: 200 * time.Millisecond,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.ttl > 0 {
		f.cache = gocache.New(f.ttl, 2*f.ttl)
	}
	return f
}

// Fetch returns the key set at url, from cache when fresh.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Set, error) {
	set, _, err := f.fetch(ctx, url, false)
	return set, err
}

// fetch reports whether the result came from cache so the verifier can force one
// refresh on a kid miss.
func (f *Fetcher) fetch(ctx context.Context, url string, fresh bool) (*Set, bool, error) {
	if f.cache != nil && !fresh {
		if v, ok := f.cache.Get(url); ok {
			metrics.JWKSCacheHits.Inc()
			return v.(*Set), true, nil
		}
	}

	// The download is shared by every caller waiting on url, so it must not die
	// with whichever request happened to start it. Each caller still stops
	// waiting when its own ctx is done.
	ch := f.group.DoChan(url, func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadTimeout)
		defer cancel()
		return f.download(dctx, url)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			metrics.JWKSFetches.WithLabelValues("error").Inc()
			return nil, false, res.Err
		}
		metrics.JWKSFetches.WithLabelValues("ok").Inc()
		return res.Val.(*Set), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// download performs the GET, retrying once on transport errors and 5xx.
func (f *Fetcher) download(ctx context.Context, url string) (*Set, error) {
	attempt := 0
	op := func() (*Set, error) {
		attempt++
		set, maxAge, err := f.get(ctx, url)
		if err != nil {
			f.logger.Warn("jwks fetch failed", "url", url, "attempt", attempt, "error", err)
			return nil, err
		}
		if f.cache != nil && maxAge >= 0 {
			ttl := f.ttl
			if maxAge > 0 && maxAge < ttl {
				ttl = maxAge
			}
			f.cache.Set(url, set, ttl)
		}
		return set, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(f.retryWait)),
		backoff.WithMaxTries(2),
	)
}

// get is one attempt. Errors that a retry can't fix are wrapped in backoff.Permanent.
func (f *Fetcher) get(ctx context.Context, url string) (*Set, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, backoff.Permanent(err)
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, 0, fmt.Errorf("jwks http %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, backoff.Permanent(fmt.Errorf("jwks http %d", resp.StatusCode))
	}

	var set Set
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&set); err != nil {
		return nil, 0, backoff.Permanent(fmt.Errorf("decoding jwks: %w", err))
	}
	return &set, maxAge(resp.Header.Get("Cache-Control")), nil
}

// maxAge extracts max-age from a Cache-Control header. Zero means no directive;
// no-store, no-cache and max-age=0 yield -1, which skips caching for that response.
func maxAge(cc string) time.Duration {
	for _, part := range strings.Split(cc, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "no-store" || part == "no-cache" {
			return -1
		}
		if v, ok := strings.CutPrefix(part, "max-age="); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				continue
			}
			if n == 0 {
				return -1
			}
			return time.Duration(n) * time.Second
		}
	}
	return 0
}
