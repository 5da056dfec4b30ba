// Package metrics holds the gateway's Prometheus collectors.
// Kept in a leaf package so jwks, gateway and the HTTP layer can all record without import cycles.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LoginAttempts counts login starts per provider.
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authgate_login_attempts_total",
		Help: "Authorization requests started, by provider.",
	}, []string{"provider"})

	// LoginOutcomes counts callback results per provider and outcome
	// (success, state_mismatch, no_flow_state, exchange_failed, id_token_rejected, ...).
	LoginOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authgate_login_outcomes_total",
		Help: "Callback results, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// JWKSFetches counts JWKS documents fetched over the network, by result.
	JWKSFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authgate_jwks_fetches_total",
		Help: "JWKS network fetches, by result (ok, error).",
	}, []string{"result"})

	// JWKSCacheHits counts verifications served from the JWKS cache.
	JWKSCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authgate_jwks_cache_hits_total",
		Help: "ID-token verifications that reused a cached JWKS.",
	})

	// ExchangeSeconds observes token endpoint latency.
	ExchangeSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authgate_token_exchange_seconds",
		Help:    "Token endpoint round-trip latency.",
		Buckets: prometheus.ExponentialBuckets(0.025, 2, 9),
	}, []string{"provider"})
)

// Register registers every collector on reg (or the default registerer if nil).
// Already-registered collectors are not an error, so tests and main can both call it.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{LoginAttempts, LoginOutcomes, JWKSFetches, JWKSCacheHits, ExchangeSeconds} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
