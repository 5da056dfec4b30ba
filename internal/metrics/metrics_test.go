package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register should tolerate AlreadyRegistered: %v", err)
	}
}

func TestLoginOutcomes_Labels(t *testing.T) {
	before := testutil.ToFloat64(LoginOutcomes.WithLabelValues("google", "success"))
	LoginOutcomes.WithLabelValues("google", "success").Inc()
	after := testutil.ToFloat64(LoginOutcomes.WithLabelValues("google", "success"))
	if after-before != 1 {
		t.Errorf("counter delta: got %v, want 1", after-before)
	}
}
