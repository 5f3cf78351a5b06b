package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRegisterCacheSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := 3
	if err := RegisterCacheSize(reg, func() int { return n }); err != nil {
		t.Fatalf("RegisterCacheSize() error: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	var gauge *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "chorechart_cache_entries" {
			gauge = mf
		}
	}
	if gauge == nil {
		t.Fatal("chorechart_cache_entries not gathered")
	}
	if got := gauge.GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Errorf("gauge = %v, want 3", got)
	}

	err = RegisterCacheSize(reg, func() int { return n })
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		t.Errorf("expected AlreadyRegisteredError on second registration, got %v", err)
	}
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(CacheLookups.WithLabelValues("hit"))
	CacheLookups.WithLabelValues("hit").Inc()
	if got := testutil.ToFloat64(CacheLookups.WithLabelValues("hit")); got != before+1 {
		t.Errorf("cache hit counter = %v, want %v", got, before+1)
	}
}
