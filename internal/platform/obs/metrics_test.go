package obs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	m.CacheHit("memory")
	m.CacheMiss()
	m.CacheFallback()
	m.ProviderRequest("ok")
	m.ObserveOptimize(0.1)
}

func TestMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CacheHit("memory")
	m.CacheHit("memory")
	m.CacheHit("shared")
	m.CacheMiss()
	m.ProviderRequest("error")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheHits.WithLabelValues("memory")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits.WithLabelValues("shared")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderRequests.WithLabelValues("error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
