package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readGauge(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.GamesCompleted.Inc()
	r.GamesInFlight.Set(2)
	r.EngineCrashes.WithLabelValues("engineA").Inc()
	r.EngineRestarts.WithLabelValues("engineA").Inc()
	r.SPRTLLR.Set(1.5)
	r.QueueDepth.Set(10)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)

	assert.Equal(t, 2.0, readGauge(t, r.GamesInFlight))
	assert.Equal(t, 1.5, readGauge(t, r.SPRTLLR))
}
