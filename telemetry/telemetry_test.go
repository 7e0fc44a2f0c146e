package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/complete"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setup(t *testing.T) *Provider {
	t.Helper()
	p, err := Setup(context.Background(), Config{EnableMetrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func findMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not recorded", name)
	return metricdata.Metrics{}
}

// sumByAttr flattens a counter into attribute value -> count.
func sumByAttr(t *testing.T, m metricdata.Metrics, key attribute.Key) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is %T", m.Name, m.Data)
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestDisabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, p.Hints())

	// nil instruments are a usable recorder
	p.Hints().RecordCompletion(context.Background(), "method-invocation", 3, time.Millisecond)
	p.Hints().RecordFailure(context.Background(), "no-target")

	rm, err := p.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rm.ScopeMetrics)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestHintInstruments(t *testing.T) {
	p := setup(t)
	ctx := context.Background()
	h := p.Hints()
	require.NotNil(t, h)

	h.RecordCompletion(ctx, "method-invocation", 4, 2*time.Millisecond)
	h.RecordCompletion(ctx, "method-invocation", 2, time.Millisecond)
	h.RecordCompletion(ctx, "new-instance", 1, time.Millisecond)
	h.RecordFailure(ctx, "no-target")

	rm, err := p.Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"method-invocation": 2, "new-instance": 1},
		sumByAttr(t, findMetric(t, rm, metricRequests), "context"))
	assert.Equal(t, map[string]int64{"no-target": 1},
		sumByAttr(t, findMetric(t, rm, metricFailures), "reason"))

	hist, ok := findMetric(t, rm, metricCandidates).Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	var count uint64
	var total int64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		total += dp.Sum
	}
	assert.Equal(t, uint64(3), count)
	assert.Equal(t, int64(7), total)

	dur, ok := findMetric(t, rm, metricDuration).Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var durTotal float64
	for _, dp := range dur.DataPoints {
		durTotal += dp.Sum
	}
	assert.InDelta(t, 4.0, durTotal, 1e-9)
}

func TestEngineReportsThroughInstruments(t *testing.T) {
	p := setup(t)
	ctx := context.Background()
	e, err := complete.NewEngine(catalog.Builtin(), complete.WithRecorder(p.Hints()))
	require.NoError(t, err)

	_, err = e.Complete(ctx, complete.Request{Name: "Test.groovy", Text: "\"abc\".con", Ch: 9})
	require.NoError(t, err)
	_, err = e.Complete(ctx, complete.Request{Name: "Test.groovy", Text: "x = 1\n\ny = 2", Line: 1})
	require.NoError(t, err)

	rm, err := p.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"method-invocation": 1},
		sumByAttr(t, findMetric(t, rm, metricRequests), "context"))
	assert.Equal(t, map[string]int64{"no-target": 1},
		sumByAttr(t, findMetric(t, rm, metricFailures), "reason"))
}

func TestShutdownTwice(t *testing.T) {
	p, err := Setup(context.Background(), Config{EnableMetrics: true})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}
