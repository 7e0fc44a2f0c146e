package telemetry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequests   = "gce.hint.requests"
	metricCandidates = "gce.hint.candidates"
	metricDuration   = "gce.hint.duration_ms"
	metricFailures   = "gce.hint.failures"
)

// HintInstruments publishes metrics for completion requests. It satisfies
// complete.Recorder; a nil *HintInstruments records nothing.
type HintInstruments struct {
	counterRequests metric.Int64Counter
	counterFailures metric.Int64Counter
	histCandidates  metric.Int64Histogram
	histDuration    metric.Float64Histogram
}

func newHintInstruments(meter metric.Meter) (*HintInstruments, error) {
	var (
		inst HintInstruments
		err  error
	)
	inst.counterRequests, err = meter.Int64Counter(
		metricRequests,
		metric.WithDescription("Number of completion requests answered, by cursor context"),
	)
	if err != nil {
		return nil, errors.Wrap(err, metricRequests)
	}
	inst.counterFailures, err = meter.Int64Counter(
		metricFailures,
		metric.WithDescription("Number of completion requests that produced no candidates because a stage failed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, metricFailures)
	}
	inst.histCandidates, err = meter.Int64Histogram(
		metricCandidates,
		metric.WithDescription("Number of candidates returned per completion request"),
	)
	if err != nil {
		return nil, errors.Wrap(err, metricCandidates)
	}
	inst.histDuration, err = meter.Float64Histogram(
		metricDuration,
		metric.WithDescription("Duration of completion requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, errors.Wrap(err, metricDuration)
	}
	return &inst, nil
}

// RecordCompletion counts a request that reached candidate resolution.
func (i *HintInstruments) RecordCompletion(ctx context.Context, kind string, candidates int, elapsed time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("context", kind))
	i.counterRequests.Add(ctx, 1, attrs)
	i.histCandidates.Record(ctx, int64(candidates), attrs)
	i.histDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// RecordFailure counts a request that stopped before candidate resolution.
func (i *HintInstruments) RecordFailure(ctx context.Context, reason string) {
	if i == nil {
		return
	}
	i.counterFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
