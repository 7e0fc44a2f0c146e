package telemetry

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

var log = commonlog.GetLogger("gce.telemetry")

const meterName = "github.com/dhamidi/gce/complete"

// Config controls which instruments are created.
type Config struct {
	ServiceName   string
	EnableMetrics bool
}

// Provider owns the meter provider and the completion instruments. A
// Provider with metrics disabled hands out a Recorder that does nothing.
type Provider struct {
	cfg           Config
	reader        *sdkmetric.ManualReader
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	hints        *HintInstruments
	shutdownOnce sync.Once
}

// Setup initialises the meter provider. Metrics are kept in memory and
// read on demand through Collect.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.EnableMetrics {
		return &Provider{cfg: cfg}, nil
	}

	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "gce"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build resource")
	}

	p := &Provider{cfg: cfg, reader: sdkmetric.NewManualReader()}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(p.reader),
		sdkmetric.WithResource(res),
	)
	p.meter = p.meterProvider.Meter(meterName)
	p.hints, err = newHintInstruments(p.meter)
	if err != nil {
		return nil, err
	}
	log.Infof("metrics enabled for %s", cfg.ServiceName)
	return p, nil
}

// Hints returns the completion instruments, or nil when metrics are off.
// The nil value is a valid no-op Recorder.
func (p *Provider) Hints() *HintInstruments {
	if p == nil {
		return nil
	}
	return p.hints
}

// Collect reads the current metric values.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if p == nil || p.reader == nil {
		return rm, nil
	}
	err := p.reader.Collect(ctx, &rm)
	return rm, errors.Wrap(err, "collect metrics")
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	p.shutdownOnce.Do(func() {
		if p.meterProvider != nil {
			err = p.meterProvider.Shutdown(ctx)
		}
	})
	return err
}
