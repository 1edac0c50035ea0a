// Package telemetry configures the OpenTelemetry metrics provider that
// otel.Meter(...) calls bind to; in this module the bus is the package that
// records metrics through it.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	apimetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config configures the metrics exporter. An empty OTLPEndpoint installs a
// no-op provider so the engine runs without a collector in development.
type Config struct {
	OTLPEndpoint string
	ServiceName  string
	Insecure     bool
}

// Provider owns the process-wide MeterProvider and its shutdown.
type Provider struct {
	meterProvider apimetric.MeterProvider
	shutdown      func(context.Context) error
}

// NewProvider installs cfg's MeterProvider as the global otel provider and
// returns a handle whose Shutdown flushes pending metrics.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "corebot-engine"
	}

	if endpoint == "" {
		mp := noop.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return &Provider{meterProvider: mp, shutdown: func(context.Context) error { return nil }}, nil
	}

	host, insecure := parseEndpoint(endpoint)
	if cfg.Insecure {
		insecure = true
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(host)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(service)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	return &Provider{
		meterProvider: mp,
		shutdown: func(ctx context.Context) error {
			return mp.Shutdown(ctx)
		},
	}, nil
}

// Shutdown flushes and tears down the metrics exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

func parseEndpoint(raw string) (host string, insecure bool) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw, true
	}
	return parsed.Host, parsed.Scheme != "https"
}
