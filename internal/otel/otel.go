// Package otel wires OpenTelemetry metrics (Prometheus exporter) and traces
// (OTLP/gRPC exporter) for the pabellon daemon.
package otel

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelglobal "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationName = "github.com/ankittk/pabellon"

// InitMeterProvider initializes the global MeterProvider with a Prometheus exporter
// and returns an http.Handler that serves /metrics. Call once at daemon startup.
func InitMeterProvider(ctx context.Context, serviceName string) (http.Handler, error) {
	if serviceName == "" {
		serviceName = "pabellon"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otelglobal.SetMeterProvider(provider)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}), nil
}

// Meter returns the global meter for pabellon (after InitMeterProvider).
func Meter() metric.Meter {
	return otelglobal.Meter(instrumentationName)
}

// Common attribute keys for metrics and spans.
var (
	AttrMode      = attribute.Key("poll.mode")
	AttrResult    = attribute.Key("result")
	AttrOperation = attribute.Key("operation")
	AttrEstado    = attribute.Key("estado")
	AttrFrom      = attribute.Key("estado.from")
	AttrTo        = attribute.Key("estado.to")
	AttrCirugia   = attribute.Key("cirugia.id")
	AttrPabellon  = attribute.Key("pabellon.id")
	AttrCycle     = attribute.Key("poll.cycle")
	AttrRoute     = attribute.Key("http.route")
)
