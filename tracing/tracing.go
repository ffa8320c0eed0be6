// Package tracing wires an OpenTelemetry tracer for the batching and
// translation hot path. dispatch never imports net/http, so unlike the
// tracing setups this is modeled on, there is no HTTP span or traceparent
// propagation helper here, only span start/stop around batch lifecycles.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer oteltrace.Tracer = otel.Tracer("transdispatch")

// Config controls whether tracing is enabled and where spans go.
type Config struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Initialize installs a tracer provider that writes spans to stdout as
// newline-delimited JSON. There is no network exporter: an embedded
// batching library should not open outbound connections just to trace
// itself, so OTLP export is left to whatever process embeds this one and
// wants to register its own provider via otel.SetTracerProvider before
// calling Initialize.
func Initialize(cfg Config, logger *zap.Logger) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "transdispatch"
	}
	tracer = otel.Tracer(cfg.ServiceName)

	if !cfg.Enabled {
		logger.Info("tracing disabled")
		return nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer(cfg.ServiceName)

	logger.Info("tracing initialized", zap.String("service", cfg.ServiceName))
	return nil
}

// StartSpan starts a span named name as a child of ctx's span, if any.
func StartSpan(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return tracer.Start(ctx, name)
}
