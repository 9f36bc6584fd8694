package main

import (
	"context"
	"time"

	"github.com/colorfulnotion/randomx/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// initTracing installs an OTLP/HTTP exporter for endpoint (host:port) and
// returns the provider shutdown. With an empty endpoint the global no-op
// provider stays in place.
func initTracing(ctx context.Context, endpoint string) (func(), error) {
	if endpoint == "" {
		return func() {}, nil
	}
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "rxhash"),
			attribute.String("service.version", Commit),
		)),
	)
	otel.SetTracerProvider(tp)
	log.Info(log.HasherMonitoring, "tracing enabled", "endpoint", endpoint)
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			log.Warn(log.HasherMonitoring, "tracer shutdown", "err", err)
		}
	}, nil
}
