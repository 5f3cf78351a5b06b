// Package tracing installs the OpenTelemetry tracer provider. Spans are
// exported as JSON lines by the stdout exporter, either to stdout or to a
// size-rotated file.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TracerName is the instrumentation scope used by the assistant.
const TracerName = "github.com/Rorschach3/chore-chart"

// Options controls Setup.
type Options struct {
	Enabled     bool
	ServiceName string
	Version     string
	// File receives exported spans. Empty means stdout.
	File string
	// Writer overrides File and stdout. Used by tests.
	Writer io.Writer
}

// Shutdown flushes and stops the provider installed by Setup.
type Shutdown func(context.Context) error

// Setup installs a global tracer provider. When tracing is disabled the
// global no-op provider is left in place and the returned Shutdown does
// nothing.
func Setup(ctx context.Context, opts Options) (Shutdown, error) {
	if !opts.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	var out io.Writer = os.Stdout
	var file *lumberjack.Logger
	switch {
	case opts.Writer != nil:
		out = opts.Writer
	case opts.File != "":
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		out = file
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	name := opts.ServiceName
	if name == "" {
		name = "chorechart"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(name),
		semconv.ServiceVersion(opts.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}, nil
}

// Tracer returns the assistant tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
