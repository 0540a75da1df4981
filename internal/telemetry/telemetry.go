// Package telemetry wires the OpenTelemetry SDK and the process-wide slog logger.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"

	"berrystand/internal/config"
)

// SetupOTelSDK bootstraps the OpenTelemetry pipeline and installs the default slog logger.
// If it does not return an error, make sure to call shutdown for proper cleanup.
func SetupOTelSDK(
	ctx context.Context,
	app config.AppSettings,
	cfg config.OpenTelemetrySettings,
) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	handleErr := func(inErr error) {
		err = errors.Join(inErr, shutdown(ctx))
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			attribute.String("service.name", app.Name),
			attribute.String("service.version", app.Version),
			attribute.String("deployment.environment", app.Env),
		),
	)
	if err != nil {
		return nil, err
	}

	otel.SetTextMapPropagator(newPropagator())

	tracerProvider, err := newTraceProvider(ctx, cfg, res)
	if err != nil {
		handleErr(err)
		return nil, err
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	loggerProvider, err := newLoggerProvider(ctx, app, cfg, res)
	if err != nil {
		handleErr(err)
		return nil, err
	}
	shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	meterProvider, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		handleErr(err)
		return nil, err
	}
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	return shutdown, nil
}

//nolint:ireturn
func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newTraceProvider(
	ctx context.Context,
	cfg config.OpenTelemetrySettings,
	res *resource.Resource,
) (*trace.TracerProvider, error) {
	if !cfg.Enabled {
		return trace.NewTracerProvider(trace.WithResource(res)), nil
	}

	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Traces.TimeoutInSec) * time.Second
	sampler := trace.ParentBased(trace.TraceIDRatioBased(float64(cfg.Traces.SampleRate)))

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter,
			trace.WithBatchTimeout(timeout),
			trace.WithMaxQueueSize(cfg.Traces.MaxQueueSize),
			trace.WithMaxExportBatchSize(cfg.Traces.BatchSize),
		),
		trace.WithSampler(sampler),
		trace.WithResource(res),
	), nil
}

func newLoggerProvider(
	ctx context.Context,
	app config.AppSettings,
	cfg config.OpenTelemetrySettings,
	res *resource.Resource,
) (*log.LoggerProvider, error) {
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	pipeline := slogmulti.Pipe(slogmulti.NewHandleInlineMiddleware(errorFormattingMiddleware))

	if !cfg.Enabled {
		slog.SetDefault(slog.New(pipeline.Handler(jsonHandler)))
		return log.NewLoggerProvider(log.WithResource(res)), nil
	}

	exporter, err := otlploggrpc.New(
		ctx,
		otlploggrpc.WithEndpoint(cfg.Endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	processor := log.NewBatchProcessor(exporter,
		log.WithMaxQueueSize(cfg.Logs.MaxQueueSize),
		log.WithExportMaxBatchSize(cfg.Logs.BatchSize),
		log.WithExportTimeout(time.Duration(cfg.Logs.TimeoutInSec)*time.Second),
		log.WithExportInterval(time.Duration(cfg.Logs.IntervalInSec)*time.Second),
	)
	loggerProvider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(processor),
	)

	otelHandler := otelslog.NewHandler(
		app.Name,
		otelslog.WithLoggerProvider(loggerProvider),
		otelslog.WithVersion(app.Version),
		otelslog.WithSource(true),
	)

	logger := slog.New(pipeline.Handler(slogmulti.Fanout(jsonHandler, otelHandler)))
	slog.SetDefault(logger)
	logger.InfoContext(ctx, "logger initialized")

	return loggerProvider, nil
}

func newMeterProvider(
	ctx context.Context,
	cfg config.OpenTelemetrySettings,
	res *resource.Resource,
) (*metric.MeterProvider, error) {
	if !cfg.Enabled {
		return metric.NewMeterProvider(metric.WithResource(res)), nil
	}

	exporter, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(
			exporter,
			metric.WithInterval(time.Duration(cfg.Metrics.IntervalInSec)*time.Second),
			metric.WithTimeout(time.Duration(cfg.Metrics.TimeoutInSec)*time.Second),
		)),
		metric.WithResource(res),
	), nil
}
