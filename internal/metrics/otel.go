package metrics

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const serviceName = "pricer"

// Config controls the OTLP exporter.
type Config struct {
	Enabled  bool
	Endpoint string
	Insecure bool
	Interval time.Duration
}

// OTel records events as OpenTelemetry instruments.
type OTel struct {
	provider    *sdkmetric.MeterProvider
	evaluations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
	uplift      metric.Float64Histogram
	trainings   metric.Int64Counter
	trainTime   metric.Float64Histogram
	rmse        metric.Float64Histogram
}

// New returns NoOp when metrics are disabled, otherwise an OTel recorder
// exporting periodically over OTLP gRPC.
func New(ctx context.Context, cfg Config) (Recorder, error) {
	if !cfg.Enabled {
		return NoOp{}, nil
	}
	if cfg.Endpoint == "" {
		return nil, eris.New("metrics: enabled without an endpoint")
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts,
			otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlpmetricgrpc.WithInsecure(),
		)
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: create otlp exporter")
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	return NewOTel(ctx, sdkmetric.NewPeriodicReader(exp, readerOpts...))
}

// NewOTel builds an OTel recorder collecting through reader.
func NewOTel(ctx context.Context, reader sdkmetric.Reader) (*OTel, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, eris.Wrap(err, "metrics: create resource")
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter(serviceName)

	o := &OTel{provider: provider}
	if o.evaluations, err = meter.Int64Counter("pricer_evaluations_total",
		metric.WithDescription("Scenario evaluations completed"),
		metric.WithUnit("{evaluation}"),
	); err != nil {
		return nil, eris.Wrap(err, "metrics: create evaluations counter")
	}
	if o.failures, err = meter.Int64Counter("pricer_evaluation_failures_total",
		metric.WithDescription("Scenario evaluations refused or failed"),
		metric.WithUnit("{evaluation}"),
	); err != nil {
		return nil, eris.Wrap(err, "metrics: create failures counter")
	}
	if o.latency, err = meter.Float64Histogram("pricer_evaluation_duration_seconds",
		metric.WithDescription("Time to evaluate a scenario including the price search"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, eris.Wrap(err, "metrics: create latency histogram")
	}
	if o.uplift, err = meter.Float64Histogram("pricer_profit_uplift",
		metric.WithDescription("Optimal profit minus profit at the requested price"),
	); err != nil {
		return nil, eris.Wrap(err, "metrics: create uplift histogram")
	}
	if o.trainings, err = meter.Int64Counter("pricer_trainings_total",
		metric.WithDescription("Estimator training runs"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, eris.Wrap(err, "metrics: create trainings counter")
	}
	if o.trainTime, err = meter.Float64Histogram("pricer_training_duration_seconds",
		metric.WithDescription("Estimator training time"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, eris.Wrap(err, "metrics: create training duration histogram")
	}
	if o.rmse, err = meter.Float64Histogram("pricer_training_rmse",
		metric.WithDescription("Hold-out RMSE of trained estimators"),
	); err != nil {
		return nil, eris.Wrap(err, "metrics: create rmse histogram")
	}
	return o, nil
}

// Evaluation records a completed evaluation.
func (o *OTel) Evaluation(ctx context.Context, e Evaluation) {
	// Products outside the catalog share one series so caller input cannot
	// grow the attribute set.
	attrs := []attribute.KeyValue{attribute.Bool("fallback_band", e.Fallback)}
	if !e.Fallback && e.Product != "" {
		attrs = append(attrs, attribute.String("product", e.Product))
	}
	opt := metric.WithAttributes(attrs...)
	o.evaluations.Add(ctx, 1, opt)
	o.latency.Record(ctx, e.Duration.Seconds(), opt)
	if !math.IsNaN(e.Uplift) && !math.IsInf(e.Uplift, 0) {
		o.uplift.Record(ctx, e.Uplift, opt)
	}
}

// Failure counts a refused or failed evaluation.
func (o *OTel) Failure(ctx context.Context, kind string) {
	o.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// Training records a training run.
func (o *OTel) Training(ctx context.Context, rmse float64, d time.Duration) {
	o.trainings.Add(ctx, 1)
	o.trainTime.Record(ctx, d.Seconds())
	if !math.IsNaN(rmse) {
		o.rmse.Record(ctx, rmse)
	}
}

// Close flushes and shuts down the meter provider.
func (o *OTel) Close(ctx context.Context) error {
	return o.provider.Shutdown(ctx)
}
