// Package observe provides application-wide observability primitives for
// the translation gateway: OpenTelemetry metrics, tracing helpers, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all gateway metrics.
const meterName = "github.com/lexigate/lexigate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TranslationDuration tracks end-to-end translation latency, including
	// queue wait. Use with attribute.String("status", ...).
	TranslationDuration metric.Float64Histogram

	// Translations counts finished translation requests. Use with attributes:
	//   attribute.String("status", ...), attribute.String("target", ...)
	Translations metric.Int64Counter

	// ProviderRequests counts inference backend calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ModelSwitches counts model switch attempts by outcome. Use with
	// attribute.String("status", ...).
	ModelSwitches metric.Int64Counter

	// QueueActive tracks requests currently holding a processing slot.
	// Observed from the queue via [Metrics.ObserveQueue].
	QueueActive metric.Int64ObservableGauge

	// QueueWaiting tracks requests currently queued for a slot. Observed
	// from the queue via [Metrics.ObserveQueue].
	QueueWaiting metric.Int64ObservableGauge

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	meter metric.Meter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM generation latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranslationDuration, err = m.Float64Histogram("lexigate.translation.duration",
		metric.WithDescription("End-to-end translation latency including queue wait."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Translations, err = m.Int64Counter("lexigate.translations",
		metric.WithDescription("Finished translation requests by status and target language."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("lexigate.provider.requests",
		metric.WithDescription("Inference backend calls by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ModelSwitches, err = m.Int64Counter("lexigate.model.switches",
		metric.WithDescription("Model switch attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.QueueActive, err = m.Int64ObservableGauge("lexigate.queue.active",
		metric.WithDescription("Requests currently holding a processing slot."),
	); err != nil {
		return nil, err
	}
	if met.QueueWaiting, err = m.Int64ObservableGauge("lexigate.queue.waiting",
		metric.WithDescription("Requests currently waiting for a processing slot."),
	); err != nil {
		return nil, err
	}
	met.meter = m
	if met.HTTPRequestDuration, err = m.Float64Histogram("lexigate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// ObserveQueue registers counts as the source for the queue depth gauges.
// Call at most once per Metrics instance.
func (m *Metrics) ObserveQueue(counts func() (active, waiting int)) error {
	_, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		active, waiting := counts()
		o.ObserveInt64(m.QueueActive, int64(active))
		o.ObserveInt64(m.QueueWaiting, int64(waiting))
		return nil
	}, m.QueueActive, m.QueueWaiting)
	return err
}

// RecordTranslation records one finished translation with its latency.
func (m *Metrics) RecordTranslation(ctx context.Context, status, target string, elapsed time.Duration) {
	m.Translations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("target", target),
		),
	)
	m.TranslationDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("status", status)))
}

// RecordProviderRequest records one inference backend call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordModelSwitch records one model switch attempt.
func (m *Metrics) RecordModelSwitch(ctx context.Context, status string) {
	m.ModelSwitches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
