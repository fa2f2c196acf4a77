package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

const meterName = "github.com/praetorian-inc/fdsec/pkg/engine"

// metrics holds the engine instruments. They are no-ops unless the caller
// installs a meter provider with otel.SetMeterProvider.
type metrics struct {
	targets    metric.Int64Counter
	bytes      metric.Int64Counter
	detections metric.Int64Counter
	duration   metric.Float64Histogram
}

func newMetrics() *metrics {
	meter := otel.Meter(meterName)
	targets, _ := meter.Int64Counter("fdsec_targets_scanned_total",
		metric.WithDescription("Targets scanned, by outcome"))
	bytes, _ := meter.Int64Counter("fdsec_bytes_scanned_total",
		metric.WithDescription("Bytes fed to signature matchers"),
		metric.WithUnit("By"))
	detections, _ := meter.Int64Counter("fdsec_detections_total",
		metric.WithDescription("Detections, by reason"))
	duration, _ := meter.Float64Histogram("fdsec_scan_duration_seconds",
		metric.WithDescription("Time to reach a verdict for one target"),
		metric.WithUnit("s"))
	return &metrics{targets: targets, bytes: bytes, detections: detections, duration: duration}
}

func (m *metrics) record(ctx context.Context, v *types.Verdict, elapsed time.Duration) {
	// ctx may already be cancelled; instruments do not care.
	ctx = context.WithoutCancel(ctx)
	m.targets.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", v.Outcome.String())))
	m.bytes.Add(ctx, v.BytesScanned)
	for _, d := range v.Detections {
		m.detections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(d.Reason))))
	}
	m.duration.Record(ctx, elapsed.Seconds())
}
