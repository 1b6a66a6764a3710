// Package metrics keeps the prometheus metrics of a single batch run so they
// can be written out for the node exporter's textfile collector.
package metrics

import (
	"time"

	"clanactivity/internal/activity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clan_activity"

// Batch implements activity.Observer.
type Batch struct {
	registry *prometheus.Registry

	resolved   prometheus.Counter
	failed     prometheus.Counter
	duration   prometheus.Histogram
	lastActive *prometheus.GaugeVec
	unknown    prometheus.Gauge
	finished   prometheus.Gauge
}

func NewBatch() *Batch {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Batch{
		registry: registry,
		resolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "members_resolved_total",
			Help:      "Members whose activity was resolved without error.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "members_failed_total",
			Help:      "Members whose resolution failed.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "member_resolve_duration_seconds",
			Help:      "Time spent resolving a single member, including every character page.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		lastActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "member_last_active_timestamp_seconds",
			Help:      "Unix time of the member's most recent activity.",
		}, []string{"member", "platform"}),
		unknown: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "members_unknown_activity",
			Help:      "Resolved members without any observable activity.",
		}),
		finished: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_finished_timestamp_seconds",
			Help:      "Unix time the batch finished.",
		}),
	}
}

func (b *Batch) MemberResolved(member *activity.Member, elapsed time.Duration, err error) {
	b.duration.Observe(elapsed.Seconds())
	if err != nil {
		b.failed.Inc()
		return
	}
	b.resolved.Inc()
	if !member.Known() {
		b.unknown.Inc()
		return
	}
	b.lastActive.WithLabelValues(member.Name, member.Platform).Set(float64(member.LastActive.Unix()))
}

// Finish marks the batch as done at t.
func (b *Batch) Finish(t time.Time) {
	b.finished.Set(float64(t.Unix()))
}

func (b *Batch) Registry() *prometheus.Registry {
	return b.registry
}

// WriteTextfile writes every metric to path in the text exposition format.
func (b *Batch) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, b.registry)
}
