// Package metrics 积分、徽章、通知与事件投递的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 所有方法允许 nil 接收者，未启用指标时直接跳过
type Collector struct {
	pointsApplied       *prometheus.CounterVec
	badgesGranted       prometheus.Counter
	badgesRevoked       prometheus.Counter
	notificationsSent   prometheus.Counter
	notificationsFailed prometheus.Counter
	sideEffectFailures  *prometheus.CounterVec
	outboxSent          prometheus.Counter
	outboxFailed        prometheus.Counter
	repairUsersFixed    prometheus.Counter
	ledgerLatency       prometheus.Histogram
}

// NewCollector 创建并注册到指定的 Registerer
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pointsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_points_applied_total",
			Help: "Point deltas applied to users, by action.",
		}, []string{"action"}),
		badgesGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_badges_granted_total",
			Help: "User badges granted by reconciliation.",
		}),
		badgesRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_badges_revoked_total",
			Help: "User badges revoked by reconciliation.",
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_notifications_emitted_total",
			Help: "Notifications written.",
		}),
		notificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_notifications_failed_total",
			Help: "Notification writes that failed.",
		}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_side_effect_failures_total",
			Help: "Side effects that failed after a primary action succeeded, by kind.",
		}, []string{"kind"}),
		outboxSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_outbox_sent_total",
			Help: "Outbox events delivered.",
		}),
		outboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_outbox_failed_total",
			Help: "Outbox event deliveries that failed.",
		}),
		repairUsersFixed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_badge_repair_users_fixed_total",
			Help: "Users whose badge set was corrected by the repair job.",
		}),
		ledgerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "civic_ledger_tx_seconds",
			Help:    "Latency of the points ledger transaction.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.pointsApplied,
		c.badgesGranted,
		c.badgesRevoked,
		c.notificationsSent,
		c.notificationsFailed,
		c.sideEffectFailures,
		c.outboxSent,
		c.outboxFailed,
		c.repairUsersFixed,
		c.ledgerLatency,
	)
	return c
}

func (c *Collector) RecordPointsApplied(action string) {
	if c == nil {
		return
	}
	c.pointsApplied.WithLabelValues(action).Inc()
}

func (c *Collector) RecordBadgeChanges(granted, revoked int) {
	if c == nil {
		return
	}
	c.badgesGranted.Add(float64(granted))
	c.badgesRevoked.Add(float64(revoked))
}

func (c *Collector) RecordNotification(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.notificationsSent.Inc()
		return
	}
	c.notificationsFailed.Inc()
}

func (c *Collector) RecordSideEffectFailure(kind string) {
	if c == nil {
		return
	}
	c.sideEffectFailures.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordOutbox(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.outboxSent.Inc()
		return
	}
	c.outboxFailed.Inc()
}

func (c *Collector) RecordRepairFixed(n int) {
	if c == nil {
		return
	}
	c.repairUsersFixed.Add(float64(n))
}

func (c *Collector) ObserveLedger(d time.Duration) {
	if c == nil {
		return
	}
	c.ledgerLatency.Observe(d.Seconds())
}

// Handler /metrics 端点
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
