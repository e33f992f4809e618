package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the engine counters. Built once at startup and shared;
// no package-level state.
type Metrics struct {
	BatchesSubmitted    *prometheus.CounterVec
	ItemsApproved       *prometheus.CounterVec
	ItemsRejected       *prometheus.CounterVec
	BatchesClaimed      *prometheus.CounterVec
	BatchesVoided       *prometheus.CounterVec
	SchedulerCycles     prometheus.Counter
	SchedulerErrors     prometheus.Counter
	NotificationsFailed *prometheus.CounterVec
}

func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BatchesSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehive_batches_submitted_total",
			Help: "Requisition batches submitted, by kind.",
		}, []string{"kind"}),
		ItemsApproved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehive_items_approved_total",
			Help: "Request items approved, by kind.",
		}, []string{"kind"}),
		ItemsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehive_items_rejected_total",
			Help: "Request items rejected, by kind.",
		}, []string{"kind"}),
		BatchesClaimed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehive_batches_claimed_total",
			Help: "Batches claimed or activated, by kind.",
		}, []string{"kind"}),
		BatchesVoided: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehive_batches_voided_total",
			Help: "Batches voided, by kind.",
		}, []string{"kind"}),
		SchedulerCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "resourcehive_scheduler_cycles_total",
			Help: "Completed scheduler cycles.",
		}),
		SchedulerErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "resourcehive_scheduler_errors_total",
			Help: "Scheduler cycles aborted by an error.",
		}),
		NotificationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehive_notifications_failed_total",
			Help: "Best-effort email/SMS emissions that failed.",
		}, []string{"channel"}),
	}
}

func Handler(reg *prometheus.Registry) gin.HandlerFunc {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
