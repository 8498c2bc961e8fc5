package metrics

import (
	"strconv"
	"sync"

	"hoaportal/contexts/governance/review-workflow/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements ports.Metrics with counters under the
// review_workflow namespace.
type Prometheus struct {
	transitionsApplied  *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	sweepItems          *prometheus.CounterVec
	sweepRuns           prometheus.Counter
	notifications       *prometheus.CounterVec
	suppressed          *prometheus.CounterVec
}

var defaultPrometheus = sync.OnceValue(func() *Prometheus {
	return NewPrometheus(prometheus.DefaultRegisterer)
})

// Default returns the process-wide collector set registered with the default
// registry. Registering twice panics, hence the singleton.
func Default() *Prometheus {
	return defaultPrometheus()
}

func NewPrometheus(registerer prometheus.Registerer) *Prometheus {
	factory := promauto.With(registerer)
	return &Prometheus{
		transitionsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "review_workflow",
			Name:      "transitions_applied_total",
			Help:      "Status transitions committed, by workflow version and edge.",
		}, []string{"workflow_version", "from", "to"}),
		transitionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "review_workflow",
			Name:      "transitions_rejected_total",
			Help:      "Transition attempts refused by the validator, by decision code.",
		}, []string{"code"}),
		sweepItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "review_workflow",
			Name:      "deadline_sweep_items_total",
			Help:      "Requests handled by the deadline sweep, by result.",
		}, []string{"result"}),
		sweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "review_workflow",
			Name:      "deadline_sweep_runs_total",
			Help:      "Completed deadline sweep passes.",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "review_workflow",
			Name:      "notifications_total",
			Help:      "Notification deliveries, by type and result.",
		}, []string{"type", "result"}),
		suppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "review_workflow",
			Name:      "notifications_suppressed_total",
			Help:      "Notifications dropped by the debounce window.",
		}, []string{"type"}),
	}
}

func (p *Prometheus) TransitionApplied(version entities.WorkflowVersion, from, to entities.RequestStatus) {
	p.transitionsApplied.WithLabelValues(strconv.Itoa(int(version)), string(from), string(to)).Inc()
}

func (p *Prometheus) TransitionRejected(code string) {
	p.transitionsRejected.WithLabelValues(code).Inc()
}

func (p *Prometheus) SweepCompleted(autoApproved, warned, failed int) {
	p.sweepRuns.Inc()
	p.sweepItems.WithLabelValues("auto_approved").Add(float64(autoApproved))
	p.sweepItems.WithLabelValues("warned").Add(float64(warned))
	p.sweepItems.WithLabelValues("failed").Add(float64(failed))
}

func (p *Prometheus) NotificationDispatched(notificationType entities.NotificationType, delivered, failed int) {
	p.notifications.WithLabelValues(string(notificationType), "delivered").Add(float64(delivered))
	p.notifications.WithLabelValues(string(notificationType), "failed").Add(float64(failed))
}

func (p *Prometheus) NotificationSuppressed(notificationType entities.NotificationType) {
	p.suppressed.WithLabelValues(string(notificationType)).Inc()
}
