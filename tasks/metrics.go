package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/neurlang/automl/trainer"
)

// Metrics are the Prometheus collectors updated by the runners. A nil
// *Metrics records nothing.
type Metrics struct {
	trials   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	best     *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		trials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "automl",
			Name:      "trials_total",
			Help:      "Hyperparameter trials by task and status.",
		}, []string{"task", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "automl",
			Name:      "trial_duration_seconds",
			Help:      "Duration of completed trials.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 10),
		}, []string{"task"}),
		best: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "automl",
			Name:      "best_metric",
			Help:      "Validation metric of the best trial of the last fit.",
		}, []string{"task", "metric"}),
	}
}

func (m *Metrics) observeTrial(task string, t *trainer.Trial) {
	if m == nil {
		return
	}
	m.trials.WithLabelValues(task, t.Status()).Inc()
	if t.Status() == "ok" {
		m.duration.WithLabelValues(task).Observe(t.Duration.Seconds())
	}
}

func (m *Metrics) setBest(task, metric string, v float64) {
	if m == nil {
		return
	}
	m.best.WithLabelValues(task, metric).Set(v)
}
