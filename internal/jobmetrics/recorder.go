package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder keeps the outcome of the latest run of each maintenance task on a
// private registry so a one-shot run can push it without process metrics.
type Recorder struct {
	registry    *prometheus.Registry
	duration    *prometheus.GaugeVec
	processed   *prometheus.GaugeVec
	failed      *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kfdb_jobs_task_duration_seconds",
			Help: "Duration of the latest run of a maintenance task.",
		}, []string{"task"}),
		processed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kfdb_jobs_task_rows_processed",
			Help: "Rows touched by the latest run of a maintenance task.",
		}, []string{"task"}),
		failed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kfdb_jobs_task_failed",
			Help: "1 when the latest run of a maintenance task failed.",
		}, []string{"task"}),
		// Not registered: it is only pushed when the whole run succeeds.
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kfdb_jobs_last_success_timestamp_seconds",
			Help: "Unix time of the last fully successful maintenance run.",
		}),
	}
	r.registry.MustRegister(r.duration, r.processed, r.failed)
	return r
}

// ObserveRun implements scheduler.RunObserver.
func (r *Recorder) ObserveRun(task string, processed int64, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(task).Set(duration.Seconds())
	r.processed.WithLabelValues(task).Set(float64(processed))
	if err != nil {
		r.failed.WithLabelValues(task).Set(1)
		return
	}
	r.failed.WithLabelValues(task).Set(0)
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
