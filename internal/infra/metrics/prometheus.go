package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vsa_jobs_processed_total",
		Help: "Total number of analysis jobs reaching a terminal status, by verdict",
	}, []string{"verdict"})

	JobStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vsa_job_stage_duration_seconds",
		Help:    "Duration of analysis pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vsa_frames_extracted_total",
		Help: "Total number of still frames extracted across all jobs",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vsa_active_jobs",
		Help: "Number of analysis runs currently in flight",
	})

	PersistRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vsa_persist_retries_total",
		Help: "Total number of retried terminal-status writes",
	})

	PersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vsa_persist_failures_total",
		Help: "Terminal-status writes abandoned after exhausting retries",
	})

	SubmissionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vsa_submissions_rejected_total",
		Help: "Submissions rejected synchronously, by reason",
	}, []string{"reason"})
)
