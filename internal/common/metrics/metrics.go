package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FieldEdits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_field_edits_total",
			Help: "Total number of form field edits applied, by field group",
		},
		[]string{"group"},
	)

	DerivationsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_derivations_applied_total",
			Help: "Total number of derivation rules that changed the form state",
		},
		[]string{"rule"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_validation_failures_total",
			Help: "Total number of validation errors reported, by error code",
		},
		[]string{"code"},
	)

	StateRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "form_state_recoveries_total",
			Help: "Total number of corrupted stored drafts replaced with defaults",
		},
	)

	VoucherLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_lookups_total",
			Help: "Total number of voucher price lookups, by outcome",
		},
		[]string{"outcome"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Total number of form submissions, by outcome",
		},
		[]string{"outcome"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed successfully",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
