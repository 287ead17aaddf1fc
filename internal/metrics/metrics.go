// Package metrics registers the prometheus instruments for the eLicensing
// integration path. Exposed on /metrics by the API binary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntegrationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obps_elicensing_integration_attempts_total",
		Help: "Obligation integration attempts by outcome.",
	}, []string{"outcome"})

	InvoiceRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obps_elicensing_invoice_refreshes_total",
		Help: "Invoice mirror refreshes by result (hit = served fresh, miss = external query).",
	}, []string{"result"})

	FactoryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obps_compliance_factory_outcomes_total",
		Help: "Report versions resolved by the obligation/credit factory, by outcome.",
	}, []string{"outcome"})

	PenaltiesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "obps_penalties_created_total",
		Help: "Automatic overdue penalties created.",
	})

	QueueBatchSummary = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obps_integration_queue_rows_total",
		Help: "Integration queue rows handled per drain, by result.",
	}, []string{"result"})

	SchedulerJobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obps_scheduler_job_runs_total",
		Help: "Scheduler job executions by job name and outcome.",
	}, []string{"job", "outcome"})

	AdjustmentsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obps_invoice_adjustments_total",
		Help: "External fee adjustments applied for decreased obligations.",
	}, []string{"outcome"})
)
