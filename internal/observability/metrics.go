package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain counters. HTTP traffic is instrumented separately by the
// middleware package; these track what the studio itself does.
var (
	ServicesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "studio_services_created_total",
		Help: "Services registered.",
	})

	ServiceTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_service_transitions_total",
			Help: "Accepted lifecycle transitions by target status.",
		},
		[]string{"to"},
	)

	// CodeFallbacks counts how often the code generator left its preferred
	// source. "from" is the source that failed: sequence or side_table.
	CodeFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_service_code_fallbacks_total",
			Help: "Service code generation fallbacks by failed source.",
		},
		[]string{"from"},
	)

	SweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_sweep_runs_total",
			Help: "Expiration sweep runs by result (ok|error).",
		},
		[]string{"result"},
	)

	SweepDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_sweep_services_total",
			Help: "Services removed or flagged by the expiration sweep, by mode (soft|hard|dry_run).",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(ServicesCreated, ServiceTransitions, CodeFallbacks, SweepRuns, SweepDeleted)
}
