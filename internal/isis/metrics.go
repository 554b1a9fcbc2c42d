package isis

import "github.com/prometheus/client_golang/prometheus"

var (
	malformedPDUs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routingd",
		Subsystem: "isis",
		Name:      "malformed_pdus_total",
		Help:      "PDUs dropped for decode errors, by interface.",
	}, []string{"ifname"})

	authMismatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routingd",
		Subsystem: "isis",
		Name:      "auth_mismatches_total",
		Help:      "PDUs dropped for authentication TLV mismatch, by interface.",
	}, []string{"ifname"})

	spfRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routingd",
		Subsystem: "isis",
		Name:      "spf_runs_total",
		Help:      "SPF computations run, by level.",
	}, []string{"level"})

	adjacenciesUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "routingd",
		Subsystem: "isis",
		Name:      "adjacencies_up",
		Help:      "Neighbors currently in the Up state, by interface and level.",
	}, []string{"ifname", "level"})
)

func init() {
	prometheus.MustRegister(malformedPDUs, authMismatches, spfRuns, adjacenciesUp)
}
