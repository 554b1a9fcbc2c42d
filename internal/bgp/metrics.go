package bgp

import "github.com/prometheus/client_golang/prometheus"

var (
	metricSessionUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "routingd",
		Subsystem: "bgp",
		Name:      "session_up",
		Help:      "1 if the peer FSM is in Established state, by peer address.",
	}, []string{"peer"})

	metricUpdatesIn = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routingd",
		Subsystem: "bgp",
		Name:      "updates_received_total",
		Help:      "UPDATE messages received, by peer address.",
	}, []string{"peer"})

	metricPrefixesIn = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "routingd",
		Subsystem: "bgp",
		Name:      "adj_rib_in_prefixes",
		Help:      "Prefixes currently held in Adj-RIB-In, by peer address.",
	}, []string{"peer"})
)

func init() {
	prometheus.MustRegister(metricSessionUp, metricUpdatesIn, metricPrefixesIn)
}
