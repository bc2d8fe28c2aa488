// Package metrics holds the Prometheus collectors of the tripsplit server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "tripsplit_"

const (
	resultSuccess = "success"
	resultError   = "error"
)

// Collectors groups every metric the server exports. A nil *Collectors is
// valid and records nothing, which keeps tests and tools free of a registry.
type Collectors struct {
	rpcRequests *prometheus.CounterVec
	rpcLatency  *prometheus.HistogramVec

	breakdowns        *prometheus.CounterVec
	warnings          *prometheus.CounterVec
	conservationFails prometheus.Counter
	transfers         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		rpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rpc_requests_total",
				Help: "Total RPC requests by procedure and code",
			},
			[]string{"procedure", "code"},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "rpc_latency_seconds",
				Help:    "RPC latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"procedure"},
		),
		breakdowns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "breakdowns_total",
				Help: "Total itemized breakdowns computed by result",
			},
			[]string{"result"},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "computation_warnings_total",
				Help: "Warnings raised by the allocation and settlement engines by kind",
			},
			[]string{"kind"},
		),
		conservationFails: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "conservation_violations_total",
				Help: "Settlements whose balances do not add up to zero",
			},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transfers_computed_total",
				Help: "Transfers produced by settlement strategy",
			},
			[]string{"strategy"},
		),
	}
	reg.MustRegister(
		c.rpcRequests,
		c.rpcLatency,
		c.breakdowns,
		c.warnings,
		c.conservationFails,
		c.transfers,
	)
	return c
}

// ObserveRPC records one finished RPC. code is "ok" or a Connect code name.
func (c *Collectors) ObserveRPC(procedure, code string, d time.Duration) {
	if c == nil {
		return
	}
	c.rpcRequests.WithLabelValues(procedure, code).Inc()
	c.rpcLatency.WithLabelValues(procedure).Observe(d.Seconds())
}

// ObserveBreakdown records one itemized breakdown computation.
func (c *Collectors) ObserveBreakdown(err error) {
	if c == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	c.breakdowns.WithLabelValues(result).Inc()
}

// ObserveWarnings counts warnings by kind.
func (c *Collectors) ObserveWarnings(kinds ...string) {
	if c == nil {
		return
	}
	for _, k := range kinds {
		c.warnings.WithLabelValues(k).Inc()
	}
}

// ObserveConservationViolation counts a settlement whose nets do not sum to
// zero. Callers log the trip.
func (c *Collectors) ObserveConservationViolation() {
	if c == nil {
		return
	}
	c.conservationFails.Inc()
}

// ObserveTransfers counts transfers produced by a strategy.
func (c *Collectors) ObserveTransfers(strategy string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.transfers.WithLabelValues(strategy).Add(float64(n))
}
