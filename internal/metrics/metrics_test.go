package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveRPC("/tripsplit.v1.TripService/GetSettlement", "ok", 20*time.Millisecond)
	c.ObserveRPC("/tripsplit.v1.TripService/GetSettlement", "ok", 10*time.Millisecond)
	c.ObserveRPC("/tripsplit.v1.TripService/GetTrip", "not_found", time.Millisecond)
	c.ObserveBreakdown(nil)
	c.ObserveBreakdown(errors.New("boom"))
	c.ObserveWarnings("zero_basis", "zero_basis", "unassigned_item")
	c.ObserveConservationViolation()
	c.ObserveConservationViolation()
	c.ObserveTransfers("pairwise", 3)
	c.ObserveTransfers("greedy", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.rpcRequests.WithLabelValues("/tripsplit.v1.TripService/GetSettlement", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rpcRequests.WithLabelValues("/tripsplit.v1.TripService/GetTrip", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.breakdowns.WithLabelValues(resultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.breakdowns.WithLabelValues(resultError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.warnings.WithLabelValues("zero_basis")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.conservationFails))
	assert.Equal(t, 1, testutil.CollectAndCount(c.conservationFails))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.transfers.WithLabelValues("pairwise")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.transfers))
	assert.Equal(t, 2, testutil.CollectAndCount(c.rpcLatency))
}

func TestNilCollectors(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveRPC("p", "ok", time.Second)
		c.ObserveBreakdown(nil)
		c.ObserveWarnings("zero_basis")
		c.ObserveConservationViolation()
		c.ObserveTransfers("pairwise", 1)
	})
}
