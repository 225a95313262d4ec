package observability

import "github.com/prometheus/client_golang/prometheus"

// ParkingMetrics implements the ledger's Recorder on Prometheus collectors.
type ParkingMetrics struct {
	checkIns  *prometheus.CounterVec
	checkOuts *prometheus.CounterVec
	charged   prometheus.Counter
	occupied  prometheus.Gauge
}

// NewParkingMetrics registers the parking collectors against registerer.
func NewParkingMetrics(registerer prometheus.Registerer) *ParkingMetrics {
	m := &ParkingMetrics{
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "citypark_checkins_total",
			Help: "Check-in attempts by outcome.",
		}, []string{"outcome"}),
		checkOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "citypark_checkouts_total",
			Help: "Check-out attempts by outcome.",
		}, []string{"outcome"}),
		charged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citypark_charged_cents_total",
			Help: "Amount charged at check-out, in minor currency units.",
		}),
		occupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "citypark_slots_occupied",
			Help: "Slots currently bound to an open session.",
		}),
	}
	registerer.MustRegister(m.checkIns, m.checkOuts, m.charged, m.occupied)
	return m
}

// CheckIn counts a check-in attempt.
func (m *ParkingMetrics) CheckIn(outcome string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(outcome).Inc()
}

// CheckOut counts a check-out attempt and the amount charged.
func (m *ParkingMetrics) CheckOut(outcome string, chargedCents int64) {
	if m == nil {
		return
	}
	m.checkOuts.WithLabelValues(outcome).Inc()
	if chargedCents > 0 {
		m.charged.Add(float64(chargedCents))
	}
}

// SlotsOccupied moves the occupied gauge by delta.
func (m *ParkingMetrics) SlotsOccupied(delta int) {
	if m == nil {
		return
	}
	m.occupied.Add(float64(delta))
}

// SetOccupied resets the occupied gauge, typically from a store snapshot at startup.
func (m *ParkingMetrics) SetOccupied(n int) {
	if m == nil {
		return
	}
	m.occupied.Set(float64(n))
}
