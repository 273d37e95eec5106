// Package metrics holds the Prometheus collectors of the simulator.
//
// Collectors live on a private registry so several simulators (tests,
// embedded use) never collide on the default registry. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lanesim"

// Metrics groups every collector the simulator updates.
type Metrics struct {
	Registry *prometheus.Registry

	// RoadVehicles is the number of vehicles on the lane after the last tick.
	RoadVehicles prometheus.Gauge

	// Spawned counts vehicles entering the lane. Labels: kind.
	Spawned *prometheus.CounterVec

	// Exited counts vehicles leaving past the end of the lane. Labels: kind.
	Exited *prometheus.CounterVec

	// Density is the spawn probability currently published by the demand signal.
	Density prometheus.Gauge

	// Ticks counts completed driver ticks.
	Ticks prometheus.Counter

	// TelemetryWrites counts sink writes. Labels: sink, status (ok, error).
	TelemetryWrites *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RoadVehicles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "road_vehicles",
			Help:      "Vehicles currently on the lane",
		}),
		Spawned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vehicles_spawned_total",
			Help:      "Vehicles spawned by kind",
		}, []string{"kind"}),
		Exited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vehicles_exited_total",
			Help:      "Vehicles removed past the end of the lane by kind",
		}, []string{"kind"}),
		Density: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "density_percent",
			Help:      "Per-tick spawn probability in percent",
		}),
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed simulation ticks",
		}),
		TelemetryWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_writes_total",
			Help:      "Telemetry sink writes by sink and status",
		}, []string{"sink", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) VehicleSpawned(kind string) {
	if m == nil {
		return
	}
	m.Spawned.WithLabelValues(kind).Inc()
}

func (m *Metrics) VehicleExited(kind string) {
	if m == nil {
		return
	}
	m.Exited.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetRoadVehicles(n int) {
	if m == nil {
		return
	}
	m.RoadVehicles.Set(float64(n))
}

func (m *Metrics) SetDensity(percent int) {
	if m == nil {
		return
	}
	m.Density.Set(float64(percent))
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.Ticks.Inc()
}

// TelemetryWrite records the outcome of one sink write.
func (m *Metrics) TelemetryWrite(sink string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TelemetryWrites.WithLabelValues(sink, status).Inc()
}
