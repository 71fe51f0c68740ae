package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// civMetrics methods are safe to call on a nil receiver, metrics are optional.
type civMetrics struct {
	framesTotal    *prometheus.CounterVec // labels: result=ok|short|not_for_host|echo|overflow
	decodeFailures *prometheus.CounterVec // labels: value
	scopeSweeps    *prometheus.CounterVec // labels: result=complete|incomplete|malformed
	frequency      prometheus.Gauge
	supplyVoltage  prometheus.Gauge
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newCIVMetrics(reg prometheus.Registerer) *civMetrics {
	m := &civMetrics{
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civmon_frames_total",
			Help: "CI-V frames found in the received stream.",
		}, []string{"result"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civmon_decode_failures_total",
			Help: "Responses that did not decode to a value.",
		}, []string{"value"}),
		scopeSweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civmon_scope_sweeps_total",
			Help: "Spectrum scope sweeps by reassembly result.",
		}, []string{"result"}),
		frequency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "civmon_frequency_hz",
			Help: "Last operating frequency read from the rig.",
		}),
		supplyVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "civmon_supply_voltage_volts",
			Help: "Last supply voltage read from the rig.",
		}),
	}
	reg.MustRegister(m.framesTotal, m.decodeFailures, m.scopeSweeps, m.frequency, m.supplyVoltage)
	return m
}

func (m *civMetrics) frameAccepted() {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues("ok").Inc()
}

func (m *civMetrics) frameRejected(reason string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(reason).Inc()
}

func (m *civMetrics) decodeFailed(value string) {
	if m == nil {
		return
	}
	m.decodeFailures.WithLabelValues(value).Inc()
}

func (m *civMetrics) scopeResult(err error) {
	if m == nil {
		return
	}
	result := "complete"
	switch {
	case errors.Is(err, errScopeIncomplete):
		result = "incomplete"
	case errors.Is(err, errScopeMalformed):
		result = "malformed"
	case err != nil:
		return
	}
	m.scopeSweeps.WithLabelValues(result).Inc()
}

func (m *civMetrics) reportFrequency(f uint) {
	if m == nil {
		return
	}
	m.frequency.Set(float64(f))
}

func (m *civMetrics) reportVoltage(v float64) {
	if m == nil {
		return
	}
	m.supplyVoltage.Set(v)
}

func serveMetrics(reg *prometheus.Registry, port uint16) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server: ", err)
		}
	}()
	return srv
}
