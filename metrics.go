package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cluster-service/cluster"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	framesSent       *prometheus.CounterVec
	transmitFailures *prometheus.CounterVec
	datagrams        prometheus.Counter
	datagramsDropped *prometheus.CounterVec
	commands         *prometheus.CounterVec

	speed        prometheus.Gauge
	rpm          prometheus.Gauge
	phase        prometheus.Gauge
	stale        prometheus.Gauge
	activeAlerts prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cluster",
			Subsystem: "can",
			Name:      "frames_sent_total",
			Help:      "Frames accepted by the transceiver.",
		}, []string{"id"}),
		transmitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cluster",
			Subsystem: "can",
			Name:      "transmit_failures_total",
			Help:      "Frames the transceiver rejected. Failed frames are dropped.",
		}, []string{"id"}),
		datagrams: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cluster",
			Subsystem: "telemetry",
			Name:      "datagrams_total",
			Help:      "Telemetry datagrams applied to the vehicle state.",
		}),
		datagramsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cluster",
			Subsystem: "telemetry",
			Name:      "datagrams_dropped_total",
			Help:      "Telemetry datagrams discarded before reaching the vehicle state.",
		}, []string{"reason"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cluster",
			Subsystem: "ipc",
			Name:      "commands_total",
			Help:      "Operator commands applied.",
		}, []string{"command"}),
		speed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cluster",
			Name:      "speed_kmh",
			Help:      "Filtered vehicle speed.",
		}),
		rpm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cluster",
			Name:      "rpm",
			Help:      "Filtered engine speed.",
		}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cluster",
			Name:      "engine_phase",
			Help:      "Ignition cycle phase: 0 off, 1 starting, 2 running.",
		}),
		stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cluster",
			Subsystem: "telemetry",
			Name:      "stale",
			Help:      "1 while telemetry is stale and safe defaults are shown.",
		}),
		activeAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cluster",
			Name:      "active_alerts",
			Help:      "Check-control messages currently active.",
		}),
	}
	m.registry.MustRegister(
		m.framesSent, m.transmitFailures, m.datagrams, m.datagramsDropped, m.commands,
		m.speed, m.rpm, m.phase, m.stale, m.activeAlerts,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordTransmit(id uint32, err error) {
	label := fmt.Sprintf("0x%03X", id)
	if err != nil {
		m.transmitFailures.WithLabelValues(label).Inc()
		return
	}
	m.framesSent.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordDatagram()               { m.datagrams.Inc() }
func (m *Metrics) RecordDrop(reason string)      { m.datagramsDropped.WithLabelValues(reason).Inc() }
func (m *Metrics) RecordCommand(cmd CommandKind) { m.commands.WithLabelValues(cmd.String()).Inc() }

func (m *Metrics) ObserveStatus(status RedisClusterStatus, phase cluster.Phase) {
	m.speed.Set(float64(status.Speed))
	m.rpm.Set(float64(status.RPM))
	m.phase.Set(float64(phase))
	m.activeAlerts.Set(float64(len(status.ActiveAlerts)))
	if status.Stale {
		m.stale.Set(1)
	} else {
		m.stale.Set(0)
	}
}

// meteredTransmitter counts every transmit outcome per frame id.
type meteredTransmitter struct {
	next    cluster.Transmitter
	metrics *Metrics
}

func (t meteredTransmitter) Transmit(frame cluster.Frame) error {
	err := t.next.Transmit(frame)
	t.metrics.RecordTransmit(frame.ID, err)
	return err
}

// serveMetrics runs the /metrics endpoint until ctx is done.
func serveMetrics(ctx context.Context, addr string, m *Metrics, logger *LeveledLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
