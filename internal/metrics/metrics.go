// Copyright (c) 2026 procwatt authors under MIT License
// Package metrics exposes the probe's last tick as Prometheus gauges,
// mirroring mactop's globals.go/startPrometheusServer pairing: package
// level gauges registered against a private registry and served over
// promhttp on an operator-chosen port.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/context-labs/procwatt/internal/row"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gauges updated once per tick and the HTTP server that
// exposes them.
type Metrics struct {
	registry *prometheus.Registry
	server   *http.Server

	cpuPercent    *prometheus.GaugeVec
	ramBytes      *prometheus.GaugeVec
	netUpMBps     *prometheus.GaugeVec
	netDownMBps   *prometheus.GaugeVec
	diskReadMBps  *prometheus.GaugeVec
	diskWriteMBps *prometheus.GaugeVec
	totalWh       *prometheus.GaugeVec
	lockdown      prometheus.Gauge
}

// New builds the gauge set and registers it against a private registry.
func New() *Metrics {
	labels := []string{"name"}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cpuPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procwatt_cpu_percent",
			Help: "Per-process CPU usage as a percentage of total host CPU capacity, last tick.",
		}, labels),
		ramBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procwatt_ram_bytes",
			Help: "Per-process resident memory, last tick.",
		}, labels),
		netUpMBps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procwatt_net_upload_mbps",
			Help: "Per-process upload throughput in MB/s, last tick.",
		}, labels),
		netDownMBps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procwatt_net_download_mbps",
			Help: "Per-process download throughput in MB/s, last tick.",
		}, labels),
		diskReadMBps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procwatt_disk_read_mbps",
			Help: "Per-process disk read throughput in MB/s, last tick.",
		}, labels),
		diskWriteMBps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procwatt_disk_write_mbps",
			Help: "Per-process disk write throughput in MB/s, last tick.",
		}, labels),
		totalWh: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procwatt_total_milliwatt_hours",
			Help: "Per-process attributed energy for the tick, in mWh.",
		}, labels),
		lockdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procwatt_watchdog_lockdown",
			Help: "1 when the watchdog has the sniffer in lockdown, else 0.",
		}),
	}

	m.registry.MustRegister(
		m.cpuPercent, m.ramBytes, m.netUpMBps, m.netDownMBps,
		m.diskReadMBps, m.diskWriteMBps, m.totalWh, m.lockdown,
	)
	return m
}

// Observe updates every gauge from one tick's rows.
func (m *Metrics) Observe(rows []row.Row, lockdown bool) {
	for _, r := range rows {
		labels := prometheus.Labels{"name": r.Name}
		m.cpuPercent.With(labels).Set(r.CPUPercent)
		m.ramBytes.With(labels).Set(float64(r.RAMBytes))
		m.netUpMBps.With(labels).Set(r.NetUpMBps)
		m.netDownMBps.With(labels).Set(r.NetDownMBps)
		m.diskReadMBps.With(labels).Set(r.DiskReadMBps)
		m.diskWriteMBps.With(labels).Set(r.DiskWriteMBps)
		m.totalWh.With(labels).Set(r.TotalWh)
	}
	if lockdown {
		m.lockdown.Set(1)
	} else {
		m.lockdown.Set(0)
	}
}

// Serve starts the metrics HTTP server on addr in the background. Call
// Shutdown to stop it.
func (m *Metrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return
		}
	}()
}

// Shutdown stops the metrics server, if one was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}
