package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace 指标前缀
const Namespace = "tablib"

// Metrics 导出相关的 prometheus 指标，nil 时所有记录方法为空操作
type Metrics struct {
	registry *prometheus.Registry

	exports        *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	exportRows     *prometheus.HistogramVec
	exportBytes    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	scheduleRuns *prometheus.CounterVec
}

// New 使用独立的 registry 创建指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "exports_total",
				Help:      "Total number of exports by model, format and status",
			},
			[]string{"model", "format", "status"},
		),

		exportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "export_duration_seconds",
				Help:      "Duration of building and encoding an export",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"model", "format"},
		),

		exportRows: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "export_rows",
				Help:      "Number of rows per export",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"model"},
		),

		exportBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "export_bytes_total",
				Help:      "Total bytes of encoded exports",
			},
			[]string{"format"},
		),

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "code"},
		),

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		scheduleRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "schedule_runs_total",
				Help:      "Total number of scheduled export runs",
			},
			[]string{"job", "status"},
		),
	}
}

// Registry 指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 接口
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordExport 记录一次导出
func (m *Metrics) RecordExport(model, format string, rows int, size int, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.exports.WithLabelValues(model, format, status).Inc()
	m.exportDuration.WithLabelValues(model, format).Observe(d.Seconds())
	if err == nil {
		m.exportRows.WithLabelValues(model).Observe(float64(rows))
		m.exportBytes.WithLabelValues(format).Add(float64(size))
	}
}

// RecordRequest 记录一次 http 请求
func (m *Metrics) RecordRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordSchedule 记录一次定时导出
func (m *Metrics) RecordSchedule(job string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.scheduleRuns.WithLabelValues(job, status).Inc()
}
