package engine

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricCyclesRun     = prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_cycles_run_total", Help: "Cycles started"})
	metricCyclesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_cycles_skipped_total", Help: "Cycle starts refused because the previous cycle was still running"})
	metricDecisions     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_decisions_total", Help: "Provider decisions by action"}, []string{"action"})
	metricOrdersSent    = prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_orders_sent_total", Help: "Orders submitted to the venue"})
	metricOrdersFilled  = prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_orders_filled_total", Help: "Orders filled or partially filled"})
	metricAuditFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_audit_failures_total", Help: "Audit records that could not be written"})
	metricHalted        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "engine_day_halted", Help: "1 when the daily loss limit has halted new entries"})
)

func init() {
	prometheus.MustRegister(
		metricCyclesRun, metricCyclesSkipped, metricDecisions,
		metricOrdersSent, metricOrdersFilled, metricAuditFailures, metricHalted,
	)
}

// ServeMetrics exposes /metrics on addr. Blocks; run it in its own goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
