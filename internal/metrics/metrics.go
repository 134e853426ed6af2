// Package metrics exposes Prometheus counters for HTTP traffic, task
// transitions and the database connection pool.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/atinyakov/LittleHelper/internal/models"
	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "littlehelper"

// Recorder owns a private registry and the collectors registered on it.
type Recorder struct {
	reg             *prom.Registry
	requests        *prom.CounterVec
	requestDuration *prom.HistogramVec
	transitions     *prom.CounterVec
}

// NewRecorder creates a Recorder with Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{reg: prom.NewRegistry()}
	r.requests = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})
	r.requestDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prom.DefBuckets,
	}, []string{"route", "method"})
	r.transitions = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_transitions_total",
		Help:      "Task state transitions by kind and outcome",
	}, []string{"transition", "outcome"})

	r.reg.MustRegister(r.requests, r.requestDuration, r.transitions)
	r.reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return r
}

// WatchDB exports connection pool statistics of db.
func (r *Recorder) WatchDB(db *sql.DB, name string) {
	r.reg.MustRegister(promcollect.NewDBStatsCollector(db, name))
}

// ObserveRequest records one served request.
func (r *Recorder) ObserveRequest(route, method string, code int, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// RecordTransition counts a task transition outcome.
func (r *Recorder) RecordTransition(tr models.Transition, outcome string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(string(tr), outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prom.Registry { return r.reg }
