package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Simha-Reddy/SSVF-VetConnect/lib/httpserv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetconnect_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vetconnect_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	// UpstreamRequests counts calls to the clinical-record API, by resource type and outcome (HTTP status or "error").
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetconnect_upstream_requests_total",
			Help: "Calls to the clinical-record FHIR API.",
		},
		[]string{"resource", "outcome"},
	)
	// AssignmentOperations counts assignment engine operations, by operation and result.
	AssignmentOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetconnect_assignment_operations_total",
			Help: "Assign and reassign operations on the assignment tree.",
		},
		[]string{"operation", "result"},
	)
)

// Registry is the registry all application metrics are registered on.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(httpRequestsTotal, httpRequestDuration, UpstreamRequests, AssignmentOperations)
}

// Handler serves the metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records request count and latency for the given route.
// The route pattern is used as label rather than the URL, to keep label cardinality bounded.
func Instrument(route string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := httpserv.NewStatusRecorder(w)
			next(recorder, r)
			httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.StatusCode)).Inc()
		}
	}
}
