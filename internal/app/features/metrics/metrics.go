// Package metrics exposes Prometheus metrics and instruments HTTP routes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// httpRequests counts served requests.
	// Labels: method, route (chi pattern), code
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "producthub",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "producthub",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

const unmatchedRoute = "unmatched"

// Instrument records a count and a latency sample for every request.
// Routes are labelled by their chi pattern so ids do not explode the label
// space. It must run inside a chi router.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := unmatchedRoute
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Routes serves the default registry's exposition at GET /.
func Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", promhttp.Handler().ServeHTTP)
	return r
}
