package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notes",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"service", "method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notes",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "route", "status"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "notes",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	}, []string{"service"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notes",
		Subsystem: "collab",
		Name:      "active_sessions",
		Help:      "Authenticated websocket sessions currently attached",
	})

	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notes",
		Subsystem: "collab",
		Name:      "active_rooms",
		Help:      "Note rooms with at least one member",
	})

	eventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notes",
		Subsystem: "collab",
		Name:      "events_total",
		Help:      "Collaboration events processed, by type and outcome",
	}, []string{"event", "outcome"})

	deliveriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notes",
		Subsystem: "collab",
		Name:      "deliveries_dropped_total",
		Help:      "Room broadcast deliveries dropped because a session was unreachable",
	})

	handshakesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notes",
		Subsystem: "collab",
		Name:      "handshakes_rejected_total",
		Help:      "Websocket handshakes refused before upgrade",
	}, []string{"reason"})
)

// SetActiveSessions records the number of attached sessions.
func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }

// SetActiveRooms records the number of live rooms.
func SetActiveRooms(n int) { activeRooms.Set(float64(n)) }

// ObserveEvent counts one processed event.
func ObserveEvent(event, outcome string) { eventsHandled.WithLabelValues(event, outcome).Inc() }

func DeliveryDropped() { deliveriesDropped.Inc() }

func HandshakeRejected(reason string) { handshakesRejected.WithLabelValues(reason).Inc() }

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required for the websocket upgrade to pass through.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		r.status = http.StatusSwitchingProtocols
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("notes metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels. Routes are
// labelled by their chi pattern so note ids do not explode cardinality.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.WithLabelValues(service).Inc()
			defer httpInFlight.WithLabelValues(service).Dec()

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			labels := prometheus.Labels{
				"service": service,
				"method":  r.Method,
				"route":   route,
				"status":  strconv.Itoa(rec.status),
			}
			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
