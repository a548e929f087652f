// Package stub serves a local stand-in for the cost estimation API so the
// load test can be run and tested without the real backend.
package stub

import (
	"crypto/subtle"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configure the stub server.
type Options struct {
	APIKeys   []string      // accepted bearer keys; empty disables auth
	Latency   time.Duration // added to every estimate
	Jitter    time.Duration // random extra latency in [0, Jitter)
	ErrorRate float64       // share of estimates answered with 503
	Timeout   time.Duration // per-request timeout, default 30s
	Logger    *zap.Logger
	Registry  *prometheus.Registry // defaults to a fresh registry
	Rand      func() float64       // defaults to math/rand/v2
}

type server struct {
	opts    Options
	logger  *zap.Logger
	metrics *serverMetrics
}

type serverMetrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	estimation prometheus.Histogram
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		estimation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "estimation_duration_seconds",
			Help:    "Time to compute cost estimation",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5},
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.estimation)
	return m
}

// NewHandler builds the stub's router.
func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	s := &server{opts: opts, logger: opts.Logger, metrics: newServerMetrics(opts.Registry)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(middleware.Timeout(opts.Timeout))

	r.Get("/health/live", s.handleLive)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	r.With(apiKeyAuth(opts.APIKeys)).Post("/estimate", s.handleEstimate)
	return r
}

// instrument records Prometheus metrics and logs each request at debug level.
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.requests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(status)).Inc()
		s.metrics.duration.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())
		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status_code", status),
			zap.Duration("duration", elapsed),
		)
	})
}

// apiKeyAuth accepts requests carrying "Authorization: Bearer <key>" for one
// of keys.
func apiKeyAuth(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "Missing authorization header", http.StatusUnauthorized)
				return
			}
			scheme, key, ok := strings.Cut(header, " ")
			if !ok || scheme != "Bearer" {
				http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
				return
			}
			for _, k := range keys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
		})
	}
}
