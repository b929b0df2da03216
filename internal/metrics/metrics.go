package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flashnotes-backend/internal/flashcards"
)

// Collector holds the Prometheus metrics for the service. Each Collector owns
// its registry, so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Syntheses          *prometheus.CounterVec
	FlashcardsCreated  prometheus.Counter
	PersistenceErrors  prometheus.Counter
	QuotaRejections    prometheus.Counter
	BreakerTransitions *prometheus.CounterVec
	JobsProcessed      *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Syntheses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "question_syntheses_total",
				Help:      "Questions resolved, by source (remote or fallback)",
			},
			[]string{"source"},
		),
		FlashcardsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flashcards_generated_total",
				Help:      "Total number of flashcards generated",
			},
		),
		PersistenceErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_failures_total",
				Help:      "Flashcard batches that could not be stored",
			},
		),
		QuotaRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_rejections_total",
				Help:      "Generation requests refused because the free quota was used up",
			},
		),
		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generator_breaker_transitions_total",
				Help:      "Circuit breaker state changes around the generation service",
			},
			[]string{"to"},
		),
		JobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_processed_total",
				Help:      "Background generation jobs, by final status",
			},
			[]string{"status"},
		),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.Syntheses,
		c.FlashcardsCreated,
		c.PersistenceErrors,
		c.QuotaRejections,
		c.BreakerTransitions,
		c.JobsProcessed,
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the exposition format for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// SynthesisResolved implements flashcards.Recorder.
func (c *Collector) SynthesisResolved(source flashcards.Source) {
	c.Syntheses.WithLabelValues(string(source)).Inc()
}

func (c *Collector) CardsGenerated(n int) {
	c.FlashcardsCreated.Add(float64(n))
}

func (c *Collector) PersistenceFailed() {
	c.PersistenceErrors.Inc()
}

func (c *Collector) QuotaRejected() {
	c.QuotaRejections.Inc()
}

func (c *Collector) BreakerStateChanged(to string) {
	c.BreakerTransitions.WithLabelValues(to).Inc()
}

func (c *Collector) JobFinished(status string) {
	c.JobsProcessed.WithLabelValues(status).Inc()
}
