// Package monitoring exposes Prometheus metrics for the HTTP surface, the
// generation queue and retrieval.
package monitoring

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/asisten-gizi/server/internal/llm"
	"github.com/asisten-gizi/server/internal/rag"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "asisten_gizi"

type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	generationsTotal   *prometheus.CounterVec
	generationDuration prometheus.Histogram
	queueDepth         prometheus.Gauge

	retrievedDocuments prometheus.Histogram
}

// NewMetrics registers every collector on reg. Pass a fresh registry in
// tests to keep them isolated.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 180, 600},
			},
			[]string{"method", "path"},
		),
		generationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Generation calls by outcome",
			},
			[]string{"outcome"},
		),
		generationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent in one generation call, retries included",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_queue_depth",
			Help:      "Generation jobs waiting for a worker",
		}),
		retrievedDocuments: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_documents",
			Help:      "Documents returned per question",
			Buckets:   []float64{0, 1, 2, 3, 6, 10},
		}),
	}
}

// GenerationFinished implements llm.Observer.
func (m *Metrics) GenerationFinished(d time.Duration, err error) {
	m.generationDuration.Observe(d.Seconds())
	m.generationsTotal.WithLabelValues(outcome(err)).Inc()
}

// QueueDepth implements llm.Observer.
func (m *Metrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

func outcome(err error) string {
	var genErr *llm.GenerationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, llm.ErrGenerationTimeout):
		return "timeout"
	case errors.Is(err, llm.ErrQueueClosed):
		return "closed"
	case errors.As(err, &genErr):
		return "failed"
	}
	return "error"
}

// Middleware records request counts and latency by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// InstrumentRetriever records how many documents r returns per query.
func (m *Metrics) InstrumentRetriever(r rag.Retriever) rag.Retriever {
	if r == nil {
		return nil
	}
	return &instrumentedRetriever{inner: r, hist: m.retrievedDocuments}
}

type instrumentedRetriever struct {
	inner rag.Retriever
	hist  prometheus.Histogram
}

func (r *instrumentedRetriever) Retrieve(ctx context.Context, query string) ([]rag.Document, error) {
	docs, err := r.inner.Retrieve(ctx, query)
	r.hist.Observe(float64(len(docs)))
	return docs, err
}
