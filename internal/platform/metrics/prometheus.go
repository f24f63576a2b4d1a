package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsManager holds the service's custom Prometheus metrics.
type MetricsManager struct {
	Registry            *prometheus.Registry
	FeedSamplesTotal    prometheus.Counter
	FeedSampleFallbacks prometheus.Counter
	FeedEmptyPages      prometheus.Counter
	ListingsCreated     prometheus.Counter
	APIErrorsTotal      *prometheus.CounterVec
	APILatency          *prometheus.HistogramVec
}

// NewMetricsManager initializes and registers the custom metrics on a
// dedicated registry.
func NewMetricsManager(serviceName string) *MetricsManager {
	registry := prometheus.NewRegistry()

	feedSamplesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "feed_samples_total",
		Help:      "Total number of random-feed sample queries served.",
	})
	feedSampleFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "feed_sample_fallbacks_total",
		Help:      "Sample queries that needed the opposite-direction retry.",
	})
	feedEmptyPages := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "feed_empty_pages_total",
		Help:      "Sample queries that returned no listings after both probes.",
	})
	listingsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "listings_created_total",
		Help:      "Total number of listings created.",
	})
	apiErrorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "api_errors_total",
		Help:      "Total number of API errors by route.",
	}, []string{"route", "error_type"})
	apiLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: serviceName,
		Name:      "api_request_latency_seconds",
		Help:      "Latency of API requests by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	registry.MustRegister(
		feedSamplesTotal,
		feedSampleFallbacks,
		feedEmptyPages,
		listingsCreated,
		apiErrorsTotal,
		apiLatency,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return &MetricsManager{
		Registry:            registry,
		FeedSamplesTotal:    feedSamplesTotal,
		FeedSampleFallbacks: feedSampleFallbacks,
		FeedEmptyPages:      feedEmptyPages,
		ListingsCreated:     listingsCreated,
		APIErrorsTotal:      apiErrorsTotal,
		APILatency:          apiLatency,
	}
}

// StartMetricsServer exposes the registry on its own port. Blocks, so run
// it in a goroutine.
func StartMetricsServer(port string, logger *zap.Logger, registry *prometheus.Registry) error {
	if port == "" {
		logger.Info("Prometheus metrics server port not configured, server will not start.")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	logger.Info("Prometheus metrics server starting", zap.String("port", port), zap.String("path", "/metrics"))

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	return server.ListenAndServe()
}
