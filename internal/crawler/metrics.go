package crawler

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Observer receives crawl lifecycle events. Implementations must be safe
// for concurrent use; the engine calls them from every worker.
type Observer interface {
	PageFetched(statusCode int, duration time.Duration)
	PageFailed(class FailureClass)
	PageSkipped(reason string)
	PageRendered(duration time.Duration)
	FetchRetried(url string, attempt int)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) PageFetched(int, time.Duration) {}
func (NopObserver) PageFailed(FailureClass)        {}
func (NopObserver) PageSkipped(string)             {}
func (NopObserver) PageRendered(time.Duration)     {}
func (NopObserver) FetchRetried(string, int)       {}

// PrometheusObserver exports crawl events as Prometheus metrics.
type PrometheusObserver struct {
	pagesFetched  *prometheus.CounterVec
	pagesFailed   *prometheus.CounterVec
	pagesSkipped  *prometheus.CounterVec
	retries       prometheus.Counter
	fetchDuration prometheus.Histogram
	renderTime    prometheus.Histogram
}

// NewPrometheusObserver registers the crawler metrics with reg. Passing
// nil uses the default registerer.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusObserver{
		pagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_pages_fetched_total",
			Help: "Pages fetched successfully, by HTTP status code.",
		}, []string{"status"}),
		pagesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_pages_failed_total",
			Help: "Pages that failed terminally, by failure class.",
		}, []string{"class"}),
		pagesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_pages_skipped_total",
			Help: "URLs skipped before fetching, by reason.",
		}, []string{"reason"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_fetch_retries_total",
			Help: "Fetch attempts beyond the first.",
		}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Wall time of successful page fetches.",
			Buckets: prometheus.DefBuckets,
		}),
		renderTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_render_duration_seconds",
			Help:    "Wall time of JavaScript renders.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}
}

func (o *PrometheusObserver) PageFetched(statusCode int, duration time.Duration) {
	o.pagesFetched.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	o.fetchDuration.Observe(duration.Seconds())
}

func (o *PrometheusObserver) PageFailed(class FailureClass) {
	o.pagesFailed.WithLabelValues(string(class)).Inc()
}

func (o *PrometheusObserver) PageSkipped(reason string) {
	o.pagesSkipped.WithLabelValues(reason).Inc()
}

func (o *PrometheusObserver) PageRendered(duration time.Duration) {
	o.renderTime.Observe(duration.Seconds())
}

func (o *PrometheusObserver) FetchRetried(string, int) {
	o.retries.Inc()
}
