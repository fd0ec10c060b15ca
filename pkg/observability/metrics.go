package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes Prometheus metrics describing usage fetches.
type Recorder struct {
	initOnce      sync.Once
	fetchesTotal  *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	usageItems    *prometheus.GaugeVec
}

// NewRecorder constructs a metrics recorder and registers Prometheus collectors.
func NewRecorder() *Recorder {
	r := &Recorder{}
	r.initOnce.Do(func() {
		r.fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kubetop_fetches_total",
			Help: "Number of usage fetch operations, by resource kind",
		}, []string{"resource"})
		r.fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kubetop_fetch_errors_total",
			Help: "Number of failed usage fetch operations, by resource kind",
		}, []string{"resource"})
		r.fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kubetop_fetch_duration_seconds",
			Help:    "Wall-clock duration of usage fetch operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"})
		r.usageItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kubetop_usage_items",
			Help: "Number of usage records returned by the latest successful fetch",
		}, []string{"resource"})
	})
	return r
}

// ObserveFetch records the outcome of one fetch operation.
func (r *Recorder) ObserveFetch(resource string, elapsed time.Duration, items int, err error) {
	r.fetchesTotal.WithLabelValues(resource).Inc()
	r.fetchDuration.WithLabelValues(resource).Observe(elapsed.Seconds())
	if err != nil {
		r.fetchErrors.WithLabelValues(resource).Inc()
		return
	}
	r.usageItems.WithLabelValues(resource).Set(float64(items))
}
