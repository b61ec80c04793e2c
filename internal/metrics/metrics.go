package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Collection Metrics
	CollectionRunsTotal    *prometheus.CounterVec
	CollectionRecordsTotal *prometheus.CounterVec
	CollectionDuration     prometheus.Histogram

	// Database Metrics
	DBQueryDuration *prometheus.HistogramVec
	DBErrorsTotal   *prometheus.CounterVec

	// Cache Metrics
	CacheLookupsTotal *prometheus.CounterVec

	// Request log
	RequestLogEntries prometheus.Gauge
}

// NewCollector registers the service metrics on reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		APIRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		CollectionRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collection_runs_total",
				Help:      "Total number of feed collection runs by result",
			},
			[]string{"result"},
		),

		CollectionRecordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collection_records_total",
				Help:      "Feed records seen during collection by kind (valid, invalid, stored)",
			},
			[]string{"kind"},
		),

		CollectionDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "collection_duration_seconds",
				Help:      "Duration of a fetch-and-store run in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		DBQueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by query type",
			},
			[]string{"query_type"},
		),

		CacheLookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Read cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),

		RequestLogEntries: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "request_log_entries",
				Help:      "Number of entries currently held in the request performance log",
			},
		),
	}
}

// Timer measures one operation. Timers started on a nil Collector only
// measure, so callers without metrics need no branches.
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// StartQuery times a database query of the given type.
func (c *Collector) StartQuery(queryType string) Timer {
	t := Timer{start: time.Now()}
	if c != nil {
		t.observer = c.DBQueryDuration.WithLabelValues(queryType)
	}
	return t
}

// StartCollection times one fetch-and-store run.
func (c *Collector) StartCollection() Timer {
	t := Timer{start: time.Now()}
	if c != nil {
		t.observer = c.CollectionDuration
	}
	return t
}

// Stop records the elapsed time and returns it.
func (t Timer) Stop() time.Duration {
	d := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(d.Seconds())
	}
	return d
}

// RecordAPIRequest increments the API request counter and observes its duration.
func (c *Collector) RecordAPIRequest(endpoint, method, status string, d time.Duration) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	c.APIRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordCollection records the outcome of one collection run.
func (c *Collector) RecordCollection(valid, invalid, stored int, err error) {
	if err != nil {
		c.CollectionRunsTotal.WithLabelValues("error").Inc()
		return
	}
	c.CollectionRunsTotal.WithLabelValues("success").Inc()
	c.CollectionRecordsTotal.WithLabelValues("valid").Add(float64(valid))
	c.CollectionRecordsTotal.WithLabelValues("invalid").Add(float64(invalid))
	c.CollectionRecordsTotal.WithLabelValues("stored").Add(float64(stored))
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(queryType string) {
	c.DBErrorsTotal.WithLabelValues(queryType).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (c *Collector) RecordCacheLookup(hit bool) {
	if hit {
		c.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	c.CacheLookupsTotal.WithLabelValues("miss").Inc()
}
