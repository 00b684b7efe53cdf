package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters.
type Metrics struct {
	chunksWritten      prometheus.Counter
	chunksRead         prometheus.Counter
	recordsRead        prometheus.Counter
	catalogScans       prometheus.Counter
	catalogCacheHits   prometheus.Counter
	coverageViolations *prometheus.CounterVec
	ingestWindows      prometheus.Counter
	errors             prometheus.Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			chunksWritten: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "eventvault_chunks_written_total",
				Help: "Total number of chunk files written",
			}),
			chunksRead: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "eventvault_chunks_read_total",
				Help: "Total number of chunk files loaded by range reads",
			}),
			recordsRead: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "eventvault_records_read_total",
				Help: "Total number of records returned by range reads",
			}),
			catalogScans: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "eventvault_catalog_scans_total",
				Help: "Total number of event directories scanned",
			}),
			catalogCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "eventvault_catalog_cache_hits_total",
				Help: "Total number of event directories served from the catalog cache",
			}),
			coverageViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "eventvault_coverage_violations_total",
				Help: "Coverage anomalies detected while building the catalog",
			}, []string{"kind"}),
			ingestWindows: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "eventvault_ingest_windows_total",
				Help: "Total number of block windows ingested",
			}),
			errors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "eventvault_errors_total",
				Help: "Total number of errors encountered",
			}),
		}
		prometheus.MustRegister(
			metrics.chunksWritten,
			metrics.chunksRead,
			metrics.recordsRead,
			metrics.catalogScans,
			metrics.catalogCacheHits,
			metrics.coverageViolations,
			metrics.ingestWindows,
			metrics.errors,
		)
	})
	return metrics
}

// ChunkWritten increments the chunks written counter.
func (m *Metrics) ChunkWritten() {
	if m != nil {
		m.chunksWritten.Inc()
	}
}

// ChunksRead adds files and records loaded by one range read.
func (m *Metrics) ChunksRead(files, records int) {
	if m != nil {
		m.chunksRead.Add(float64(files))
		m.recordsRead.Add(float64(records))
	}
}

// CatalogScan increments the scanned event directory counter.
func (m *Metrics) CatalogScan() {
	if m != nil {
		m.catalogScans.Inc()
	}
}

// CatalogCacheHit increments the cache hit counter.
func (m *Metrics) CatalogCacheHit() {
	if m != nil {
		m.catalogCacheHits.Inc()
	}
}

// CoverageViolation records an overlap or gap anomaly.
func (m *Metrics) CoverageViolation(kind string) {
	if m != nil {
		m.coverageViolations.WithLabelValues(kind).Inc()
	}
}

// IngestWindow increments the ingested window counter.
func (m *Metrics) IngestWindow() {
	if m != nil {
		m.ingestWindows.Inc()
	}
}

// Errors increments the errors counter.
func (m *Metrics) Errors() {
	if m != nil {
		m.errors.Inc()
	}
}

// Handler returns an HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
