package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ChunkWritten()
	m.ChunksRead(2, 10)
	m.CatalogScan()
	m.CatalogCacheHit()
	m.CoverageViolation("overlap")
	m.IngestWindow()
	m.Errors()
}

func TestInitIsIdempotentAndExported(t *testing.T) {
	m := Init()
	if Init() != m {
		t.Fatalf("expected the same instance")
	}
	m.ChunkWritten()
	m.CoverageViolation("missing_blocks")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"eventvault_chunks_written_total", `eventvault_coverage_violations_total{kind="missing_blocks"}`} {
		if !strings.Contains(body, name) {
			t.Fatalf("metric %s not exported", name)
		}
	}
}
