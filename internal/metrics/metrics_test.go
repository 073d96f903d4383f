package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_HandlerExposesCounters(t *testing.T) {
	r := NewRegistry()
	r.DocumentsWritten.Add(500)
	r.BatchesCommitted.Inc()
	r.BatchLatencySec.Observe(0.2)

	if got := testutil.ToFloat64(r.DocumentsWritten); got != 500 {
		t.Fatalf("documents=%v", got)
	}

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"lvimport_documents_written_total 500", "lvimport_batches_committed_total 1", "lvimport_batch_commit_seconds_count 1"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("missing %q in:\n%s", name, body)
		}
	}
}
