package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"geosql/internal/metrics"
)

// readCounterValue reads the current value of a Counter for assertions in tests.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

// readSummaryCountSum reads sample count and sum from a SummaryVec.
func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	sum := m.GetSummary()
	if sum == nil {
		t.Fatalf("metric did not contain Summary value")
	}
	return sum.GetSampleCount(), sum.GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL returns error", jobName: "municipal", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "geosql"},
		{name: "explicit job name is preserved", jobName: "setores_2024", gatewayURL: "http://pushgateway:9091", wantJobName: "setores_2024"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want nil, error", tt.jobName, tt.gatewayURL, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend(%q, %q) error = %v", tt.jobName, tt.gatewayURL, err)
			}
			if b.jobName != tt.wantJobName || b.gatewayURL != tt.gatewayURL {
				t.Fatalf("backend = %s @ %s", b.jobName, b.gatewayURL)
			}
			if b.stepCounter == nil || b.stepDuration == nil || b.rowCounter == nil || b.fileCounter == nil {
				t.Fatalf("collectors not initialized: %+v", b)
			}
		})
	}
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("municipal", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter(metrics.StepTotal, 3, metrics.Labels{"step": "join", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 5, metrics.Labels{"kind": metrics.KindMatched})
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": metrics.KindMatched})
	b.IncCounter(metrics.FilesTotal, 2, metrics.Labels{"stage": "emit", "status": "failure"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"kind": metrics.KindMatched})

	if got := readCounterValue(t, b.stepCounter.WithLabelValues("join", "success")); got != 3 {
		t.Fatalf("step counter = %v, want 3", got)
	}
	if got := readCounterValue(t, b.rowCounter.WithLabelValues(metrics.KindMatched)); got != 6 {
		t.Fatalf("row counter = %v, want 6", got)
	}
	if got := readCounterValue(t, b.fileCounter.WithLabelValues("emit", "failure")); got != 2 {
		t.Fatalf("file counter = %v, want 2", got)
	}
}

func TestIncCounterNilMetrics(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": metrics.KindRead})
	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{})
	b.ObserveHistogram(metrics.StepDuration, 1, metrics.Labels{})
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("municipal", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	lbls := metrics.Labels{"step": "emit", "status": "success"}
	b.ObserveHistogram(metrics.StepDuration, 1.5, lbls)
	b.ObserveHistogram("other_metric", 2.0, lbls)

	count, sum := readSummaryCountSum(t, b.stepDuration, "emit", "success")
	if count != 1 || sum != 1.5 {
		t.Fatalf("summary = %d samples, sum %v; want 1, 1.5", count, sum)
	}
}

func TestFlush(t *testing.T) {
	t.Parallel()

	type pushRequestInfo struct {
		method string
		path   string
		body   string
	}
	reqCh := make(chan pushRequestInfo, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushRequestInfo{method: r.Method, path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("setores", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": metrics.KindInserted})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pushRequestInfo
	select {
	case got = <-reqCh:
	default:
		t.Fatalf("Flush() did not result in any HTTP request to the Pushgateway")
	}
	if got.method != http.MethodPut {
		t.Fatalf("method = %s, want PUT", got.method)
	}
	if !strings.Contains(got.path, "/job/setores") {
		t.Fatalf("path = %s, want job grouping", got.path)
	}
	if len(got.body) == 0 {
		t.Fatalf("Push request body is empty")
	}
}

func BenchmarkIncCounterRow(b *testing.B) {
	backend, err := NewBackend("geosql", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}
	labels := metrics.Labels{"kind": metrics.KindRead}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.RowsTotal, 1, labels)
	}
}
