// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the join and emission stages.
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//
// Concrete metric systems live in subpackages (prompush, datadog).
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal    = "geosql_step_total"
	StepDuration = "geosql_step_duration_seconds"
	RowsTotal    = "geosql_rows_total"
	FilesTotal   = "geosql_files_total"
)

// Row kinds recorded with RecordRow.
const (
	KindRead            = "read"
	KindMatched         = "matched"
	KindUnmatched       = "unmatched"
	KindDuplicateCodes  = "duplicate_codes"
	KindInvalidCodes    = "invalid_codes"
	KindInserted        = "inserted"
	KindGeometrySkipped = "geometry_skipped"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend. It must be called before any stage starts.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep measures latency and success/failure of one stage step, such
// as loading the reference or joining one file.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a row-level counter for the given job and kind.
func RecordRow(job, kind string, delta int) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordFile counts one processed file per stage and outcome.
func RecordFile(job, stage string, err error) {
	backend.IncCounter(FilesTotal, 1, Labels{
		"job":    job,
		"stage":  stage,
		"status": status(err),
	})
}
