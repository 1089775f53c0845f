package pipeline

import "time"

// Stage names, used in logs, metrics and reports.
const (
	StageReference = "reference"
	StageJoin      = "join"
	StageEmit      = "emit"
)

// Report is the outcome of one file in one stage.
type Report struct {
	Stage  string
	Input  string
	Output string

	// Join stage.
	Read           int
	Matched        int
	Unmatched      int
	Dropped        int
	UnmatchedCodes []string
	Collisions     []string

	// Emit stage.
	Table           string
	Inserted        int
	GeometrySkipped int

	Bytes    int64
	Digest   uint64
	Duration time.Duration
	Err      error
}

// Failed reports whether the file hit a fatal error.
func (r Report) Failed() bool { return r.Err != nil }

// Totals aggregates reports of a batch.
type Totals struct {
	Files           int
	Failed          int
	Read            int
	Matched         int
	Unmatched       int
	Dropped         int
	Inserted        int
	GeometrySkipped int
}

// Summarize adds up reports.
func Summarize(reports []Report) Totals {
	var t Totals
	for _, r := range reports {
		t.Files++
		if r.Failed() {
			t.Failed++
		}
		t.Read += r.Read
		t.Matched += r.Matched
		t.Unmatched += r.Unmatched
		t.Dropped += r.Dropped
		t.Inserted += r.Inserted
		t.GeometrySkipped += r.GeometrySkipped
	}
	return t
}
