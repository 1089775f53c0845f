package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

// The tests below swap the package-level backend and therefore do not run
// in parallel.

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordStep("municipal", "reference", nil, 2*time.Second)
	RecordStep("municipal", "join", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.callsCounters) != 2 || len(fb.callsHistograms) != 2 {
		t.Fatalf("got %d counters, %d histograms; want 2, 2", len(fb.callsCounters), len(fb.callsHistograms))
	}

	cc0 := fb.callsCounters[0]
	if cc0.name != StepTotal || cc0.delta != 1 {
		t.Fatalf("counter[0] = %#v; want name=%s, delta=1", cc0, StepTotal)
	}
	if cc0.labels["job"] != "municipal" || cc0.labels["step"] != "reference" || cc0.labels["status"] != "success" {
		t.Fatalf("counter[0].labels = %v", cc0.labels)
	}
	h0 := fb.callsHistograms[0]
	if h0.name != StepDuration || h0.value < 2.0-0.001 || h0.value > 2.0+0.001 {
		t.Fatalf("hist[0] = %#v; want %s ~2.0", h0, StepDuration)
	}

	cc1 := fb.callsCounters[1]
	if cc1.labels["step"] != "join" || cc1.labels["status"] != "failure" {
		t.Fatalf("counter[1].labels = %v", cc1.labels)
	}
	if h1 := fb.callsHistograms[1]; h1.value < 1.5-0.001 || h1.value > 1.5+0.001 {
		t.Fatalf("hist[1].value=%v; want ~1.5", h1.value)
	}
}

func TestRecordRowAndFile(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordRow("sector", KindMatched, 3)
	RecordRow("sector", KindUnmatched, 0) // ignored
	RecordRow("sector", KindInserted, 5)
	RecordFile("sector", "emit", errors.New("disk full"))

	if len(fb.callsCounters) != 3 {
		t.Fatalf("expected 3 counter calls, got %d", len(fb.callsCounters))
	}
	if c := fb.callsCounters[0]; c.name != RowsTotal || c.delta != 3 || c.labels["kind"] != KindMatched {
		t.Fatalf("counter[0] = %#v", c)
	}
	if c := fb.callsCounters[1]; c.name != RowsTotal || c.delta != 5 || c.labels["kind"] != KindInserted {
		t.Fatalf("counter[1] = %#v", c)
	}
	c := fb.callsCounters[2]
	if c.name != FilesTotal || c.labels["stage"] != "emit" || c.labels["status"] != "failure" || c.labels["job"] != "sector" {
		t.Fatalf("counter[2] = %#v", c)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)
	if backend != fb {
		t.Fatal("SetBackend did not replace global backend")
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}

	SetBackend(nil)
	if backend != fb {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}
