package series

import (
	"testing"
	"time"
)

// sampleAt builds a single-channel sample with the given offset from a
// fixed base time.
func sampleAt(offset time.Duration, v float64) Sample {
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	return Sample{At: base.Add(offset), Values: []float64{v}}
}

// TestRing_AppendWithinGap verifies that samples paced within the staleness
// threshold accumulate in order.
func TestRing_AppendWithinGap(t *testing.T) {
	r := NewRing(10, 10*time.Second)

	for i := 0; i < 5; i++ {
		if ok := r.Append(sampleAt(time.Duration(i)*3*time.Second, float64(i))); !ok {
			t.Fatalf("append %d reported a gap", i)
		}
	}

	got := r.Samples()
	if len(got) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(got))
	}
	for i, s := range got {
		if s.Values[0] != float64(i) {
			t.Errorf("sample %d: expected value %d, got %v", i, i, s.Values[0])
		}
	}
}

// TestRing_SlidingWindow verifies the sliding-window law: after capacity+N
// gapless appends the ring holds exactly the most recent capacity samples
// in time order, and never exceeds its capacity at any point.
func TestRing_SlidingWindow(t *testing.T) {
	const capacity = 600
	r := NewRing(capacity, 10*time.Second)

	total := capacity + 50
	for i := 0; i < total; i++ {
		r.Append(sampleAt(time.Duration(i)*time.Second, float64(i)))
		if r.Len() > capacity {
			t.Fatalf("ring exceeded capacity after append %d: len=%d", i, r.Len())
		}
	}

	got := r.Samples()
	if len(got) != capacity {
		t.Fatalf("expected %d samples, got %d", capacity, len(got))
	}
	for i, s := range got {
		want := float64(total - capacity + i)
		if s.Values[0] != want {
			t.Fatalf("sample %d: expected value %v, got %v", i, want, s.Values[0])
		}
	}
}

// TestRing_GapClearsBuffer verifies that a gap exceeding the staleness
// threshold discards the buffer rather than bridging it.
func TestRing_GapClearsBuffer(t *testing.T) {
	r := NewRing(10, 10*time.Second)

	r.Append(sampleAt(0, 1))
	r.Append(sampleAt(3*time.Second, 2))

	// 11s after the last sample: over the 10s threshold
	if ok := r.Append(sampleAt(14*time.Second, 3)); ok {
		t.Error("expected Append to report a discontinuity")
	}
	if r.Len() != 0 {
		t.Errorf("expected buffer to be cleared, got %d samples", r.Len())
	}
}

// TestRing_GapExactlyAtThreshold verifies that a gap of exactly the
// staleness threshold is still acceptable; only a strictly larger gap
// invalidates the series.
func TestRing_GapExactlyAtThreshold(t *testing.T) {
	r := NewRing(10, 10*time.Second)

	r.Append(sampleAt(0, 1))
	if ok := r.Append(sampleAt(10*time.Second, 2)); !ok {
		t.Error("gap equal to the threshold should not clear the buffer")
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 samples, got %d", r.Len())
	}
}

// TestRing_AppendAfterGapStartsFresh verifies that the first append after a
// detected gap succeeds (empty buffer has no gap to measure).
func TestRing_AppendAfterGapStartsFresh(t *testing.T) {
	r := NewRing(10, 10*time.Second)

	r.Append(sampleAt(0, 1))
	r.Append(sampleAt(30*time.Second, 2)) // discarded, clears buffer

	if ok := r.Append(sampleAt(31*time.Second, 3)); !ok {
		t.Error("append into an empty buffer must always succeed")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 sample, got %d", r.Len())
	}
}

// TestRing_BulkLoadReplacesContents verifies that BulkLoad swaps the series
// wholesale and truncates to the most recent capacity samples.
func TestRing_BulkLoadReplacesContents(t *testing.T) {
	r := NewRing(3, 10*time.Second)
	r.Append(sampleAt(0, 99))

	history := []Sample{
		sampleAt(0, 1),
		sampleAt(time.Second, 2),
		sampleAt(2*time.Second, 3),
		sampleAt(3*time.Second, 4),
		sampleAt(4*time.Second, 5),
	}
	r.BulkLoad(history)

	got := r.Samples()
	if len(got) != 3 {
		t.Fatalf("expected 3 samples after bulk load, got %d", len(got))
	}
	for i, want := range []float64{3, 4, 5} {
		if got[i].Values[0] != want {
			t.Errorf("sample %d: expected %v, got %v", i, want, got[i].Values[0])
		}
	}
}

// TestRing_SamplesReturnsCopy verifies that mutating the returned slice
// does not affect the ring.
func TestRing_SamplesReturnsCopy(t *testing.T) {
	r := NewRing(10, 10*time.Second)
	r.Append(sampleAt(0, 1))

	got := r.Samples()
	got[0] = sampleAt(time.Hour, 42)

	again := r.Samples()
	if again[0].Values[0] != 1 {
		t.Error("mutating the returned slice leaked into the ring")
	}
}

// TestRing_Last verifies Last on empty and populated rings.
func TestRing_Last(t *testing.T) {
	r := NewRing(10, 10*time.Second)

	if _, ok := r.Last(); ok {
		t.Error("Last on an empty ring should report no sample")
	}

	r.Append(sampleAt(0, 1))
	r.Append(sampleAt(time.Second, 2))

	last, ok := r.Last()
	if !ok || last.Values[0] != 2 {
		t.Errorf("expected last value 2, got %v (ok=%v)", last.Values, ok)
	}
}
