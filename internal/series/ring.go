package series

import (
	"time"
)

const (
	// DefaultCapacity is the number of samples kept for charting when the
	// owner does not configure a capacity.
	DefaultCapacity = 600

	// DefaultStaleness is the largest acceptable gap between consecutive
	// samples before the series is considered discontinuous.
	DefaultStaleness = 10 * time.Second
)

// Sample is one timestamped row of channel values.
//
// The channel order is fixed by the owner of the ring (for example
// generation, grid import, derived consumption); the ring itself never
// inspects values.
type Sample struct {
	// At is the wall-clock time the sample was taken.
	At time.Time

	// Values holds one reading per tracked channel.
	Values []float64
}

// Ring is a bounded, append-only buffer of samples in time order.
//
// Insertion order is time order; once the capacity is reached the oldest
// sample is evicted for each new one. A gap larger than the staleness
// threshold between the last buffered sample and a new one invalidates the
// whole buffer instead of leaving a hole in the series: the caller is
// expected to refetch history via [Ring.BulkLoad] before appending again.
//
// Ring is not safe for concurrent use. The reconciliation loop is its only
// writer and reader.
type Ring struct {
	capacity  int
	staleness time.Duration
	samples   []Sample
}

// NewRing creates a [Ring] with the given capacity and staleness threshold.
// Non-positive arguments fall back to [DefaultCapacity] and
// [DefaultStaleness].
func NewRing(capacity int, staleness time.Duration) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Ring{
		capacity:  capacity,
		staleness: staleness,
		samples:   make([]Sample, 0, capacity),
	}
}

// Append adds a sample to the end of the series.
//
// If the gap between the last buffered sample and s exceeds the staleness
// threshold, the buffer is discarded and Append returns false; the caller
// must reload history with [Ring.BulkLoad] before the series is usable
// again. Otherwise the sample is appended, the oldest sample is evicted if
// the ring is full, and Append returns true.
//
// Append never reorders and never deduplicates; pacing duplicate timestamps
// is the caller's responsibility.
func (r *Ring) Append(s Sample) bool {
	if n := len(r.samples); n > 0 {
		if s.At.Sub(r.samples[n-1].At) > r.staleness {
			r.samples = r.samples[:0]
			return false
		}
	}

	if len(r.samples) == r.capacity {
		copy(r.samples, r.samples[1:])
		r.samples[len(r.samples)-1] = s
		return true
	}

	r.samples = append(r.samples, s)
	return true
}

// BulkLoad replaces the ring contents wholesale.
//
// Used once at startup and after a detected gap. Only the most recent
// capacity samples of the input are kept. The input slice is copied.
func (r *Ring) BulkLoad(samples []Sample) {
	if len(samples) > r.capacity {
		samples = samples[len(samples)-r.capacity:]
	}
	r.samples = append(r.samples[:0], samples...)
}

// Samples returns a copy of the buffered series, oldest first.
func (r *Ring) Samples() []Sample {
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Len returns the number of buffered samples.
func (r *Ring) Len() int {
	return len(r.samples)
}

// Last returns the most recent sample, if any.
func (r *Ring) Last() (Sample, bool) {
	if len(r.samples) == 0 {
		return Sample{}, false
	}
	return r.samples[len(r.samples)-1], true
}
