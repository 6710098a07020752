package store

import "time"

// DeviceView is the reconciled state of one device as exposed to the
// rendering collaborator, optimized for JSON serialization (REST and SSE).
// It is decoupled from the reconciler's internal types so the two can
// evolve independently.
type DeviceView struct {
	// ID is the device's stable identifier.
	ID string `json:"id"`

	// Name is the device's display name.
	Name string `json:"name"`

	// Liveness is the derived signal ("healthy", "degraded", "unreachable").
	Liveness string `json:"liveness"`

	// Sensors is the last merged sensor snapshot in display form.
	Sensors map[string]string `json:"sensors"`

	// Controls is the last merged control snapshot in display form.
	Controls map[string]string `json:"controls"`

	// LatencyMs is the slowest request of the last cycle, in milliseconds.
	LatencyMs int64 `json:"latency_ms"`

	// CheckedAt is when the last cycle ran.
	CheckedAt time.Time `json:"checked_at"`

	// Error carries the last cycle's error message, nil for a clean cycle.
	Error *string `json:"error"`
}

// Store holds the latest reconciled view per device and pushes updates to
// subscribers.
//
// Implementations must be safe for concurrent access. The pub/sub
// mechanism feeds real-time consumers such as the SSE stream.
type Store interface {
	// Update stores a view and notifies all subscribers. Views are keyed
	// by device ID; newer views replace older ones.
	Update(view DeviceView)

	// GetAll returns all current device views as a snapshot copy.
	GetAll() []DeviceView

	// Subscribe returns a channel receiving view updates. The channel is
	// buffered; slow consumers may miss updates. Callers must Unsubscribe
	// when done.
	Subscribe() <-chan DeviceView

	// Unsubscribe removes a subscription and closes the channel. Safe to
	// call with an already-removed channel.
	Unsubscribe(ch <-chan DeviceView)
}
