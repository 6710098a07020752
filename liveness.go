package panelcore

import "time"

// Liveness represents the health of a device as derived from its most
// recent poll cycle.
//
// Liveness is a string type that can hold one of three predefined values:
// [LivenessHealthy], [LivenessDegraded], or [LivenessUnreachable]. Using a
// string type allows for easy JSON serialization and human-readable logging
// while maintaining type safety through the defined constants.
type Liveness string

const (
	// LivenessHealthy indicates every request of the device's latest cycle
	// completed without error and within the maximum-latency threshold.
	LivenessHealthy Liveness = "healthy"

	// LivenessDegraded indicates the latest cycle hit a protocol-level or
	// device-side failure, or exceeded the maximum-latency threshold.
	LivenessDegraded Liveness = "degraded"

	// LivenessUnreachable indicates the device could not be reached at the
	// network level during the latest cycle.
	LivenessUnreachable Liveness = "unreachable"
)

// String returns the string representation of the liveness signal.
// This implements the fmt.Stringer interface.
func (l Liveness) String() string {
	return string(l)
}

// Update holds the outcome of one device's poll-and-reconcile cycle.
//
// Update is immutable after creation and carries the post-merge snapshots
// in display form, the numeric readings for derived aggregates, and the
// liveness signal for the cycle.
type Update struct {
	// DeviceID is the stable identifier of the polled device.
	DeviceID string

	// DeviceName is the device's display name at cycle completion.
	DeviceName string

	// Liveness is the derived health signal for this cycle.
	Liveness Liveness

	// Sensors is the post-merge sensor snapshot in display form.
	Sensors map[string]string

	// Controls is the post-merge control snapshot in display form.
	Controls map[string]string

	// Values carries every field with a numeric reading.
	Values map[string]float64

	// EstimatedLoadWatts is the derived electrical consumption of a
	// climate unit, nil when the readings needed for the estimate are
	// missing or the device is not a climate unit.
	EstimatedLoadWatts *float64

	// Latency is the slowest request of the cycle.
	Latency time.Duration

	// CheckedAt is when the cycle started.
	CheckedAt time.Time

	// Err contains the first error the cycle hit.
	// nil indicates a clean cycle (though Liveness may still be degraded
	// when the cycle was merely slow).
	Err error
}
