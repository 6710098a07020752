package panelcore

import (
	"errors"
	"time"
)

// deviceConfig holds mutable state during device construction.
type deviceConfig struct {
	name          string
	group         string
	timeout       time.Duration
	numericFields []string
}

// DeviceOption is a function that configures a [Device] during construction.
//
// DeviceOption implements the functional options pattern, allowing optional
// configuration to be passed to [NewDevice] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithName], [WithGroup], [WithTimeout],
// [WithNumericFields].
type DeviceOption func(*deviceConfig) error

// WithName sets the device's display name.
//
// If not specified, the device ID is used. For climate units, the name
// the unit itself reports via basic-info discovery replaces this at
// startup.
//
// Example:
//
//	dev, err := panelcore.NewDevice("living", url, panelcore.KindAircon,
//	    panelcore.WithName("Living Room"),
//	)
func WithName(name string) DeviceOption {
	return func(cfg *deviceConfig) error {
		cfg.name = name
		return nil
	}
}

// WithGroup assigns the device to a scheduling group.
//
// Devices in the same group share one poll scheduler: they are polled on
// the same period, fan out concurrently on each tick, and a user edit on
// any of them resets the whole group's timer. If not specified, the device
// kind is used, so climate units group together and controllers poll
// independently.
//
// Example:
//
//	upstairs, _ := panelcore.NewDevice("bed1", url1, panelcore.KindAircon,
//	    panelcore.WithGroup("upstairs"),
//	)
func WithGroup(group string) DeviceOption {
	return func(cfg *deviceConfig) error {
		if group == "" {
			return errors.New("group cannot be empty")
		}
		cfg.group = group
		return nil
	}
}

// WithTimeout sets the HTTP request timeout for this device.
//
// The timeout only bounds the underlying request; the liveness signal uses
// the separate maximum-latency threshold, which is advisory and never
// aborts a request. Defaults to 4 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) DeviceOption {
	return func(cfg *deviceConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithNumericFields sets the fields resolved as numbers at merge time.
//
// A numeric field whose raw value is not a number is displayed with the
// unknown sentinel rather than propagated as-is; the humidifier hold
// marker resolves to its numeric ceiling. Fields outside this set pass
// through as text. If not specified, a per-dialect default set is used.
//
// Example:
//
//	dev, err := panelcore.NewDevice("solar", url, panelcore.KindController,
//	    panelcore.WithNumericFields("production", "consumption", "min_load"),
//	)
func WithNumericFields(fields ...string) DeviceOption {
	return func(cfg *deviceConfig) error {
		cfg.numericFields = append([]string(nil), fields...)
		return nil
	}
}
