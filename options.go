package panelcore

import (
	"errors"
	"log/slog"
	"time"
)

// panelConfig holds mutable state during Panel construction.
type panelConfig struct {
	devices         []Device
	readInterval    time.Duration
	maxLatency      time.Duration
	port            int
	chartCapacity   int
	chartStaleness  time.Duration
	logger          *slog.Logger
	updateCallbacks []func(Update)
}

// Option is a function that configures a [Panel] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithDevice], [WithDevices], [WithReadInterval],
// [WithMaxLatency], [WithPort], [WithChartCapacity], [WithChartStaleness],
// [WithLogger], [WithUpdateCallback].
type Option func(*panelConfig) error

// WithDevice adds a single [Device] to the polling list.
//
// Can be called multiple times to add multiple devices. At least one
// device must be configured for [New] to succeed.
//
// Example:
//
//	p, err := panelcore.New(
//	    panelcore.WithDevice(living),
//	    panelcore.WithDevice(bedrooms),
//	)
func WithDevice(d Device) Option {
	return func(cfg *panelConfig) error {
		cfg.devices = append(cfg.devices, d)
		return nil
	}
}

// WithDevices adds multiple [Device] values to the polling list.
//
// This is a convenience function for adding several devices at once.
// Equivalent to calling [WithDevice] multiple times.
func WithDevices(devices ...Device) Option {
	return func(cfg *panelConfig) error {
		cfg.devices = append(cfg.devices, devices...)
		return nil
	}
}

// WithReadInterval sets the period between poll cycles.
//
// The interval applies to every scheduling group. A user edit resets the
// affected group's timer so the next automatic cycle lands a full period
// after the edit. Defaults to 3 seconds if not specified; some energy
// controllers drop connections when polled faster.
//
// Returns an error if the duration is zero or negative.
func WithReadInterval(d time.Duration) Option {
	return func(cfg *panelConfig) error {
		if d <= 0 {
			return errors.New("read interval must be positive")
		}
		cfg.readInterval = d
		return nil
	}
}

// WithMaxLatency sets the advisory maximum-latency threshold.
//
// A cycle whose slowest request exceeds this threshold marks the device
// degraded. The threshold never aborts a request; the per-device timeout
// does that. Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithMaxLatency(d time.Duration) Option {
	return func(cfg *panelConfig) error {
		if d <= 0 {
			return errors.New("max latency must be positive")
		}
		cfg.maxLatency = d
		return nil
	}
}

// WithPort sets the HTTP port for the state server.
//
// The JSON and SSE API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *panelConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithChartCapacity sets the number of samples kept in the chart ring.
//
// Oldest samples are evicted first once the ring is full. Defaults to 600
// if not specified.
//
// Returns an error if the capacity is zero or negative.
func WithChartCapacity(n int) Option {
	return func(cfg *panelConfig) error {
		if n <= 0 {
			return errors.New("chart capacity must be positive")
		}
		cfg.chartCapacity = n
		return nil
	}
}

// WithChartStaleness sets the maximum acceptable gap between consecutive
// chart samples.
//
// A gap beyond this threshold discards the ring and triggers a bulk
// refetch of history rather than bridging the discontinuity. Defaults to
// 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithChartStaleness(d time.Duration) Option {
	return func(cfg *panelConfig) error {
		if d <= 0 {
			return errors.New("chart staleness must be positive")
		}
		cfg.chartStaleness = d
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Panel instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *panelConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithUpdateCallback registers a function to be called on every completed
// poll cycle.
//
// The callback receives an [Update] containing the reconciled snapshots,
// the liveness signal, and the cycle's latency.
//
// Multiple callbacks may be registered by calling WithUpdateCallback
// multiple times; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. Long-running operations
// should dispatch work to a separate goroutine. Blocking callbacks will
// delay subsequent cycle result processing.
//
// Callbacks are invoked synchronously from a single goroutine. Panics
// within callbacks are recovered and logged with a correlation ID; they
// do not crash the scheduler.
//
// Nil callbacks are silently ignored.
func WithUpdateCallback(cb func(Update)) Option {
	return func(cfg *panelConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.updateCallbacks = append(cfg.updateCallbacks, cb)
		return nil
	}
}
