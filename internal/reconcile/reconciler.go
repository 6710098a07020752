package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brickbattery/panelcore/internal/deviceapi"
)

// Liveness values derived per cycle from latency and error outcome.
const (
	LivenessHealthy     = "healthy"
	LivenessDegraded    = "degraded"
	LivenessUnreachable = "unreachable"
)

// DefaultMaxLatency is the advisory per-request latency ceiling: a cycle
// whose slowest request exceeds it is marked degraded. It never aborts the
// request itself.
const DefaultMaxLatency = 10 * time.Second

// flushMissWarnThreshold is the consecutive failed-flush count after which
// an undelivered command is called out in the log. Commands never expire;
// the warning is the operator's signal that edits are coalescing against
// an unreachable device.
const flushMissWarnThreshold = 5

// Result is the outcome of one device's poll cycle, consumed by the
// application-level update loop.
type Result struct {
	// DeviceID identifies the device.
	DeviceID string

	// DeviceName is the display name at cycle completion.
	DeviceName string

	// Liveness is the derived healthy/degraded/unreachable signal.
	Liveness string

	// Sensors is the post-merge sensor snapshot in display form.
	Sensors map[string]string

	// Controls is the post-merge control snapshot in display form.
	Controls map[string]string

	// Values carries every field with a numeric reading, for derived
	// aggregates such as chart samples.
	Values map[string]float64

	// Latency is the slowest request of the cycle.
	Latency time.Duration

	// CheckedAt is when the cycle started.
	CheckedAt time.Time

	// Err is the first error the cycle hit, nil for a clean cycle.
	Err error
}

// Reconciler merges freshly polled device state into the local view.
type Reconciler struct {
	logger     *slog.Logger
	maxLatency time.Duration
}

// New creates a [Reconciler]. A non-positive maxLatency falls back to
// [DefaultMaxLatency].
func New(maxLatency time.Duration, logger *slog.Logger) *Reconciler {
	if maxLatency <= 0 {
		maxLatency = DefaultMaxLatency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		logger:     logger,
		maxLatency: maxLatency,
	}
}

// CycleDevice runs one poll-and-reconcile cycle for a device.
//
// The sensor read and the control chain run concurrently. When the dirty
// flag is set the control chain flushes the pending command first, with
// the confirmation read strictly ordered after the write resolves;
// otherwise it just reads the current controls. Merging honors the device's
// dirty flag and edit set; liveness is recomputed from the cycle's
// slowest request and first error.
func (r *Reconciler) CycleDevice(ctx context.Context, d *Device) Result {
	checkedAt := time.Now()

	var sensorElapsed, writeElapsed, confirmElapsed time.Duration

	var g errgroup.Group
	g.Go(func() error {
		elapsed, fields, err := d.conn.ReadSensors(ctx)
		sensorElapsed = elapsed
		if err != nil {
			return err
		}
		d.mergeSensors(fields)
		return nil
	})
	g.Go(func() error {
		if changes, base, ok := d.flushForWrite(); ok {
			elapsed, _, err := d.conn.WriteControls(ctx, base, changes)
			writeElapsed = elapsed
			if err != nil {
				r.handleWriteFailure(d, changes, err)
				return err
			}
			d.noteFlushLanded()
		}

		elapsed, fields, err := d.conn.ReadControls(ctx)
		confirmElapsed = elapsed
		if err != nil {
			return err
		}
		if !d.mergeControls(fields) {
			r.logger.Debug("control read discarded, newer edits pending",
				"device", d.ID(),
			)
		}
		return nil
	})
	err := g.Wait()

	latency := maxDuration(sensorElapsed, writeElapsed, confirmElapsed)

	return Result{
		DeviceID:   d.ID(),
		DeviceName: d.Name(),
		Liveness:   r.liveness(err, latency),
		Sensors:    d.DisplaySensors(),
		Controls:   d.DisplayControls(),
		Values:     d.NumericValues(),
		Latency:    latency,
		CheckedAt:  checkedAt,
		Err:        err,
	}
}

// handleWriteFailure decides what happens to a command whose write failed.
// A device-side rejection drops the command: the device said no, and the
// would-be values must not be applied locally either. A transport or
// protocol failure restages the command so the next cycle retries it,
// warning once the miss count passes the threshold.
func (r *Reconciler) handleWriteFailure(d *Device, changes deviceapi.Fields, err error) {
	var appErr *deviceapi.ApplicationError
	if errors.As(err, &appErr) {
		r.logger.Warn("device rejected command",
			"device", d.ID(),
			"disposition", appErr.Disposition,
			"command", changes,
		)
		return
	}

	misses := d.restage(changes)
	r.logger.Debug("command restaged after failed write",
		"device", d.ID(),
		"error", err,
	)
	if misses >= flushMissWarnThreshold {
		r.logger.Warn("pending command has not landed",
			"device", d.ID(),
			"consecutive_misses", misses,
			"command", d.PendingCommand(),
		)
	}
}

// liveness derives the cycle's signal: healthy only when every request
// completed in time and without error.
func (r *Reconciler) liveness(err error, latency time.Duration) string {
	if err != nil {
		var transErr *deviceapi.TransportError
		if errors.As(err, &transErr) {
			return LivenessUnreachable
		}
		return LivenessDegraded
	}
	if latency > r.maxLatency {
		return LivenessDegraded
	}
	return LivenessHealthy
}

func maxDuration(durations ...time.Duration) time.Duration {
	var out time.Duration
	for _, d := range durations {
		if d > out {
			out = d
		}
	}
	return out
}
