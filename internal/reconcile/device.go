package reconcile

import (
	"sync"

	"github.com/brickbattery/panelcore/internal/deviceapi"
)

// consumption estimate coefficients for the climate units: the outdoor
// compressor dominates the electrical load, the humidifier adds a fixed
// block when on (from the units' measured behavior).
const (
	wattsPerCompressorHertz = 20
	humidifierLoadWatts     = 200
)

// Config describes one device to reconcile.
type Config struct {
	// ID is the stable identifier used in views, logs, and the control API.
	ID string

	// Name is the initial display name; basic-info discovery may replace it.
	Name string

	// Conn is the device's dialect connection.
	Conn deviceapi.Conn

	// NumericFields lists the fields resolved with [ResolveNumber];
	// everything else passes through as text.
	NumericFields []string
}

// Device is the reconciler's mutable view of one endpoint: last-known
// sensor and control snapshots, the coalesced pending command, the dirty
// flag, and the fields currently being edited.
//
// The snapshots and the dirty flag are mutated by the reconciler on poll
// completion and by the UI layer on user action; one mutex covers the
// whole pair so a flag check and its corresponding state write are atomic.
type Device struct {
	id      string
	conn    deviceapi.Conn
	numeric map[string]struct{}

	mu          sync.Mutex
	name        string
	sensors     map[string]Value
	controls    map[string]Value
	pending     deviceapi.Fields
	dirty       bool
	editing     map[string]struct{}
	flushMisses int
}

// NewDevice creates a [Device] with empty snapshots and a clean pending
// command.
func NewDevice(cfg Config) *Device {
	numeric := make(map[string]struct{}, len(cfg.NumericFields))
	for _, f := range cfg.NumericFields {
		numeric[f] = struct{}{}
	}
	return &Device{
		id:       cfg.ID,
		conn:     cfg.Conn,
		numeric:  numeric,
		name:     cfg.Name,
		sensors:  make(map[string]Value),
		controls: make(map[string]Value),
		pending:  make(deviceapi.Fields),
		editing:  make(map[string]struct{}),
	}
}

// ID returns the device's stable identifier.
func (d *Device) ID() string {
	return d.id
}

// Name returns the device's display name.
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// SetName replaces the display name (basic-info discovery).
func (d *Device) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if name != "" {
		d.name = name
	}
}

// StageEdit writes one field into the pending command and sets the dirty
// flag. Later edits to the same field overwrite earlier ones; the whole
// accumulated command goes out as a single write on the next flush.
func (d *Device) StageEdit(field, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[field] = value
	d.dirty = true
}

// BeginEdit marks a field as being actively typed into. Poll merges will
// not touch it until EndEdit.
func (d *Device) BeginEdit(field string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.editing[field] = struct{}{}
}

// EndEdit clears a field's editing mark.
func (d *Device) EndEdit(field string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.editing, field)
}

// Dirty reports whether a command is pending and unconfirmed.
func (d *Device) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// PendingCommand returns a copy of the staged edits.
func (d *Device) PendingCommand() deviceapi.Fields {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Clone()
}

// flushForWrite atomically takes the pending command for sending: the
// command is copied, the staging area emptied, and the dirty flag cleared
// before the write is even issued. Edits arriving while the write is in
// flight therefore start a fresh dirty command instead of being lost; the
// cost is that the confirmation read for this write is discarded if the
// flag is set again by the time it lands.
//
// base is the last confirmed control snapshot in wire form, for dialects
// that require full-set writes.
func (d *Device) flushForWrite() (changes, base deviceapi.Fields, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.dirty {
		return nil, nil, false
	}
	changes = d.pending
	d.pending = make(deviceapi.Fields, len(changes))
	d.dirty = false

	base = make(deviceapi.Fields, len(d.controls))
	for field, v := range d.controls {
		base[field] = v.String()
	}
	return changes, base, true
}

// restage puts a failed command back into the staging area so the next
// cycle retries it. Fields the operator re-edited while the write was in
// flight keep their newer value. Returns the consecutive miss count.
func (d *Device) restage(changes deviceapi.Fields) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	for field, value := range changes {
		if _, exists := d.pending[field]; !exists {
			d.pending[field] = value
		}
	}
	d.dirty = true
	d.flushMisses++
	return d.flushMisses
}

// noteFlushLanded resets the consecutive miss counter after a write was
// accepted by the device.
func (d *Device) noteFlushLanded() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushMisses = 0
}

// mergeSensors replaces the sensor snapshot with a freshly polled one.
// Sensors are never user-edited, so there is no race to guard against.
func (d *Device) mergeSensors(fields deviceapi.Fields) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sensors = d.resolveLocked(fields)
}

// mergeControls replaces the control snapshot with a freshly polled one,
// unless the dirty flag is set: a flag set while the read was in flight
// means the payload would visually revert a newer edit, so the whole
// payload is discarded and mergeControls returns false. Fields currently
// being typed into keep their local value either way.
func (d *Device) mergeControls(fields deviceapi.Fields) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dirty {
		return false
	}
	merged := d.resolveLocked(fields)
	for field := range d.editing {
		if old, ok := d.controls[field]; ok {
			merged[field] = old
		} else {
			delete(merged, field)
		}
	}
	d.controls = merged
	return true
}

// resolveLocked maps raw wire fields to resolved values. Caller must hold
// d.mu.
func (d *Device) resolveLocked(fields deviceapi.Fields) map[string]Value {
	resolved := make(map[string]Value, len(fields))
	for field, raw := range fields {
		if _, ok := d.numeric[field]; ok {
			resolved[field] = ResolveNumber(raw)
		} else {
			resolved[field] = Text(raw)
		}
	}
	return resolved
}

// DisplaySensors returns the sensor snapshot in display form.
func (d *Device) DisplaySensors() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return displayLocked(d.sensors)
}

// DisplayControls returns the control snapshot in display form.
func (d *Device) DisplayControls() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return displayLocked(d.controls)
}

// NumericValues returns every field with a numeric reading, controls
// shadowing sensors on a name collision.
func (d *Device) NumericValues() map[string]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	values := make(map[string]float64)
	for field, v := range d.sensors {
		if n, ok := v.Num(); ok {
			values[field] = n
		}
	}
	for field, v := range d.controls {
		if n, ok := v.Num(); ok {
			values[field] = n
		}
	}
	return values
}

// EstimatedLoad derives a climate unit's electrical consumption in watts
// from the compressor frequency and the humidifier state. The second
// return is false when the readings needed for the estimate are missing.
func (d *Device) EstimatedLoad() (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cmpfreq, ok := d.sensors["cmpfreq"]
	if !ok {
		return 0, false
	}
	freq, ok := cmpfreq.Num()
	if !ok {
		return 0, false
	}

	load := freq * wattsPerCompressorHertz
	if shum, ok := d.controls["shum"]; ok {
		if humidity, ok := shum.Num(); ok && humidity > 0 {
			load += humidifierLoadWatts
		}
	}
	return load, true
}

func displayLocked(values map[string]Value) map[string]string {
	out := make(map[string]string, len(values))
	for field, v := range values {
		out[field] = v.String()
	}
	return out
}
