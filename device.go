package panelcore

import (
	"errors"
	"net/url"
	"time"
)

const defaultDeviceTimeout = 4 * time.Second

// DeviceKind selects the wire dialect spoken to a device.
type DeviceKind string

const (
	// KindAircon is the climate-control dialect: comma-separated key=value
	// bodies under /aircon/ and /common/ resources, with a ret disposition
	// token on every reply.
	KindAircon DeviceKind = "aircon"

	// KindController is the energy-controller dialect: JSON object bodies
	// under /status, /controls, and /recent-values.
	KindController DeviceKind = "controller"
)

// String returns the string representation of the device kind.
func (k DeviceKind) String() string {
	return string(k)
}

// Device describes one controllable endpoint to poll and reconcile.
//
// Device is immutable after creation via [NewDevice]. All fields are
// private with getter methods that return copies of mutable data,
// ensuring the device cannot be modified after construction.
//
// Devices are configured using the functional options pattern with
// [DeviceOption] functions such as [WithName], [WithGroup], [WithTimeout],
// and [WithNumericFields].
type Device struct {
	id            string
	url           string
	kind          DeviceKind
	name          string
	group         string
	timeout       time.Duration
	numericFields []string
}

// ID returns the device's stable identifier, used in views, logs, and the
// control API.
func (d Device) ID() string {
	return d.id
}

// URL returns the device's base address as a string.
func (d Device) URL() string {
	return d.url
}

// Kind returns the wire dialect spoken to this device.
func (d Device) Kind() DeviceKind {
	return d.kind
}

// Name returns the device's display name.
// For climate units, basic-info discovery at startup may replace it with
// the name the unit itself reports.
func (d Device) Name() string {
	return d.name
}

// Group returns the scheduling group this device belongs to. Devices in
// the same group are polled by one scheduler and fan out concurrently on
// each tick. Defaults to the device kind if not set via [WithGroup].
func (d Device) Group() string {
	return d.group
}

// Timeout returns the per-request HTTP timeout for this device.
// Defaults to 4 seconds if not explicitly set via [WithTimeout].
func (d Device) Timeout() time.Duration {
	return d.timeout
}

// NumericFields returns a copy of the fields resolved as numbers at merge
// time. Fields outside this set pass through as text.
func (d Device) NumericFields() []string {
	cp := make([]string, len(d.numericFields))
	copy(cp, d.numericFields)
	return cp
}

// defaultNumericFields returns the per-dialect set of fields resolved as
// numbers when none is configured explicitly.
func defaultNumericFields(kind DeviceKind) []string {
	switch kind {
	case KindAircon:
		// shum carries the humidifier hold marker, resolved to the
		// numeric ceiling at merge time
		return []string{"htemp", "otemp", "stemp", "shum", "cmpfreq"}
	case KindController:
		return []string{
			"min_load", "max_load",
			"wakeup_threshold", "sleep_threshold",
			"read_interval", "set_interval",
			"production", "consumption", "grid_import", "grid_export",
		}
	default:
		return nil
	}
}

// NewDevice creates a [Device] with the given ID, base URL, dialect, and
// options.
//
// The id parameter is the stable identifier used in views and the control
// API. The rawURL parameter must be a valid URL with a scheme (http:// or
// https://). The kind parameter selects the wire dialect.
//
// Options are applied in order using the functional options pattern.
// See [WithName], [WithGroup], [WithTimeout], and [WithNumericFields].
//
// Returns an error if the ID is empty, the URL is invalid, or the kind is
// unknown.
//
// Example:
//
//	dev, err := panelcore.NewDevice("living", "http://192.168.1.60", panelcore.KindAircon,
//	    panelcore.WithName("Living Room"),
//	    panelcore.WithTimeout(5 * time.Second),
//	)
func NewDevice(id, rawURL string, kind DeviceKind, opts ...DeviceOption) (Device, error) {
	if id == "" {
		return Device{}, errors.New("device id cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Device{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme == "" {
		return Device{}, errors.New("URL must have a scheme (http:// or https://)")
	}

	switch kind {
	case KindAircon, KindController:
	default:
		return Device{}, errors.New("device kind must be aircon or controller")
	}

	cfg := &deviceConfig{
		timeout: defaultDeviceTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Device{}, err
		}
	}

	name := cfg.name
	if name == "" {
		name = id
	}
	group := cfg.group
	if group == "" {
		group = kind.String()
	}
	numericFields := cfg.numericFields
	if numericFields == nil {
		numericFields = defaultNumericFields(kind)
	}

	return Device{
		id:            id,
		url:           rawURL,
		kind:          kind,
		name:          name,
		group:         group,
		timeout:       cfg.timeout,
		numericFields: numericFields,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
