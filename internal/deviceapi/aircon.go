package deviceapi

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const (
	airconSensorPath    = "/aircon/get_sensor_info"
	airconControlPath   = "/aircon/get_control_info"
	airconSetPath       = "/aircon/set_control_info"
	airconBasicInfoPath = "/common/basic_info"

	// dispositionOK is the token the unit returns when it accepted a request.
	dispositionOK = "OK"
)

// requiredWriteFields are the control fields a set request must always
// carry; the unit rejects partial writes. Values missing from the pending
// command are filled from the last confirmed control snapshot.
var requiredWriteFields = []string{"pow", "mode", "stemp", "shum"}

// Aircon speaks the comma-separated key=value dialect of the wifi climate
// units. Every exchange is a GET; writes encode the settings as query
// parameters and the reply's "ret" field carries the device's verdict.
type Aircon struct {
	client  *Client
	base    string
	timeout time.Duration
}

// NewAircon creates an [Aircon] connection for the unit at base
// (for example "http://192.168.1.101").
func NewAircon(client *Client, base string, timeout time.Duration) *Aircon {
	return &Aircon{
		client:  client,
		base:    strings.TrimSuffix(base, "/"),
		timeout: timeout,
	}
}

// ReadSensors fetches the unit's sensor snapshot (room and outdoor
// temperature, compressor frequency, ...).
func (a *Aircon) ReadSensors(ctx context.Context) (time.Duration, Fields, error) {
	return a.read(ctx, a.base+airconSensorPath)
}

// ReadControls fetches the unit's control snapshot (power, mode, target
// temperature and humidity).
func (a *Aircon) ReadControls(ctx context.Context) (time.Duration, Fields, error) {
	return a.read(ctx, a.base+airconControlPath)
}

// WriteControls sends one coalesced settings write. The unit requires the
// full pow/mode/stemp/shum set on every write, so pending fields are
// overlaid on the last confirmed snapshot. A reply whose "ret" field is
// not "OK" is an *ApplicationError even though the transport succeeded.
func (a *Aircon) WriteControls(ctx context.Context, base, changes Fields) (time.Duration, Fields, error) {
	params := url.Values{}
	for _, field := range requiredWriteFields {
		value, ok := changes[field]
		if !ok {
			value = base[field]
		}
		params.Set(field, value)
	}
	// fields outside the required set (advanced settings) pass through as-is
	for field, value := range changes {
		if !params.Has(field) {
			params.Set(field, value)
		}
	}

	return a.read(ctx, a.base+airconSetPath+"?"+params.Encode())
}

// ReadBasicInfo fetches unit identity information. The unit reports its
// display name percent-encoded; the returned mapping carries it decoded.
func (a *Aircon) ReadBasicInfo(ctx context.Context) (time.Duration, Fields, error) {
	elapsed, fields, err := a.read(ctx, a.base+airconBasicInfoPath)
	if err != nil {
		return elapsed, fields, err
	}
	if name, ok := fields["name"]; ok {
		if decoded, err := url.QueryUnescape(name); err == nil {
			fields["name"] = decoded
		}
	}
	return elapsed, fields, nil
}

// read performs a GET and decodes the comma-separated reply. The "ret"
// disposition (and the advisory "adv" field) are stripped from the
// mapping; a non-OK disposition fails the call.
func (a *Aircon) read(ctx context.Context, url string) (time.Duration, Fields, error) {
	elapsed, body, err := a.client.get(ctx, url, a.timeout)
	if err != nil {
		return elapsed, nil, err
	}

	fields, disposition := parseKeyValueBody(body)
	if !strings.EqualFold(disposition, dispositionOK) {
		return elapsed, nil, &ApplicationError{URL: url, Disposition: disposition}
	}
	return elapsed, fields, nil
}

// parseKeyValueBody decodes a comma-separated key=value body into fields,
// returning the disposition separately. Malformed pairs are skipped.
func parseKeyValueBody(body []byte) (Fields, string) {
	fields := make(Fields)
	disposition := ""
	for _, pair := range strings.Split(string(body), ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		switch key {
		case "ret":
			disposition = value
		case "adv":
			// advisory field, not a device setting
		default:
			fields[key] = value
		}
	}
	return fields, disposition
}
