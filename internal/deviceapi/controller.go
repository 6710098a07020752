package deviceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	controllerStatusPath   = "/status"
	controllerControlsPath = "/controls"
	controllerRecentPath   = "/recent-values"
)

// Controller speaks the JSON dialect of the energy controller. Status and
// control reads return a single JSON object; writes are GETs with
// url-encoded query parameters against the controls resource, answered
// with the applied settings or an errors object.
type Controller struct {
	client  *Client
	base    string
	timeout time.Duration
}

// NewController creates a [Controller] connection for the endpoint at base.
func NewController(client *Client, base string, timeout time.Duration) *Controller {
	return &Controller{
		client:  client,
		base:    strings.TrimSuffix(base, "/"),
		timeout: timeout,
	}
}

// ReadSensors fetches the controller's live status (generation, grid
// import, derived consumption, operating state).
func (c *Controller) ReadSensors(ctx context.Context) (time.Duration, Fields, error) {
	return c.readObject(ctx, c.base+controllerStatusPath)
}

// ReadControls fetches the controller's settings.
func (c *Controller) ReadControls(ctx context.Context) (time.Duration, Fields, error) {
	return c.readObject(ctx, c.base+controllerControlsPath)
}

// WriteControls sends the coalesced pending command. The controller
// accepts partial writes, so only the changed fields go on the wire; base
// is unused in this dialect. A reply carrying a non-empty "errors" object
// is an *ApplicationError.
func (c *Controller) WriteControls(ctx context.Context, _, changes Fields) (time.Duration, Fields, error) {
	params := url.Values{}
	for field, value := range changes {
		params.Set(field, value)
	}
	return c.readObject(ctx, c.base+controllerControlsPath+"?"+params.Encode())
}

// RecentValues fetches the bulk history feed used to seed the chart ring
// buffer. It returns the channel names and the sample rows; the first
// column of every row is the epoch-seconds timestamp.
func (c *Controller) RecentValues(ctx context.Context) (time.Duration, []string, [][]float64, error) {
	target := c.base + controllerRecentPath
	elapsed, body, err := c.client.get(ctx, target, c.timeout)
	if err != nil {
		return elapsed, nil, nil, err
	}

	var payload struct {
		Headers []string    `json:"headers"`
		Values  [][]float64 `json:"values"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return elapsed, nil, nil, &TransportError{URL: target, Err: fmt.Errorf("decoding recent values: %w", err)}
	}
	for i, row := range payload.Values {
		if len(row) != len(payload.Headers) {
			return elapsed, nil, nil, &TransportError{
				URL: target,
				Err: fmt.Errorf("recent values row %d has %d columns, expected %d", i, len(row), len(payload.Headers)),
			}
		}
	}
	return elapsed, payload.Headers, payload.Values, nil
}

// readObject performs a GET and flattens the JSON object reply into
// fields. Nested objects and arrays are ignored; only scalar members make
// it into the mapping. A non-empty "errors" member is the controller's
// rejection disposition.
func (c *Controller) readObject(ctx context.Context, url string) (time.Duration, Fields, error) {
	elapsed, body, err := c.client.get(ctx, url, c.timeout)
	if err != nil {
		return elapsed, nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return elapsed, nil, &TransportError{URL: url, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if errs, ok := raw["errors"].(map[string]any); ok && len(errs) > 0 {
		return elapsed, nil, &ApplicationError{URL: url, Disposition: flattenErrors(errs)}
	}

	fields := make(Fields, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			fields[key] = strconv.FormatBool(v)
		case nil:
			fields[key] = ""
		}
	}
	return elapsed, fields, nil
}

// flattenErrors renders a controller errors object as a stable one-line
// disposition string for logging and error values.
func flattenErrors(errs map[string]any) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, errs[k]))
	}
	return strings.Join(parts, "; ")
}
