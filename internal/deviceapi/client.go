package deviceapi

import (
	"context"
	"io"
	"net/http"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits; the panel polls the same few hosts every
// couple of seconds, so keep-alives matter more than pool breadth
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 60 * time.Second
)

// DefaultTimeout is the per-request timeout used when a device does not
// configure its own.
const DefaultTimeout = 4 * time.Second

// Fields is a flat mapping from device field name to raw string value, the
// common currency of both dialects. Protocol acknowledgement fields are
// never present; the dialects strip and inspect them before returning.
type Fields map[string]string

// Clone returns a shallow copy of the fields, or nil for nil input.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	cp := make(Fields, len(f))
	for k, v := range f {
		cp[k] = v
	}
	return cp
}

// Conn is one controllable endpoint, either dialect. Reads report the
// wall-clock elapsed time of the request alongside the payload; the
// elapsed value is meaningful even when an error is returned.
type Conn interface {
	// ReadSensors fetches the device's sensor snapshot.
	ReadSensors(ctx context.Context) (time.Duration, Fields, error)

	// ReadControls fetches the device's control snapshot.
	ReadControls(ctx context.Context) (time.Duration, Fields, error)

	// WriteControls sends a settings write. base is the last confirmed
	// control snapshot and changes the coalesced pending command; how the
	// two combine on the wire is dialect-specific. A device-side rejection
	// surfaces as an *ApplicationError even when the transport succeeded.
	WriteControls(ctx context.Context, base, changes Fields) (time.Duration, Fields, error)
}

// Client is the HTTP transport shared by both dialects.
//
// Timeouts are applied per request via context rather than a global client
// timeout, and response bodies are capped at 1MB. The timeout bounds the
// request itself; the separate max-latency threshold used for the liveness
// signal is advisory and never aborts a request.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a [Client] tuned for short-period device polling.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				DisableKeepAlives:   false,
			},
		},
	}
}

// get performs a GET against url and returns the elapsed wall-clock time
// and the raw body. Network failures map to *TransportError and non-2xx
// statuses to *ProtocolError; elapsed is valid in every case.
func (c *Client) get(ctx context.Context, url string, timeout time.Duration) (time.Duration, []byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return time.Since(start), nil, &TransportError{URL: url, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Since(start), nil, &TransportError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, nil, &TransportError{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return elapsed, body, &ProtocolError{URL: url, StatusCode: resp.StatusCode}
	}

	return elapsed, body, nil
}

// Close releases idle connections in the client's pool. The client remains
// usable afterwards; new connections are established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
