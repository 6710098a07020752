package deviceapi

import "fmt"

// TransportError reports a network-level failure: unreachable host, DNS
// failure, connection reset, or a timed-out request. The HTTP exchange
// never completed.
type TransportError struct {
	// URL is the request URL that failed.
	URL string

	// Err is the underlying transport error.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a completed HTTP exchange with a non-2xx status.
type ProtocolError struct {
	// URL is the request URL.
	URL string

	// StatusCode is the HTTP status code returned.
	StatusCode int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// ApplicationError reports a well-formed response whose disposition
// indicates the device rejected the request, even though the HTTP
// transport succeeded.
type ApplicationError struct {
	// URL is the request URL.
	URL string

	// Disposition is the device's result token (for example "PARAM NG").
	Disposition string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("device rejected request to %s: %s", e.URL, e.Disposition)
}
