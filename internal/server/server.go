package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/brickbattery/panelcore/internal/series"
	"github.com/brickbattery/panelcore/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write
	// operation. This prevents goroutine leaks when clients are slow or
	// disconnected. Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second
)

// ControlStager stages control edits against a polled device. It is
// implemented by the panel; the server never talks to devices directly.
type ControlStager interface {
	// SetControl stages field=value on the device with the given ID.
	// It returns an error when the device is unknown or the value is
	// rejected before staging.
	SetControl(deviceID, field, value string) error
}

// SampleSource exposes the chart history accumulated by the panel.
type SampleSource interface {
	// Samples returns the column headers and the buffered rows, oldest
	// first.
	Samples() ([]string, []series.Sample)
}

// stateResponse is the body of GET /api/state.
type stateResponse struct {
	Devices []store.DeviceView `json:"devices"`
	Chart   chartResponse      `json:"chart"`
}

// chartResponse carries the ring buffer in the headers/values layout the
// energy controller itself uses, with each row led by a unix timestamp.
type chartResponse struct {
	Headers []string    `json:"headers"`
	Values  [][]float64 `json:"values"`
}

// Server exposes the reconciled device state over HTTP.
//
// Server provides three endpoints:
//   - GET /api/state: All current device views plus chart history as JSON
//   - GET /api/stream: Server-Sent Events stream of device view updates
//   - GET /api/controls: Stages control edits from query parameters
//
// Rendering is left to external collaborators; the server carries no UI
// assets. It is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	stager     ControlStager
	samples    SampleSource
	port       int
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store implementation for device views
//   - stager: Sink for control edits (may be nil to disable /api/controls)
//   - samples: Chart history source (may be nil for an empty chart)
//   - port: TCP port to listen on
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, stager ControlStager, samples SampleSource, port int, logger *slog.Logger) *Server {
	return &Server{
		store:   st,
		stager:  stager,
		samples: samples,
		port:    port,
		logger:  logger,
	}
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/controls", s.handleControls)

	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: mux,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleState returns all current device views plus chart history as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := stateResponse{
		Devices: s.store.GetAll(),
		Chart:   chartResponse{Headers: []string{}, Values: [][]float64{}},
	}
	if s.samples != nil {
		headers, samples := s.samples.Samples()
		resp.Chart.Headers = headers
		resp.Chart.Values = make([][]float64, 0, len(samples))
		for _, smp := range samples {
			row := make([]float64, 0, len(smp.Values)+1)
			row = append(row, float64(smp.At.Unix()))
			row = append(row, smp.Values...)
			resp.Chart.Values = append(resp.Chart.Values, row)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode state response", "error", err)
	}
}

// handleControls stages control edits from query parameters.
//
// The query names the target device with dev=<id>; every other parameter is
// staged as a field edit. Invalid parameters are collected and reported as
// an errors object rather than failing fast, so a caller learns about every
// bad field in one round trip. Accepted fields are echoed back.
func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if s.stager == nil {
		w.WriteHeader(http.StatusNotImplemented)
		s.writeJSON(w, map[string]map[string]string{"errors": {"dev": "controls disabled"}})
		return
	}

	query := r.URL.Query()
	deviceID := query.Get("dev")
	if deviceID == "" {
		w.WriteHeader(http.StatusBadRequest)
		s.writeJSON(w, map[string]map[string]string{"errors": {"dev": "missing device id"}})
		return
	}

	invalid := make(map[string]string)
	accepted := make(map[string]string)
	for field, values := range query {
		if field == "dev" {
			continue
		}
		if len(values) == 0 {
			continue
		}
		value := values[0]
		if err := s.stager.SetControl(deviceID, field, value); err != nil {
			invalid[field] = err.Error()
			continue
		}
		accepted[field] = value
	}

	if len(invalid) > 0 {
		w.WriteHeader(http.StatusBadRequest)
		s.writeJSON(w, map[string]map[string]string{"errors": invalid})
		return
	}
	s.writeJSON(w, accepted)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode controls response", "error", err)
	}
}

// handleStream streams device view updates via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients
// are slow or disconnected. Without deadlines, a blocked Fprintf call would
// prevent the handler from detecting context cancellation or channel
// closure.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush operations.
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some
	// ResponseWriter impls)
	deadlinesSupported := true

	// writeAndFlush writes SSE data with a deadline to prevent blocking
	// forever. If the client is slow or disconnected, the write will timeout
	// rather than blocking indefinitely, allowing the handler to detect
	// shutdown signals.
	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe to store updates
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// send initial views (also protected by write deadline)
	for _, view := range s.store.GetAll() {
		data, err := json.Marshal(view)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	// stream updates
	for {
		select {
		case view, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(view)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
