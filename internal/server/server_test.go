package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brickbattery/panelcore/internal/series"
	"github.com/brickbattery/panelcore/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testView(id string) store.DeviceView {
	return store.DeviceView{
		ID:        id,
		Name:      id,
		Liveness:  "healthy",
		Sensors:   map[string]string{"htemp": "21.0"},
		Controls:  map[string]string{"stemp": "22"},
		CheckedAt: time.Now(),
	}
}

// fakeStager records staged edits and rejects configured fields.
type fakeStager struct {
	mu     sync.Mutex
	staged map[string]string
	reject map[string]string // field -> reason
}

func newFakeStager() *fakeStager {
	return &fakeStager{staged: make(map[string]string), reject: make(map[string]string)}
}

func (f *fakeStager) SetControl(deviceID, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if deviceID != "living" {
		return fmt.Errorf("unknown device %q", deviceID)
	}
	if reason, ok := f.reject[field]; ok {
		return fmt.Errorf("%s", reason)
	}
	f.staged[field] = value
	return nil
}

// fakeSamples serves a fixed chart history.
type fakeSamples struct {
	headers []string
	samples []series.Sample
}

func (f *fakeSamples) Samples() ([]string, []series.Sample) {
	return f.headers, f.samples
}

func TestHandleState_DevicesAndChart(t *testing.T) {
	st := store.NewMemoryStore()
	st.Update(testView("living"))

	at := time.Unix(1700000000, 0)
	samples := &fakeSamples{
		headers: []string{"production", "consumption"},
		samples: []series.Sample{{At: at, Values: []float64{1500, 800}}},
	}

	srv := NewServer(st, nil, samples, 0, testLogger())
	rec := httptest.NewRecorder()
	srv.handleState(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Devices []store.DeviceView `json:"devices"`
		Chart   struct {
			Headers []string    `json:"headers"`
			Values  [][]float64 `json:"values"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp.Devices) != 1 || resp.Devices[0].ID != "living" {
		t.Errorf("unexpected devices: %+v", resp.Devices)
	}
	if len(resp.Chart.Headers) != 2 {
		t.Errorf("unexpected chart headers: %v", resp.Chart.Headers)
	}
	if len(resp.Chart.Values) != 1 {
		t.Fatalf("expected one chart row, got %d", len(resp.Chart.Values))
	}
	row := resp.Chart.Values[0]
	if len(row) != 3 || row[0] != 1700000000 || row[1] != 1500 || row[2] != 800 {
		t.Errorf("unexpected chart row: %v", row)
	}
}

func TestHandleState_NoSampleSource(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, nil, 0, testLogger())
	rec := httptest.NewRecorder()
	srv.handleState(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"headers":[]`) {
		t.Errorf("expected empty chart headers, got %s", rec.Body.String())
	}
}

func TestHandleState_MethodNotAllowed(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, nil, 0, testLogger())
	rec := httptest.NewRecorder()
	srv.handleState(rec, httptest.NewRequest(http.MethodPost, "/api/state", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandleControls_StagesEdits(t *testing.T) {
	stager := newFakeStager()
	srv := NewServer(store.NewMemoryStore(), stager, nil, 0, testLogger())

	rec := httptest.NewRecorder()
	srv.handleControls(rec, httptest.NewRequest(http.MethodGet, "/api/controls?dev=living&stemp=21&mode=4", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stager.staged["stemp"] != "21" || stager.staged["mode"] != "4" {
		t.Errorf("edits not staged: %v", stager.staged)
	}
	var echoed map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &echoed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if echoed["stemp"] != "21" {
		t.Errorf("expected staged fields echoed back, got %v", echoed)
	}
}

func TestHandleControls_CollectsInvalidParameters(t *testing.T) {
	stager := newFakeStager()
	stager.reject["bogus"] = "invalid key"
	srv := NewServer(store.NewMemoryStore(), stager, nil, 0, testLogger())

	rec := httptest.NewRecorder()
	srv.handleControls(rec, httptest.NewRequest(http.MethodGet, "/api/controls?dev=living&bogus=1&stemp=21", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Errors["bogus"] != "invalid key" {
		t.Errorf("expected invalid key error, got %v", resp.Errors)
	}
}

func TestHandleControls_MissingDevice(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), newFakeStager(), nil, 0, testLogger())

	rec := httptest.NewRecorder()
	srv.handleControls(rec, httptest.NewRequest(http.MethodGet, "/api/controls?stemp=21", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing device id") {
		t.Errorf("expected missing device error, got %s", rec.Body.String())
	}
}

func TestHandleControls_UnknownDevice(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), newFakeStager(), nil, 0, testLogger())

	rec := httptest.NewRecorder()
	srv.handleControls(rec, httptest.NewRequest(http.MethodGet, "/api/controls?dev=garage&stemp=21", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unknown device") {
		t.Errorf("expected unknown device error, got %s", rec.Body.String())
	}
}

func TestHandleControls_NoStager(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, nil, 0, testLogger())

	rec := httptest.NewRecorder()
	srv.handleControls(rec, httptest.NewRequest(http.MethodGet, "/api/controls?dev=living&stemp=21", nil))

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", rec.Code)
	}
}

func TestHandleStream_BasicFlow(t *testing.T) {
	st := store.NewMemoryStore()
	st.Update(testView("living"))
	srv := NewServer(st, nil, nil, 0, testLogger())

	ts := httptest.NewServer(http.HandlerFunc(srv.handleStream))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") {
		t.Fatalf("expected SSE data line, got %q", line)
	}
	var view store.DeviceView
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &view); err != nil {
		t.Fatalf("invalid SSE payload: %v", err)
	}
	if view.ID != "living" {
		t.Errorf("expected living view, got %q", view.ID)
	}
}

func TestHandleStream_StreamsUpdates(t *testing.T) {
	st := store.NewMemoryStore()
	srv := NewServer(st, nil, nil, 0, testLogger())

	ts := httptest.NewServer(http.HandlerFunc(srv.handleStream))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	// give the handler time to subscribe before publishing
	time.Sleep(50 * time.Millisecond)
	st.Update(testView("bedrooms"))

	type read struct {
		line string
		err  error
	}
	lines := make(chan read, 1)
	go func() {
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				lines <- read{err: err}
				return
			}
			if strings.HasPrefix(line, "data: ") {
				lines <- read{line: line}
				return
			}
		}
	}()

	select {
	case got := <-lines:
		if got.err != nil {
			t.Fatalf("read failed: %v", got.err)
		}
		if !strings.Contains(got.line, "bedrooms") {
			t.Errorf("expected bedrooms update, got %q", got.line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for SSE update")
	}
}

func TestHandleStream_ClientDisconnect(t *testing.T) {
	st := store.NewMemoryStore()
	srv := NewServer(st, nil, nil, 0, testLogger())

	ts := httptest.NewServer(http.HandlerFunc(srv.handleStream))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	// disconnecting must release the handler and its subscription
	cancel()
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		st.Update(testView("living"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Update blocked after client disconnect")
	}
}

func TestStart_AvailablePort_ReturnsNil(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	srv := NewServer(store.NewMemoryStore(), nil, nil, port, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/api/state", port))
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	srv := NewServer(store.NewMemoryStore(), nil, nil, port, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Error("expected bind error for port in use")
	}
}
