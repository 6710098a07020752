package panelcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brickbattery/panelcore/internal/deviceapi"
	"github.com/brickbattery/panelcore/internal/poller"
	"github.com/brickbattery/panelcore/internal/reconcile"
	"github.com/brickbattery/panelcore/internal/series"
	"github.com/brickbattery/panelcore/internal/server"
	"github.com/brickbattery/panelcore/internal/store"
)

const (
	// defaultReadInterval matches the shortest period the energy
	// controller tolerates; polling faster makes it drop connections.
	defaultReadInterval = 3 * time.Second

	defaultPort = 8080
)

// unit is the runtime wiring of one configured device: its reconciler
// state plus the dialect-specific connection for operations outside the
// shared Conn interface.
type unit struct {
	dev        Device
	state      *reconcile.Device
	aircon     *deviceapi.Aircon
	controller *deviceapi.Controller
}

// Panel is the main orchestrator for device polling, command coalescing,
// and state reconciliation.
//
// Panel polls every configured device on a shared period, coalesces user
// edits into one outgoing write per device per cycle, merges fresh device
// state without clobbering unsent edits, and serves the reconciled view
// over HTTP. It is created using [New] with functional options and started
// with [Panel.Start].
//
// The typical lifecycle is:
//
//	p, err := panelcore.New(panelcore.WithDevice(dev))
//	if err != nil {
//	    slog.Error("failed to create panel", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	p.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
type Panel struct {
	devices         []Device
	readInterval    time.Duration
	port            int
	logger          *slog.Logger
	updateCallbacks []func(Update)

	client     *deviceapi.Client
	reconciler *reconcile.Reconciler
	units      map[string]*unit
	groups     map[string][]*unit
	schedulers map[string]*poller.Scheduler
	views      store.Store
	results    chan reconcile.Result

	// chartUnit feeds the ring; nil when no controller is configured.
	chartUnit    *unit
	chartMu      sync.Mutex
	ring         *series.Ring
	chartHeaders []string
	// chartClockOffset is the gap between the panel's clock and the
	// controller's, measured at each bulk load. Appends are rebased by it
	// so both feeds share one timeline.
	chartClockOffset time.Duration
	refetching       bool
	draining         bool

	// runCtx is the Start context; background refetches derive from it.
	runCtx context.Context

	startMu sync.Mutex
	started bool
	taskWG  sync.WaitGroup
}

// New creates a new [Panel] instance with the given options.
//
// At least one device must be configured via [WithDevice] or
// [WithDevices]. Other options have sensible defaults:
//   - Read interval: 3 seconds
//   - Port: 8080
//   - Max latency: 10 seconds
//   - Chart capacity: 600 samples, staleness threshold 10 seconds
//
// Returns an error if no devices are configured, device IDs collide, or
// any option is invalid.
//
// Example:
//
//	p, err := panelcore.New(
//	    panelcore.WithDevices(living, bedrooms, solar),
//	    panelcore.WithReadInterval(5 * time.Second),
//	    panelcore.WithPort(9090),
//	)
func New(opts ...Option) (*Panel, error) {
	cfg := &panelConfig{
		devices:      []Device{},
		readInterval: defaultReadInterval,
		port:         defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.devices) == 0 {
		return nil, errors.New("at least one device is required")
	}

	// validate device ID uniqueness (IDs key the control API and views)
	seen := make(map[string]bool, len(cfg.devices))
	for _, d := range cfg.devices {
		if seen[d.id] {
			return nil, fmt.Errorf("duplicate device id: %q", d.id)
		}
		seen[d.id] = true
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Panel{
		devices:         cfg.devices,
		readInterval:    cfg.readInterval,
		port:            cfg.port,
		logger:          logger,
		updateCallbacks: cfg.updateCallbacks,
		client:          deviceapi.NewClient(),
		reconciler:      reconcile.New(cfg.maxLatency, logger),
		units:           make(map[string]*unit, len(cfg.devices)),
		groups:          make(map[string][]*unit),
		schedulers:      make(map[string]*poller.Scheduler),
		views:           store.NewMemoryStore(),
		results:         make(chan reconcile.Result, 100),
		ring:            series.NewRing(cfg.chartCapacity, cfg.chartStaleness),
	}

	for _, d := range cfg.devices {
		u := &unit{dev: d}
		var conn deviceapi.Conn
		switch d.kind {
		case KindAircon:
			u.aircon = deviceapi.NewAircon(p.client, d.url, d.timeout)
			conn = u.aircon
		case KindController:
			u.controller = deviceapi.NewController(p.client, d.url, d.timeout)
			conn = u.controller
		}
		u.state = reconcile.NewDevice(reconcile.Config{
			ID:            d.id,
			Name:          d.name,
			Conn:          conn,
			NumericFields: d.numericFields,
		})
		p.units[d.id] = u
		p.groups[d.group] = append(p.groups[d.group], u)

		// the first controller feeds the chart
		if d.kind == KindController && p.chartUnit == nil {
			p.chartUnit = u
		}
	}

	for group := range p.groups {
		group := group
		p.schedulers[group] = poller.NewScheduler(group, func(ctx context.Context) {
			p.cycleGroup(ctx, group)
		}, logger)
	}

	return p, nil
}

// Start begins polling devices and serving the state API.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - Climate units report their own display names via basic-info discovery
//   - The chart ring is bulk-loaded from the controller's recent history
//   - Every device group is polled immediately, then on the read interval
//   - The HTTP state API is available at http://localhost:<port>
//
// The caller controls the lifecycle via context cancellation. For signal
// handling, use [signal.NotifyContext]:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	p.Start(ctx)
//
// Returns nil on graceful shutdown. Returns an error if called twice or if
// the HTTP server fails to start.
func (p *Panel) Start(ctx context.Context) error {
	p.startMu.Lock()
	if p.started {
		p.startMu.Unlock()
		return errors.New("panel already started")
	}
	p.started = true
	p.runCtx = ctx
	p.startMu.Unlock()

	p.logger.Info("panel starting", "device_count", len(p.devices), "group_count", len(p.groups))
	p.logger.Info("polling configured", "interval", p.readInterval.String())
	p.logger.Info("state api available", "url", fmt.Sprintf("http://localhost:%d", p.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	// startup discovery: unit names and chart history, best effort
	var g errgroup.Group
	for _, u := range p.units {
		if u.aircon == nil {
			continue
		}
		u := u
		g.Go(func() error {
			return p.discoverName(ctx, u)
		})
	}
	if p.chartUnit != nil {
		g.Go(func() error {
			return p.loadHistory(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn("startup discovery incomplete", "error", err)
	}

	// track the results consumer goroutine to ensure clean shutdown
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for result := range p.results {
			p.handleResult(result)
		}
	}()

	// poll every group immediately, then on the shared period; the
	// scheduler's first tick is a full period away
	for group, sched := range p.schedulers {
		units := p.groups[group]
		p.taskWG.Add(1)
		go func(us []*unit) {
			defer p.taskWG.Done()
			p.cycleUnits(ctx, us)
		}(units)
		sched.Start(ctx, p.readInterval)
	}

	// cleanup function ensures schedulers are stopped and all results
	// are processed
	cleanup := func() {
		// stop scheduling background refetches before waiting on the
		// task group: results drained after Wait begins must not Add
		p.chartMu.Lock()
		p.draining = true
		p.chartMu.Unlock()
		for _, sched := range p.schedulers {
			sched.Stop() // waits for in-flight cycles
		}
		p.taskWG.Wait()
		close(p.results)
		<-consumerDone
		p.client.Close()
	}

	// start the HTTP state server
	httpServer := server.NewServer(p.views, p, p, p.port, p.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	p.logger.Info("panel stopped")
	return nil
}

// cycleGroup runs one poll-and-reconcile cycle for a scheduling group.
func (p *Panel) cycleGroup(ctx context.Context, group string) {
	p.cycleUnits(ctx, p.groups[group])
}

// cycleUnits fans the group's devices out concurrently; a slow device
// degrades only its own liveness signal, never blocking siblings.
func (p *Panel) cycleUnits(ctx context.Context, units []*unit) {
	var wg sync.WaitGroup
	for _, u := range units {
		wg.Add(1)
		go func(u *unit) {
			defer wg.Done()
			p.results <- p.reconciler.CycleDevice(ctx, u.state)
		}(u)
	}
	wg.Wait()
}

// handleResult publishes one cycle outcome: store update first, then the
// chart sample, then user callbacks.
func (p *Panel) handleResult(result reconcile.Result) {
	p.views.Update(resultToView(result))

	if p.chartUnit != nil && result.DeviceID == p.chartUnit.dev.id && result.Err == nil {
		p.appendChartSample(result)
	}

	if len(p.updateCallbacks) > 0 {
		update := p.resultToUpdate(result)
		for _, cb := range p.updateCallbacks {
			invokeCallbackSafe(cb, update, p.logger)
		}
	}

	// log cycle results (DEBUG level for success to reduce noise)
	logAttrs := []any{
		"liveness", result.Liveness,
		"device", result.DeviceID,
		"latency_ms", result.Latency.Milliseconds(),
	}
	if result.Err != nil {
		p.logger.Warn("cycle completed with error", append(logAttrs, "error", result.Err.Error())...)
	} else {
		p.logger.Debug("cycle completed", logAttrs...)
	}
}

// appendChartSample derives a fixed-width sample from the controller's
// numeric readings and appends it to the ring. A detected gap discards the
// ring and triggers a history refetch instead of bridging the series.
func (p *Panel) appendChartSample(result reconcile.Result) {
	p.chartMu.Lock()
	defer p.chartMu.Unlock()

	if len(p.chartHeaders) == 0 {
		// no history loaded yet; the next refetch establishes the channels
		p.scheduleHistoryRefetchLocked()
		return
	}

	values := make([]float64, len(p.chartHeaders))
	for i, channel := range p.chartHeaders {
		values[i] = result.Values[channel]
	}

	// history rows carry the controller's clock; rebase the append
	// timestamp onto it so clock skew does not read as a gap
	at := result.CheckedAt.Add(-p.chartClockOffset)
	if !p.ring.Append(series.Sample{At: at, Values: values}) {
		p.logger.Warn("chart gap detected, reloading history", "device", result.DeviceID)
		p.scheduleHistoryRefetchLocked()
	}
}

// scheduleHistoryRefetchLocked starts one background history reload.
// Caller must hold p.chartMu. No-op once shutdown has begun: the task
// group is being waited on and must not grow.
func (p *Panel) scheduleHistoryRefetchLocked() {
	if p.refetching || p.draining {
		return
	}
	p.refetching = true
	p.taskWG.Add(1)
	go func() {
		defer p.taskWG.Done()
		if err := p.loadHistory(p.runCtx); err != nil {
			p.logger.Warn("history reload failed", "error", err)
		}
		p.chartMu.Lock()
		p.refetching = false
		p.chartMu.Unlock()
	}()
}

// loadHistory bulk-loads the ring from the controller's recent values.
// The first column is the sample timestamp; the remaining columns become
// the chart channels.
func (p *Panel) loadHistory(ctx context.Context) error {
	if p.chartUnit == nil {
		return nil
	}

	_, headers, rows, err := p.chartUnit.controller.RecentValues(ctx)
	if err != nil {
		return fmt.Errorf("recent values fetch failed: %w", err)
	}
	if len(headers) < 2 {
		return fmt.Errorf("recent values returned %d columns, need a timestamp plus channels", len(headers))
	}

	samples := make([]series.Sample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, series.Sample{
			At:     time.Unix(int64(row[0]), 0),
			Values: append([]float64(nil), row[1:]...),
		})
	}

	p.chartMu.Lock()
	p.chartHeaders = append([]string(nil), headers[1:]...)
	p.ring.BulkLoad(samples)
	if len(samples) > 0 {
		p.chartClockOffset = time.Since(samples[len(samples)-1].At)
	}
	p.chartMu.Unlock()

	p.logger.Info("chart history loaded", "channels", len(headers)-1, "samples", len(samples))
	return nil
}

// discoverName asks a climate unit for the display name it reports itself.
func (p *Panel) discoverName(ctx context.Context, u *unit) error {
	_, info, err := u.aircon.ReadBasicInfo(ctx)
	if err != nil {
		return fmt.Errorf("basic info read for %s failed: %w", u.dev.id, err)
	}
	if name, ok := info["name"]; ok && name != "" {
		u.state.SetName(name)
		p.logger.Info("device name discovered", "device", u.dev.id, "name", name)
	}
	return nil
}

// SetControl stages field=value as a pending edit on the device and resets
// the device group's timer so the next automatic cycle lands a full period
// away, giving the operator time for further edits before anything is
// sent. Rapid edits to the same field coalesce; only the last value is
// written.
//
// The staged command is flushed as one write on the next scheduler tick.
// Returns an error if the device is unknown or the field is empty.
func (p *Panel) SetControl(deviceID, field, value string) error {
	u, ok := p.units[deviceID]
	if !ok {
		return fmt.Errorf("unknown device %q", deviceID)
	}
	if field == "" {
		return errors.New("field cannot be empty")
	}

	u.state.StageEdit(field, value)
	p.schedulers[u.dev.group].Reset(p.readInterval)
	p.logger.Info("control staged", "device", deviceID, "field", field, "value", value)
	return nil
}

// BeginEdit marks a field as being actively edited and suspends the device
// group's polling. No poll, successful or not, may overwrite a field the
// operator is typing into. Each BeginEdit must be matched by an [Panel.EndEdit].
func (p *Panel) BeginEdit(deviceID, field string) error {
	u, ok := p.units[deviceID]
	if !ok {
		return fmt.Errorf("unknown device %q", deviceID)
	}
	u.state.BeginEdit(field)
	p.schedulers[u.dev.group].PauseForEdit()
	return nil
}

// EndEdit releases the edit hold taken by [Panel.BeginEdit] and resumes the
// device group's polling.
func (p *Panel) EndEdit(deviceID, field string) error {
	u, ok := p.units[deviceID]
	if !ok {
		return fmt.Errorf("unknown device %q", deviceID)
	}
	u.state.EndEdit(field)
	p.schedulers[u.dev.group].ResumeAfterEdit()
	return nil
}

// Devices returns a copy of the configured devices.
//
// The returned slice is a copy; modifying it does not affect the Panel.
// Each [Device] in the slice is immutable.
func (p *Panel) Devices() []Device {
	cp := make([]Device, len(p.devices))
	copy(cp, p.devices)
	return cp
}

// Port returns the configured HTTP port for the state server.
func (p *Panel) Port() int {
	return p.port
}

// ReadInterval returns the configured period between poll cycles.
func (p *Panel) ReadInterval() time.Duration {
	return p.readInterval
}

// Samples returns the chart channel names and the buffered samples,
// oldest first. Both are copies.
func (p *Panel) Samples() ([]string, []series.Sample) {
	p.chartMu.Lock()
	defer p.chartMu.Unlock()
	headers := append([]string(nil), p.chartHeaders...)
	return headers, p.ring.Samples()
}

// EstimatedLoad sums the derived electrical consumption of every climate
// unit with enough readings for an estimate, in watts.
func (p *Panel) EstimatedLoad() float64 {
	var total float64
	for _, u := range p.units {
		if u.aircon == nil {
			continue
		}
		if load, ok := u.state.EstimatedLoad(); ok {
			total += load
		}
	}
	return total
}

// resultToView converts a cycle result to a stored device view.
func resultToView(r reconcile.Result) store.DeviceView {
	var errStr *string
	if r.Err != nil {
		s := r.Err.Error()
		errStr = &s
	}

	return store.DeviceView{
		ID:        r.DeviceID,
		Name:      r.DeviceName,
		Liveness:  r.Liveness,
		Sensors:   r.Sensors,
		Controls:  r.Controls,
		LatencyMs: r.Latency.Milliseconds(),
		CheckedAt: r.CheckedAt,
		Error:     errStr,
	}
}

// resultToUpdate converts an internal cycle result to the public API type.
// The maps are copied; callbacks may hold them across cycles.
func (p *Panel) resultToUpdate(r reconcile.Result) Update {
	update := Update{
		DeviceID:   r.DeviceID,
		DeviceName: r.DeviceName,
		Liveness:   Liveness(r.Liveness),
		Sensors:    copyMap(r.Sensors),
		Controls:   copyMap(r.Controls),
		Latency:    r.Latency,
		CheckedAt:  r.CheckedAt,
		Err:        r.Err,
	}
	if r.Values != nil {
		update.Values = make(map[string]float64, len(r.Values))
		for k, v := range r.Values {
			update.Values[k] = v
		}
	}
	if u, ok := p.units[r.DeviceID]; ok && u.aircon != nil {
		if load, ok := u.state.EstimatedLoad(); ok {
			update.EstimatedLoadWatts = &load
		}
	}
	return update
}

// invokeCallbackSafe calls an update callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(Update), update Update, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update callback panicked",
				"panic", r,
				"device", update.DeviceID,
				"correlation_id", uuid.NewString(),
			)
		}
	}()
	cb(update)
}
