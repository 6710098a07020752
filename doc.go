// Package panelcore provides the polling, command-coalescing, and
// state-reconciliation engine behind a multi-device control panel for
// climate units and an energy controller.
//
// Panelcore is designed as an SDK-first library: a rendering front end
// configures the devices programmatically, consumes reconciled state
// through update callbacks or the HTTP API, and feeds user intent back in
// through the control methods. It follows functional programming
// principles with immutable types and composable configuration via the
// functional options pattern.
//
// # Quick Start
//
// Create devices and start the panel with graceful shutdown:
//
//	living, _ := panelcore.NewDevice("living", "http://192.168.1.60", panelcore.KindAircon)
//	solar, _ := panelcore.NewDevice("solar", "http://192.168.1.10", panelcore.KindController)
//	p, _ := panelcore.New(panelcore.WithDevices(living, solar))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	p.Start(ctx) // blocks until context is cancelled
//
// # Polling and Reconciliation
//
// Devices are polled in groups on a shared period. Each cycle reads a
// device's sensors and controls concurrently, flushes any pending command
// as exactly one write, and merges the results into the local view. The
// merge never overwrites an unsent edit: while a device's dirty flag is
// set, freshly read control values are discarded rather than applied, so
// the operator never sees their own change revert under a stale poll.
//
// # User Intent
//
// The rendering layer drives the panel through three calls:
//
//	p.SetControl("living", "stemp", "21") // stage an edit, coalesced per field
//	p.BeginEdit("living", "stemp")        // focus: suspend polling outright
//	p.EndEdit("living", "stemp")          // blur: resume polling
//
// Rapid edits to the same field before a tick coalesce into one write
// carrying only the last value. Every edit also pushes the next automatic
// poll a full period away.
//
// # Architecture
//
// Panelcore consists of several internal packages (under internal/):
//
//   - internal/deviceapi: The two device wire dialects and error taxonomy
//   - internal/poller: Resettable per-group poll scheduling
//   - internal/reconcile: Pending commands, dirty flags, merge rules, liveness
//   - internal/series: The bounded chart ring with gap detection
//   - internal/store: In-memory views with pub/sub for real-time updates
//   - internal/server: HTTP server with REST API and Server-Sent Events
//
// The internal packages are not part of the public API and may change
// without notice.
package panelcore
