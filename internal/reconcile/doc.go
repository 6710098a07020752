// Package reconcile owns the per-device mutable state and the merge logic
// that keeps it consistent with what the operator is doing.
//
// Each [Device] holds the last-known sensor and control snapshots, the
// coalesced pending command, the dirty flag, and the set of fields being
// edited, all behind one mutex: the snapshot and the flag must move
// together or the no-clobber rule below has a hole.
//
// The [Reconciler] runs one poll cycle per device: the sensor read and the
// write-then-confirm chain fan out concurrently, sensors always merge, and
// a control read only merges if the dirty flag is still clear when it
// lands. A flag re-set by an edit while the read was in flight means the
// payload is stale by definition and is discarded whole; this is a
// designed discard, not a failure.
package reconcile
