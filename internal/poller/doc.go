// Package poller provides the resettable repeating timer that paces
// poll-and-reconcile cycles for a device group.
//
// Each group gets its own [Scheduler]. The scheduler only owns timing:
// start/stop/reset plus the edit-lock pause used while the operator is
// typing into a field. What a cycle actually does is the injected
// [CycleFunc]'s business; the timer never waits for a cycle to finish
// before arming the next tick.
package poller
