// Package store provides storage and pub/sub distribution of reconciled
// device views.
//
// The store is the seam between the polling core and the rendering
// collaborator: the update loop writes the latest view per device, and
// consumers either snapshot everything ([Store.GetAll]) or subscribe to a
// live feed of updates ([Store.Subscribe]).
package store
