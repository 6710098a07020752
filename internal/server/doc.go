// Package server implements the HTTP surface of a running panel.
//
// The server publishes the reconciled device state kept in the store:
// current views as JSON, live updates over Server-Sent Events, and the
// chart ring as timestamped rows. Control edits arrive through query
// parameters and are staged back into the panel. It carries no UI
// assets; rendering collaborators consume the JSON and SSE feeds.
package server
