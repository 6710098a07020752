// Package deviceapi implements the HTTP clients for the two device
// dialects the panel talks to.
//
// Climate units speak a comma-separated key=value dialect where every
// request is a GET and a "ret" disposition field signals device-side
// acceptance. The energy controller speaks plain JSON objects and also
// serves the bulk history feed used to seed the power-flow chart.
//
// Both dialects share one transport ([Client]), one error taxonomy
// ([TransportError], [ProtocolError], [ApplicationError]) and one
// elapsed-time measurement contract: every request reports the wall-clock
// time between issue and response, which the reconciler folds into the
// per-cycle liveness signal. The client never retries; the next scheduled
// poll cycle is the retry mechanism.
package deviceapi
