// Package envelope defines the message shapes that cross the process
// boundary between servedeck and its producers.
//
// Every envelope travels on one of a fixed set of channels:
//
//	status        container-runtime status poller      ps
//	filesystem    project config file reader           read
//	remote        version-control remote reader        remote
//	lifecycle     host window events (inbound only)    focused
//	notification  free-form user messages (inbound)    any
//
// Envelope is the flat JSON wire shape. Decode turns an envelope into
// exactly one concrete Message variant keyed by channel and type; envelopes
// this package does not understand decode to Ignored rather than an error.
package envelope
