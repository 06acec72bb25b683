// Package engine is the IRC protocol state machine.
//
// Ownership boundary:
// - connection state (Disconnected, Connecting, Registering, Registered, Closing)
// - registration, capability negotiation, nick collision retry
// - keepalive timers and liveness failure
// - translation of server lines into Session mutations and consumer Events
// - translation of consumer Commands into outbound lines
//
// Machine does no I/O. Every method takes the current time and returns the
// lines to send and the events to publish, so the supervisor owns sockets
// and clocks while tests drive the machine directly.
package engine
