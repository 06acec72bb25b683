// Package session owns connection reliability policy for one IRC server link.
//
// Ownership boundary:
// - dial/handshake/write timeouts and quit grace period
// - reconnect backoff (exponential, capped, jittered)
// - TLS verification policy and client certificate loading
package session
