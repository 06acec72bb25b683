// Package state owns the client-side session model: current nick, negotiated
// capabilities, server features and joined channels.
//
// A Session is confined to the engine goroutine. Every mutation is total over
// the current state (duplicate or out-of-order notifications are no-ops) and
// reports what changed as a Diff. Consumers only ever see Clone/Snapshot copies.
package state
