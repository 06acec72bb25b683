// Package supervisor owns the socket lifecycle for one IRC client.
//
// Ownership boundary:
// - dialing, reader/writer goroutines and teardown per connection
// - reconnect backoff and its cancellation on quit
// - the event and command mailboxes exposed to consumers
//
// All protocol state lives in an engine.Machine driven from Run's goroutine.
package supervisor
