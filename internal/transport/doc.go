// Package transport opens the byte stream the client speaks IRC over.
//
// Every kind returns a net.Conn carrying CRLF-terminated lines, so framing
// above this layer is the same for plain TCP, TLS and WebSocket links.
package transport
