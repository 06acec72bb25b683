package engine

import "errors"

// ErrorKind is the closed error taxonomy surfaced to consumers.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindProtocolParseAnomaly
	KindTransportError
	KindRegistrationFailure
	KindCapabilityNegotiationTimeout
)

var (
	ErrProtocolParseAnomaly         = errors.New("engine: protocol parse anomaly")
	ErrTransport                    = errors.New("engine: transport error")
	ErrRegistrationFailure          = errors.New("engine: registration failure")
	ErrCapabilityNegotiationTimeout = errors.New("engine: capability negotiation timeout")

	ErrKeepaliveTimeout = errors.New("engine: keepalive timeout")
	ErrServerClosed     = errors.New("engine: server closed link")
	ErrNotConnected     = errors.New("engine: not connected")
	ErrInvalidCommand   = errors.New("engine: invalid command")
)

func (k ErrorKind) String() string {
	switch k {
	case KindProtocolParseAnomaly:
		return "ProtocolParseAnomaly"
	case KindTransportError:
		return "TransportError"
	case KindRegistrationFailure:
		return "RegistrationFailure"
	case KindCapabilityNegotiationTimeout:
		return "CapabilityNegotiationTimeout"
	default:
		return "None"
	}
}

// Err returns the sentinel for k, for use with errors.Is.
func (k ErrorKind) Err() error {
	switch k {
	case KindProtocolParseAnomaly:
		return ErrProtocolParseAnomaly
	case KindTransportError:
		return ErrTransport
	case KindRegistrationFailure:
		return ErrRegistrationFailure
	case KindCapabilityNegotiationTimeout:
		return ErrCapabilityNegotiationTimeout
	default:
		return nil
	}
}

// Fatal reports whether k ends the client without automatic retry.
func (k ErrorKind) Fatal() bool {
	return k == KindRegistrationFailure
}
