package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrInvalidEndpoint = errors.New("transport: invalid endpoint")
	ErrUnsupportedKind = errors.New("transport: unsupported kind")
)

type Kind string

const (
	KindTCP Kind = "tcp"
	KindTLS Kind = "tls"
	KindWS  Kind = "ws"
	KindWSS Kind = "wss"
)

// Endpoint names one server. Proxy is an optional socks5:// URL.
type Endpoint struct {
	Host  string
	Port  int
	Kind  Kind
	Path  string
	Proxy string
}

func DefaultPort(kind Kind) int {
	switch kind {
	case KindTLS:
		return 6697
	case KindWS:
		return 80
	case KindWSS:
		return 443
	default:
		return 6667
	}
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) Secure() bool {
	return e.Kind == KindTLS || e.Kind == KindWSS
}

func (e Endpoint) String() string {
	switch e.Kind {
	case KindTLS:
		return "ircs://" + e.Addr()
	case KindWS, KindWSS:
		return e.wsURL()
	default:
		return "irc://" + e.Addr()
	}
}

func (e Endpoint) wsURL() string {
	path := e.Path
	if path == "" {
		path = "/"
	}
	u := url.URL{Scheme: string(e.Kind), Host: e.Addr(), Path: path}
	return u.String()
}

func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return fmt.Errorf("%w: host required", ErrInvalidEndpoint)
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidEndpoint, e.Port)
	}
	switch e.Kind {
	case KindTCP, KindTLS, KindWS, KindWSS:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, e.Kind)
	}
	return nil
}

// ParseEndpoint accepts irc://, ircs://, ws://, wss:// URLs or a bare
// host[:port], which is plain TCP unless tls is set.
func ParseEndpoint(raw string, tls bool) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	}
	if !strings.Contains(raw, "://") {
		scheme := "irc"
		if tls {
			scheme = "ircs"
		}
		raw = scheme + "://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	var ep Endpoint
	switch strings.ToLower(u.Scheme) {
	case "irc":
		ep.Kind = KindTCP
	case "ircs":
		ep.Kind = KindTLS
	case "ws":
		ep.Kind = KindWS
		ep.Path = u.Path
	case "wss":
		ep.Kind = KindWSS
		ep.Path = u.Path
	default:
		return Endpoint{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedKind, u.Scheme)
	}
	ep.Host = u.Hostname()
	ep.Port = DefaultPort(ep.Kind)
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: port %q", ErrInvalidEndpoint, p)
		}
		ep.Port = n
	}
	return ep, ep.Validate()
}
