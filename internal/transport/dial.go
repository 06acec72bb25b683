package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/danmuck/ircterm/internal/protocol/session"
	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"
)

// WebSocketSubprotocols are offered on ws/wss links, text first.
var WebSocketSubprotocols = []string{"text.ircv3.net", "binary.ircv3.net"}

// Dialer opens links using the session timeouts and TLS policy.
type Dialer struct {
	Session session.Config
}

func NewDialer(cfg session.Config) *Dialer {
	return &Dialer{Session: cfg.WithDefaults()}
}

// Dial connects to ep. The returned conn has completed any TLS or
// WebSocket handshake.
func (d *Dialer) Dial(ctx context.Context, ep Endpoint) (net.Conn, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	switch ep.Kind {
	case KindTCP:
		return d.dialTCP(ctx, ep)
	case KindTLS:
		return d.dialTLS(ctx, ep)
	case KindWS, KindWSS:
		return d.dialWebSocket(ctx, ep)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, ep.Kind)
	}
}

type contextDialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func (d *Dialer) netDial(ep Endpoint) (contextDialFunc, error) {
	base := &net.Dialer{Timeout: d.Session.ConnectTimeout}
	if strings.TrimSpace(ep.Proxy) == "" {
		return base.DialContext, nil
	}
	u, err := url.Parse(ep.Proxy)
	if err != nil {
		return nil, fmt.Errorf("%w: proxy %v", ErrInvalidEndpoint, err)
	}
	pd, err := proxy.FromURL(u, base)
	if err != nil {
		return nil, fmt.Errorf("%w: proxy %v", ErrInvalidEndpoint, err)
	}
	if cd, ok := pd.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return pd.Dial(network, addr)
	}, nil
}

func (d *Dialer) dialTCP(ctx context.Context, ep Endpoint) (net.Conn, error) {
	dial, err := d.netDial(ep)
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, d.Session.ConnectTimeout)
	defer cancel()
	return dial(dialCtx, "tcp", ep.Addr())
}

func (d *Dialer) dialTLS(ctx context.Context, ep Endpoint) (net.Conn, error) {
	tlsCfg, err := d.Session.ClientTLSConfig(ep.Host)
	if err != nil {
		return nil, err
	}
	raw, err := d.dialTCP(ctx, ep)
	if err != nil {
		return nil, err
	}
	conn := tls.Client(raw, tlsCfg)
	hsCtx, cancel := context.WithTimeout(ctx, d.Session.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(hsCtx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return conn, nil
}

func (d *Dialer) dialWebSocket(ctx context.Context, ep Endpoint) (net.Conn, error) {
	dial, err := d.netDial(ep)
	if err != nil {
		return nil, err
	}
	wsd := websocket.Dialer{
		NetDialContext:   dial,
		HandshakeTimeout: d.Session.HandshakeTimeout,
		Subprotocols:     WebSocketSubprotocols,
	}
	if ep.Kind == KindWSS {
		tlsCfg, err := d.Session.ClientTLSConfig(ep.Host)
		if err != nil {
			return nil, err
		}
		wsd.TLSClientConfig = tlsCfg
	}
	dialCtx, cancel := context.WithTimeout(ctx, d.Session.ConnectTimeout+d.Session.HandshakeTimeout)
	defer cancel()
	ws, resp, err := wsd.DialContext(dialCtx, ep.wsURL(), http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: websocket handshake status=%d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return NewWebSocketConn(ws), nil
}
