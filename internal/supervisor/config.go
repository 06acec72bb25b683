package supervisor

import (
	"time"

	"github.com/danmuck/ircterm/internal/engine"
	"github.com/danmuck/ircterm/internal/protocol/frame"
	"github.com/danmuck/ircterm/internal/protocol/session"
	"github.com/danmuck/ircterm/internal/ratelimit"
	"github.com/danmuck/ircterm/internal/transport"
)

// Config is the full runtime configuration for one client. An empty
// Endpoint.Host means Run waits for an engine.Connect command.
type Config struct {
	Endpoint     transport.Endpoint
	Engine       engine.Config
	Session      session.Config
	RateLimit    ratelimit.Config
	Limits       frame.Limits
	TickInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Engine:       engine.DefaultConfig(),
		Session:      session.DefaultConfig(),
		RateLimit:    ratelimit.DefaultConfig(),
		Limits:       frame.DefaultLimits(),
		TickInterval: time.Second,
	}
}

func (c Config) WithDefaults() Config {
	c.Engine = c.Engine.WithDefaults()
	c.Session = c.Session.WithDefaults()
	c.RateLimit = c.RateLimit.WithDefaults()
	if c.Limits.MaxLineBytes <= 0 || c.Limits.MaxTaggedLineBytes <= 0 {
		c.Limits = frame.DefaultLimits()
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	return c
}

// EndpointFor resolves a Connect command against the configured proxy.
func EndpointFor(cmd engine.Connect, base transport.Endpoint) (transport.Endpoint, error) {
	ep, err := transport.ParseEndpoint(cmd.Host, cmd.TLS)
	if err != nil {
		return transport.Endpoint{}, err
	}
	if cmd.Port > 0 {
		ep.Port = cmd.Port
	}
	ep.Proxy = base.Proxy
	return ep, ep.Validate()
}
