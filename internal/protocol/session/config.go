package session

import "time"

// BackoffConfig defines reconnect backoff behavior. MaxAttempts <= 0 is unbounded.
type BackoffConfig struct {
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Jitter      float64
	MaxAttempts int
}

// TLSConfig is the caller-supplied certificate validation policy.
type TLSConfig struct {
	Enabled            bool
	InsecureSkipVerify bool
	ServerName         string
	CAFile             string
	CertFile           string
	KeyFile            string
}

// SecurityMode gates which TLS settings are acceptable.
type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeStrict      SecurityMode = "strict"
)

// Config defines transport/session reliability defaults.
type Config struct {
	SecurityMode     SecurityMode
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	QuitGrace        time.Duration
	TLS              TLSConfig
	Backoff          BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		SecurityMode:     SecurityModeDevelopment,
		ConnectTimeout:   10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     15 * time.Second,
		QuitGrace:        2 * time.Second,
		Backoff: BackoffConfig{
			BaseDelay:  time.Second,
			Multiplier: 2.0,
			MaxDelay:   30 * time.Second,
			Jitter:     0.25,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	c.SecurityMode = NormalizeSecurityMode(c.SecurityMode)
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.QuitGrace <= 0 {
		c.QuitGrace = d.QuitGrace
	}
	if c.Backoff.BaseDelay <= 0 {
		c.Backoff.BaseDelay = d.Backoff.BaseDelay
	}
	if c.Backoff.Multiplier < 1.0 {
		c.Backoff.Multiplier = d.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = d.Backoff.MaxDelay
	}
	if c.Backoff.Jitter < 0 {
		c.Backoff.Jitter = 0
	}
	return c
}
