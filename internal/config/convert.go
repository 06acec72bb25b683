package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ircterm/internal/engine"
	"github.com/danmuck/ircterm/internal/protocol/session"
	"github.com/danmuck/ircterm/internal/supervisor"
)

// Defined reports whether a key path was present in the source file.
// toml.MetaData.IsDefined satisfies it.
type Defined func(key ...string) bool

// Runtime is everything the binary takes from a config file.
type Runtime struct {
	Client      supervisor.Config
	MetricsAddr string
	CorsOrigins []string
	LogFile     string
}

func DefaultRuntime() Runtime {
	return Runtime{Client: supervisor.DefaultConfig()}
}

// Apply layers the keys of file that are defined over rt.
func Apply(rt Runtime, file ClientConfig, defined Defined) (Runtime, error) {
	if err := Validate(file); err != nil {
		return Runtime{}, err
	}
	cfg := rt.Client
	eng := &cfg.Engine
	sess := &cfg.Session

	if defined("nickname") {
		eng.Nickname = strings.TrimSpace(file.Nickname)
	}
	if defined("alt_nicknames") {
		eng.AltNicknames = trimAll(file.AltNicknames)
	}
	if defined("username") {
		eng.Username = strings.TrimSpace(file.Username)
	}
	if defined("realname") {
		eng.Realname = file.Realname
	}
	if defined("password") {
		eng.Password = file.Password
	}
	if defined("requested_capabilities") {
		eng.RequestedCaps = trimAll(file.RequestedCapabilities)
	}
	if defined("nick_retry_limit") {
		eng.NickRetryLimit = file.NickRetryLimit
		if eng.NickRetryLimit <= 0 {
			eng.NickRetryLimit = engine.NickRetriesDisabled
		}
	}
	if defined("autojoin") {
		eng.Autojoin = trimAll(file.Autojoin)
	}
	if defined("ctcp_version") {
		eng.CTCPVersion = file.CTCPVersion
	}
	if defined("quit_message") {
		eng.QuitMessage = file.QuitMessage
	}
	if defined("sasl", "account") && file.SASL.Account != "" {
		eng.SASL = engine.PlainSASL{Account: file.SASL.Account, Password: file.SASL.Password}
	}

	// durations were checked by Validate
	setDuration := func(dst *time.Duration, value string, key ...string) {
		if !defined(key...) {
			return
		}
		if d, _ := ParseDuration(strings.Join(key, "."), value); d > 0 {
			*dst = d
		}
	}
	setDuration(&eng.CapTimeout, file.CapTimeout, "cap_timeout")
	setDuration(&eng.KeepaliveTimeout, file.KeepaliveTimeout, "keepalive_timeout")
	setDuration(&eng.KeepaliveGrace, file.KeepaliveGrace, "keepalive_grace")
	setDuration(&cfg.RateLimit.Interval, file.RateLimit.Interval, "rate_limit", "interval")
	setDuration(&sess.Backoff.BaseDelay, file.Reconnect.BaseDelay, "reconnect", "base_delay")
	setDuration(&sess.Backoff.MaxDelay, file.Reconnect.MaxDelay, "reconnect", "max_delay")

	if defined("rate_limit", "burst") && file.RateLimit.Burst > 0 {
		cfg.RateLimit.Burst = file.RateLimit.Burst
	}
	if defined("reconnect", "multiplier") && file.Reconnect.Multiplier >= 1 {
		sess.Backoff.Multiplier = file.Reconnect.Multiplier
	}
	if defined("reconnect", "max_attempts") {
		sess.Backoff.MaxAttempts = file.Reconnect.MaxAttempts
	}
	if defined("reconnect", "jitter") {
		sess.Backoff.Jitter = file.Reconnect.Jitter
	}

	if defined("security_mode") {
		sess.SecurityMode = session.NormalizeSecurityMode(session.SecurityMode(file.SecurityMode))
	}
	if defined("tls") {
		sess.TLS = session.TLSConfig{
			Enabled:            sess.TLS.Enabled,
			InsecureSkipVerify: file.TLS.InsecureSkipVerify,
			ServerName:         strings.TrimSpace(file.TLS.ServerName),
			CAFile:             strings.TrimSpace(file.TLS.CAFile),
			CertFile:           strings.TrimSpace(file.TLS.CertFile),
			KeyFile:            strings.TrimSpace(file.TLS.KeyFile),
		}
	}
	if defined("server") {
		if strings.TrimSpace(file.Server.Host) != "" {
			ep, err := file.Server.Endpoint()
			if err != nil {
				return Runtime{}, fmt.Errorf("%w: server: %v", ErrInvalidConfig, err)
			}
			cfg.Endpoint = ep
		} else if defined("server", "proxy") {
			cfg.Endpoint.Proxy = strings.TrimSpace(file.Server.Proxy)
		}
	}
	sess.TLS.Enabled = cfg.Endpoint.Secure()

	if defined("metrics_addr") {
		rt.MetricsAddr = strings.TrimSpace(file.MetricsAddr)
	}
	if defined("metrics_cors_origins") {
		rt.CorsOrigins = trimAll(file.MetricsCorsOrigins)
	}
	if defined("log_file") {
		rt.LogFile = strings.TrimSpace(file.LogFile)
	}
	rt.Client = cfg
	return rt, nil
}

// Check validates a layered runtime config the way Run will use it.
func Check(rt Runtime) error {
	cfg := rt.Client.WithDefaults()
	if err := cfg.Engine.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Endpoint.Host != "" {
		if err := cfg.Endpoint.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if err := cfg.Session.ValidateClientTransport(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
