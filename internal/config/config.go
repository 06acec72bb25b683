package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/ircterm/internal/engine"
	"github.com/danmuck/ircterm/internal/protocol/session"
	"github.com/danmuck/ircterm/internal/transport"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("config: invalid")

// ClientConfig is the on-disk ircterm.toml schema. Durations are Go
// duration strings ("5s", "2m").
type ClientConfig struct {
	Nickname              string          `toml:"nickname"`
	AltNicknames          []string        `toml:"alt_nicknames"`
	Username              string          `toml:"username"`
	Realname              string          `toml:"realname"`
	Password              string          `toml:"password"`
	RequestedCapabilities []string        `toml:"requested_capabilities"`
	CapTimeout            string          `toml:"cap_timeout"`
	KeepaliveTimeout      string          `toml:"keepalive_timeout"`
	KeepaliveGrace        string          `toml:"keepalive_grace"`
	NickRetryLimit        int             `toml:"nick_retry_limit"`
	Autojoin              []string        `toml:"autojoin"`
	CTCPVersion           string          `toml:"ctcp_version"`
	QuitMessage           string          `toml:"quit_message"`
	MetricsAddr           string          `toml:"metrics_addr"`
	MetricsCorsOrigins    []string        `toml:"metrics_cors_origins"`
	LogFile               string          `toml:"log_file"`
	SecurityMode          string          `toml:"security_mode"`
	Server                ServerConfig    `toml:"server"`
	TLS                   TLSConfig       `toml:"tls"`
	RateLimit             RateLimitConfig `toml:"rate_limit"`
	Reconnect             ReconnectConfig `toml:"reconnect"`
	SASL                  SASLConfig      `toml:"sasl"`
}

type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	TLS       bool   `toml:"tls"`
	Transport string `toml:"transport"`
	Path      string `toml:"path"`
	Proxy     string `toml:"proxy"`
}

type TLSConfig struct {
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	ServerName         string `toml:"server_name"`
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
}

type RateLimitConfig struct {
	Interval string `toml:"interval"`
	Burst    int    `toml:"burst"`
}

type ReconnectConfig struct {
	BaseDelay   string  `toml:"base_delay"`
	MaxDelay    string  `toml:"max_delay"`
	Multiplier  float64 `toml:"multiplier"`
	MaxAttempts int     `toml:"max_attempts"`
	Jitter      float64 `toml:"jitter"`
}

// SASLConfig enables SASL PLAIN when Account is set.
type SASLConfig struct {
	Account  string `toml:"account"`
	Password string `toml:"password"`
}

// Load reads path strictly: unknown keys are an error.
func Load(path string) (ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (ClientConfig, error) {
	var cfg ClientConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return ClientConfig{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return ClientConfig{}, err
	}
	if err := Validate(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// Validate checks values without applying defaults. An empty nickname is
// allowed so the command line can supply it.
func Validate(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Nickname) != "" {
		id := engine.Config{Nickname: cfg.Nickname, AltNicknames: cfg.AltNicknames}
		if err := id.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	durations := []struct {
		key, value string
	}{
		{"cap_timeout", cfg.CapTimeout},
		{"keepalive_timeout", cfg.KeepaliveTimeout},
		{"keepalive_grace", cfg.KeepaliveGrace},
		{"rate_limit.interval", cfg.RateLimit.Interval},
		{"reconnect.base_delay", cfg.Reconnect.BaseDelay},
		{"reconnect.max_delay", cfg.Reconnect.MaxDelay},
	}
	for _, d := range durations {
		if _, err := ParseDuration(d.key, d.value); err != nil {
			return err
		}
	}
	if cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("%w: rate_limit.burst must be >= 0", ErrInvalidConfig)
	}
	if cfg.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("%w: reconnect.max_attempts must be >= 0", ErrInvalidConfig)
	}
	if cfg.Reconnect.Jitter < 0 || cfg.Reconnect.Jitter > 1 {
		return fmt.Errorf("%w: reconnect.jitter must be within [0,1]", ErrInvalidConfig)
	}
	if cfg.Reconnect.Multiplier != 0 && cfg.Reconnect.Multiplier < 1 {
		return fmt.Errorf("%w: reconnect.multiplier must be >= 1", ErrInvalidConfig)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalidConfig, cfg.Server.Port)
	}
	if strings.TrimSpace(cfg.Server.Host) != "" {
		if _, err := cfg.Server.Endpoint(); err != nil {
			return fmt.Errorf("%w: server: %v", ErrInvalidConfig, err)
		}
	}
	switch session.NormalizeSecurityMode(session.SecurityMode(cfg.SecurityMode)) {
	case session.SecurityModeDevelopment, session.SecurityModeStrict:
	default:
		return fmt.Errorf("%w: security_mode %q", ErrInvalidConfig, cfg.SecurityMode)
	}
	for _, o := range cfg.MetricsCorsOrigins {
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("%w: metrics_cors_origins entry %q must be an http(s) origin", ErrInvalidConfig, o)
		}
	}
	if (cfg.TLS.CertFile == "") != (cfg.TLS.KeyFile == "") {
		return fmt.Errorf("%w: tls.cert_file and tls.key_file must be set together", ErrInvalidConfig)
	}
	if (cfg.SASL.Account == "") != (cfg.SASL.Password == "") {
		return fmt.Errorf("%w: sasl.account and sasl.password must be set together", ErrInvalidConfig)
	}
	return nil
}

// ParseDuration parses a config duration. Empty means unset.
func ParseDuration(key, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, key)
	}
	return d, nil
}

// Endpoint resolves the server table. Transport wins over the tls flag.
func (s ServerConfig) Endpoint() (transport.Endpoint, error) {
	kind := transport.Kind(strings.ToLower(strings.TrimSpace(s.Transport)))
	if kind == "" {
		kind = transport.KindTCP
		if s.TLS {
			kind = transport.KindTLS
		}
	}
	ep := transport.Endpoint{
		Host:  strings.TrimSpace(s.Host),
		Port:  s.Port,
		Kind:  kind,
		Path:  s.Path,
		Proxy: strings.TrimSpace(s.Proxy),
	}
	if ep.Port == 0 {
		ep.Port = transport.DefaultPort(kind)
	}
	return ep, ep.Validate()
}
