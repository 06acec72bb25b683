package config

import (
	"fmt"
	"os"
	"time"

	"github.com/danmuck/ircterm/internal/supervisor"
	"github.com/pelletier/go-toml/v2"
)

const templateHeader = `# ircterm client configuration.
# Durations use Go syntax ("5s", "2m"). reconnect.max_attempts = 0 retries forever.
# server.transport is one of tcp, tls, ws, wss; server.proxy takes a socks5:// URL.

`

// DefaultFile is the file form of supervisor.DefaultConfig with a sample server.
func DefaultFile() ClientConfig {
	d := supervisor.DefaultConfig()
	return ClientConfig{
		Nickname:              "ircterm",
		AltNicknames:          []string{},
		RequestedCapabilities: d.Engine.RequestedCaps,
		CapTimeout:            durationString(d.Engine.CapTimeout),
		KeepaliveTimeout:      durationString(d.Engine.KeepaliveTimeout),
		KeepaliveGrace:        durationString(d.Engine.KeepaliveGrace),
		NickRetryLimit:        d.Engine.NickRetryLimit,
		Autojoin:              []string{},
		MetricsCorsOrigins:    []string{},
		CTCPVersion:           d.Engine.CTCPVersion,
		QuitMessage:           d.Engine.QuitMessage,
		SecurityMode:          string(d.Session.SecurityMode),
		Server: ServerConfig{
			Host:      "irc.libera.chat",
			Port:      6697,
			TLS:       true,
			Transport: "tls",
		},
		RateLimit: RateLimitConfig{
			Interval: durationString(d.RateLimit.Interval),
			Burst:    d.RateLimit.Burst,
		},
		Reconnect: ReconnectConfig{
			BaseDelay:  durationString(d.Session.Backoff.BaseDelay),
			MaxDelay:   durationString(d.Session.Backoff.MaxDelay),
			Multiplier: d.Session.Backoff.Multiplier,
			Jitter:     d.Session.Backoff.Jitter,
		},
	}
}

func Template() (string, error) {
	data, err := toml.Marshal(DefaultFile())
	if err != nil {
		return "", fmt.Errorf("config template: %w", err)
	}
	return templateHeader + string(data), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func durationString(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.String()
}
