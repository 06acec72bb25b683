package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/ircterm/internal/config"
	"github.com/danmuck/ircterm/internal/transport"
)

const defaultConfigPath = "ircterm.toml"

// loadClientConfig layers path over the built-in defaults. A missing file is
// only an error when required.
func loadClientConfig(path string, required bool) (config.Runtime, error) {
	rt := config.DefaultRuntime()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return rt, nil
		}
		return config.Runtime{}, fmt.Errorf("load ircterm config: %w", err)
	}

	// go-toml rejects unknown keys; the BurntSushi metadata says which keys were set.
	if _, err := config.Load(path); err != nil {
		return config.Runtime{}, err
	}
	var raw config.ClientConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.Runtime{}, fmt.Errorf("load ircterm config: %w", err)
	}
	return config.Apply(rt, raw, meta.IsDefined)
}

type runFlags struct {
	server      string
	port        int
	tls         bool
	proxy       string
	nick        string
	username    string
	realname    string
	join        []string
	metricsAddr string
	logFile     string
	maxAttempts int
}

// applyFlags overrides rt with every flag the user set explicitly.
func applyFlags(rt config.Runtime, f runFlags, changed func(string) bool) (config.Runtime, error) {
	cfg := &rt.Client
	if changed("server") {
		ep, err := transport.ParseEndpoint(f.server, f.tls)
		if err != nil {
			return config.Runtime{}, fmt.Errorf("--server: %w", err)
		}
		ep.Proxy = cfg.Endpoint.Proxy
		cfg.Endpoint = ep
	} else if changed("tls") && cfg.Endpoint.Host != "" {
		ep, err := transport.ParseEndpoint(cfg.Endpoint.Host, f.tls)
		if err != nil {
			return config.Runtime{}, err
		}
		ep.Proxy = cfg.Endpoint.Proxy
		cfg.Endpoint = ep
	}
	if changed("port") {
		cfg.Endpoint.Port = f.port
	}
	if changed("proxy") {
		cfg.Endpoint.Proxy = strings.TrimSpace(f.proxy)
	}
	cfg.Session.TLS.Enabled = cfg.Endpoint.Secure()
	if changed("nick") {
		cfg.Engine.Nickname = strings.TrimSpace(f.nick)
	}
	if changed("username") {
		cfg.Engine.Username = strings.TrimSpace(f.username)
	}
	if changed("realname") {
		cfg.Engine.Realname = f.realname
	}
	if changed("join") {
		cfg.Engine.Autojoin = append(cfg.Engine.Autojoin, f.join...)
	}
	if changed("max-attempts") {
		cfg.Session.Backoff.MaxAttempts = f.maxAttempts
	}
	if changed("metrics-addr") {
		rt.MetricsAddr = strings.TrimSpace(f.metricsAddr)
	}
	if changed("log-file") {
		rt.LogFile = strings.TrimSpace(f.logFile)
	}
	return rt, nil
}
