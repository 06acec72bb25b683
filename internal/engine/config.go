package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNicknameRequired = errors.New("engine: nickname required")
	ErrInvalidNickname  = errors.New("engine: invalid nickname")
)

// NickRetriesDisabled as NickRetryLimit stops suffix retries; alternate
// nicknames are still tried.
const NickRetriesDisabled = -1

// Config is the identity and protocol policy for one client.
type Config struct {
	Nickname      string
	AltNicknames  []string
	Username      string
	Realname      string
	Password      string
	RequestedCaps []string
	CapTimeout    time.Duration

	KeepaliveTimeout time.Duration
	KeepaliveGrace   time.Duration
	NickRetryLimit   int

	Autojoin    []string
	CTCPVersion string
	QuitMessage string

	SASL SASLHook
}

func DefaultConfig() Config {
	return Config{
		RequestedCaps:    []string{"multi-prefix", "server-time", "message-tags", "away-notify", "cap-notify"},
		CapTimeout:       5 * time.Second,
		KeepaliveTimeout: 120 * time.Second,
		KeepaliveGrace:   30 * time.Second,
		NickRetryLimit:   3,
		CTCPVersion:      "ircterm",
		QuitMessage:      "ircterm",
	}
}

// WithDefaults fills zero-valued fields. Username and Realname fall back to
// the nickname; a negative NickRetryLimit disables suffix retries.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.Username) == "" {
		c.Username = c.Nickname
	}
	if strings.TrimSpace(c.Realname) == "" {
		c.Realname = c.Nickname
	}
	if c.RequestedCaps == nil {
		c.RequestedCaps = d.RequestedCaps
	}
	if c.CapTimeout <= 0 {
		c.CapTimeout = d.CapTimeout
	}
	if c.KeepaliveTimeout <= 0 {
		c.KeepaliveTimeout = d.KeepaliveTimeout
	}
	if c.KeepaliveGrace <= 0 {
		c.KeepaliveGrace = d.KeepaliveGrace
	}
	if c.NickRetryLimit == 0 {
		c.NickRetryLimit = d.NickRetryLimit
	}
	if c.CTCPVersion == "" {
		c.CTCPVersion = d.CTCPVersion
	}
	if c.QuitMessage == "" {
		c.QuitMessage = d.QuitMessage
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Nickname) == "" {
		return ErrNicknameRequired
	}
	for _, n := range append([]string{c.Nickname}, c.AltNicknames...) {
		if !validNick(n) {
			return fmt.Errorf("%w: %q", ErrInvalidNickname, n)
		}
	}
	return nil
}

func validNick(n string) bool {
	if n == "" || strings.ContainsAny(n, " ,*?!@:\r\n\x00") {
		return false
	}
	switch n[0] {
	case '#', '&', '$', '+', '~', '%', '-':
		return false
	}
	return !(n[0] >= '0' && n[0] <= '9')
}
