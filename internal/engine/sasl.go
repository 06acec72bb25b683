package engine

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ircterm/internal/protocol/irc"
)

var (
	ErrSASLMechanism = errors.New("engine: sasl mechanism not offered")
	ErrSASLFailed    = errors.New("engine: sasl authentication failed")
)

// SASLHook runs an AUTHENTICATE exchange once the server acknowledges the
// sasl capability. CAP END is sent after Step reports done or the capability
// timeout fires.
type SASLHook interface {
	Start(mechanisms string) ([]irc.Message, error)
	Step(msg irc.Message) (out []irc.Message, done bool, err error)
}

// PlainSASL implements the PLAIN mechanism.
type PlainSASL struct {
	Account  string
	Password string
}

const saslChunk = 400

func (p PlainSASL) Start(mechanisms string) ([]irc.Message, error) {
	if mechanisms != "" && !containsFold(strings.Split(mechanisms, ","), "PLAIN") {
		return nil, fmt.Errorf("%w: PLAIN not in %q", ErrSASLMechanism, mechanisms)
	}
	return []irc.Message{irc.NewMessage(irc.CmdAuthenticate, "PLAIN")}, nil
}

func (p PlainSASL) Step(msg irc.Message) ([]irc.Message, bool, error) {
	switch msg.Command {
	case irc.CmdAuthenticate:
		if msg.Param(0) != "+" {
			return nil, false, nil
		}
		payload := base64.StdEncoding.EncodeToString([]byte(p.Account + "\x00" + p.Account + "\x00" + p.Password))
		return authenticateChunks(payload), false, nil
	case irc.RplSaslSuccess, irc.ErrSaslAlready:
		return nil, true, nil
	case irc.ErrSaslFail, irc.ErrSaslTooLong, irc.ErrSaslAborted:
		return nil, true, fmt.Errorf("%w: %s %s", ErrSASLFailed, msg.Command, msg.Last())
	default:
		return nil, false, nil
	}
}

// authenticateChunks splits payload into 400-byte AUTHENTICATE lines, ending
// with "+" when the last chunk is full.
func authenticateChunks(payload string) []irc.Message {
	var out []irc.Message
	for len(payload) >= saslChunk {
		out = append(out, irc.NewMessage(irc.CmdAuthenticate, payload[:saslChunk]))
		payload = payload[saslChunk:]
	}
	if payload == "" {
		payload = "+"
	}
	return append(out, irc.NewMessage(irc.CmdAuthenticate, payload))
}

func (m *Machine) handleSASL(msg irc.Message, _ time.Time, out *Output) {
	if m.capPhase != capAuthenticating || m.cfg.SASL == nil {
		if msg.Command != irc.CmdAuthenticate {
			out.emit(RawUnhandled{Message: msg.Clone()})
		}
		return
	}
	lines, done, err := m.cfg.SASL.Step(msg)
	for _, l := range lines {
		out.send(l, true)
	}
	if err != nil {
		out.emit(Warning{Detail: err.Error(), Raw: msg.String()})
	}
	if done {
		m.endCap(out)
	}
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), want) {
			return true
		}
	}
	return false
}
