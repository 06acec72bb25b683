package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/danmuck/ircterm/internal/protocol/irc"
	"github.com/danmuck/ircterm/internal/state"
)

func splitCap(token string) (string, string) {
	name, value, _ := strings.Cut(token, "=")
	return name, value
}

// wantedCaps intersects the configured request list with what the server
// offers, in configured order. sasl is added when a hook is installed.
func (m *Machine) wantedCaps(offered map[string]string) []string {
	var want []string
	seen := make(map[string]bool)
	add := func(name string) {
		if seen[name] {
			return
		}
		if _, ok := offered[name]; !ok {
			return
		}
		if _, enabled := m.sess.Caps[name]; enabled {
			return
		}
		seen[name] = true
		want = append(want, name)
	}
	for _, name := range m.cfg.RequestedCaps {
		add(name)
	}
	if m.cfg.SASL != nil {
		add("sasl")
	}
	return want
}

func (m *Machine) handleCap(msg irc.Message, now time.Time, out *Output) {
	if len(msg.Params) < 3 {
		out.emit(RawUnhandled{Message: msg.Clone()})
		return
	}
	switch strings.ToUpper(msg.Param(1)) {
	case "LS":
		more := len(msg.Params) >= 4 && msg.Param(2) == "*"
		for _, tok := range strings.Fields(msg.Last()) {
			name, value := splitCap(tok)
			m.capAvail[name] = value
		}
		if more || m.capPhase != capListing {
			return
		}
		want := m.wantedCaps(m.capAvail)
		if len(want) == 0 {
			m.endCap(out)
			return
		}
		m.capPhase = capRequesting
		for _, name := range want {
			m.capPending[name] = true
		}
		out.send(irc.NewTrailing(irc.CmdCap, "REQ", strings.Join(want, " ")), true)

	case "ACK":
		added := make(map[string]string)
		var removed []string
		for _, tok := range strings.Fields(msg.Last()) {
			if strings.HasPrefix(tok, "-") {
				name := tok[1:]
				removed = append(removed, name)
				delete(m.capPending, name)
				continue
			}
			name, _ := splitCap(tok)
			added[name] = m.capAvail[name]
			delete(m.capPending, name)
		}
		m.emitCaps(out, m.sess.SetCaps(added, removed))
		m.afterCapReply(now, out)

	case "NAK":
		for _, tok := range strings.Fields(msg.Last()) {
			name, _ := splitCap(strings.TrimPrefix(tok, "-"))
			delete(m.capPending, name)
		}
		m.afterCapReply(now, out)

	case "NEW":
		offered := make(map[string]string)
		for _, tok := range strings.Fields(msg.Last()) {
			name, value := splitCap(tok)
			m.capAvail[name] = value
			offered[name] = value
		}
		if m.state != StateRegistered {
			return
		}
		if want := m.wantedCaps(offered); len(want) > 0 {
			out.send(irc.NewTrailing(irc.CmdCap, "REQ", strings.Join(want, " ")), true)
		}

	case "DEL":
		var removed []string
		for _, tok := range strings.Fields(msg.Last()) {
			name, _ := splitCap(tok)
			delete(m.capAvail, name)
			removed = append(removed, name)
		}
		m.emitCaps(out, m.sess.SetCaps(nil, removed))

	default:
		out.emit(RawUnhandled{Message: msg.Clone()})
	}
}

func (m *Machine) afterCapReply(_ time.Time, out *Output) {
	if m.capPhase != capRequesting || len(m.capPending) > 0 {
		return
	}
	if _, ok := m.sess.Caps["sasl"]; ok && m.cfg.SASL != nil {
		lines, err := m.cfg.SASL.Start(m.capAvail["sasl"])
		if err != nil {
			out.emit(Warning{Detail: err.Error()})
			m.endCap(out)
			return
		}
		m.capPhase = capAuthenticating
		for _, l := range lines {
			out.send(l, true)
		}
		return
	}
	m.endCap(out)
}

func (m *Machine) endCap(out *Output) {
	if m.capPhase == capDone {
		return
	}
	m.capPhase = capDone
	out.send(irc.NewMessage(irc.CmdCap, "END"), true)
}

func (m *Machine) emitCaps(out *Output, d state.Diff) {
	if !d.Changed() {
		return
	}
	ev := CapabilityChanged{Caps: make(map[string]string, len(m.sess.Caps))}
	for k, v := range m.sess.Caps {
		ev.Caps[k] = v
	}
	for _, key := range d.Keys {
		if strings.HasPrefix(key, "-") {
			ev.Removed = append(ev.Removed, key[1:])
		} else {
			ev.Added = append(ev.Added, key)
		}
	}
	sort.Strings(ev.Added)
	sort.Strings(ev.Removed)
	out.emit(ev)
}
