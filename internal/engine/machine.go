package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ircterm/internal/protocol/frame"
	"github.com/danmuck/ircterm/internal/protocol/irc"
	"github.com/danmuck/ircterm/internal/state"
)

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateRegistering
	StateRegistered
	StateClosing
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateRegistering:
		return "Registering"
	case StateRegistered:
		return "Registered"
	case StateClosing:
		return "Closing"
	default:
		return "Disconnected"
	}
}

// Outbound is one line for the writer. Priority lines bypass the rate limiter.
// Fenced lines are not paced but wait behind every earlier ordinary line.
type Outbound struct {
	Msg      irc.Message
	Priority bool
	Fenced   bool
}

// Drop asks the supervisor to tear the link down. Final suppresses reconnect.
type Drop struct {
	Kind  ErrorKind
	Err   error
	Final bool
}

// Output is everything one machine step produced, in order.
type Output struct {
	Lines  []Outbound
	Events []Event
	Drop   *Drop
	// Quit is set once a client QUIT has been issued; the supervisor closes
	// the link after the quit grace period.
	Quit bool
}

func (o *Output) send(msg irc.Message, priority bool) {
	o.Lines = append(o.Lines, Outbound{Msg: msg, Priority: priority})
}

func (o *Output) emit(ev Event) {
	o.Events = append(o.Events, ev)
}

type capPhase int

const (
	capIdle capPhase = iota
	capListing
	capRequesting
	capAuthenticating
	capDone
)

// Machine is the single owner of connection state and the Session.
type Machine struct {
	cfg   Config
	state ConnectionState
	sess  *state.Session
	conn  string

	server      string
	desiredNick string
	nickAttempt string
	altIndex    int
	nickRetries int

	capPhase    capPhase
	capDeadline time.Time
	capAvail    map[string]string
	capPending  map[string]bool

	lastRecv     time.Time
	pingToken    string
	pingDeadline time.Time

	pending  []irc.Message
	rejoin   []Join
	quitting bool
}

func NewMachine(cfg Config) *Machine {
	cfg = cfg.WithDefaults()
	return &Machine{
		cfg:         cfg,
		sess:        state.NewSession(cfg.Nickname),
		desiredNick: cfg.Nickname,
		capAvail:    make(map[string]string),
		capPending:  make(map[string]bool),
	}
}

func (m *Machine) State() ConnectionState {
	return m.state
}

func (m *Machine) Nick() string {
	return m.sess.Nick
}

// Snapshot copies the session for publication outside the owning goroutine.
func (m *Machine) Snapshot() state.Snapshot {
	return m.sess.Snapshot()
}

// Quitting reports whether the consumer asked to quit.
func (m *Machine) Quitting() bool {
	return m.quitting
}

// Connecting records a dial attempt for connection conn.
func (m *Machine) Connecting(conn string, now time.Time) {
	m.state = StateConnecting
	m.conn = conn
	m.lastRecv = now
}

// Established starts registration on a freshly opened link.
func (m *Machine) Established(addr string, now time.Time) Output {
	var out Output
	m.state = StateRegistering
	m.sess.Reset()
	m.sess.SetNick(m.desiredNick)
	m.server = ""
	m.nickAttempt = m.desiredNick
	m.altIndex = 0
	m.nickRetries = 0
	m.lastRecv = now
	m.pingToken = ""
	m.capAvail = make(map[string]string)
	m.capPending = make(map[string]bool)
	m.capPhase = capListing
	m.capDeadline = now.Add(m.cfg.CapTimeout)

	out.emit(Connected{Conn: m.conn, Addr: addr})
	out.send(irc.NewMessage(irc.CmdCap, "LS", "302"), true)
	if m.cfg.Password != "" {
		out.send(irc.NewMessage(irc.CmdPass, m.cfg.Password), true)
	}
	out.send(irc.NewMessage(irc.CmdNick, m.nickAttempt), true)
	out.send(irc.NewTrailing(irc.CmdUser, m.cfg.Username, "0", "*", m.cfg.Realname), true)
	return out
}

// HandleLine parses one framed line and handles it. Truncated lines are
// still dispatched after a parse-anomaly warning.
func (m *Machine) HandleLine(line frame.Line, now time.Time) Output {
	return m.HandleParsed(irc.Parse(line.Data), line, now)
}

// HandleParsed is HandleLine for a caller that already parsed line.Data.
func (m *Machine) HandleParsed(msg irc.Message, line frame.Line, now time.Time) Output {
	out := m.Handle(msg, now)
	if line.Truncated {
		warn := Warning{Kind: KindProtocolParseAnomaly, Detail: "line truncated", Raw: string(line.Data)}
		out.Events = append([]Event{warn}, out.Events...)
	}
	return out
}

// Handle applies one inbound message.
func (m *Machine) Handle(msg irc.Message, now time.Time) Output {
	var out Output
	m.sess.Touch(now)
	m.lastRecv = now
	m.pingToken = ""

	if msg.Malformed {
		out.emit(Warning{Kind: KindProtocolParseAnomaly, Detail: msg.Reason, Raw: msg.Raw})
		return out
	}
	if h, ok := handlers[strings.ToUpper(msg.Command)]; ok {
		h(m, msg, now, &out)
		return out
	}
	out.emit(RawUnhandled{Message: msg.Clone()})
	return out
}

// Tick runs timers: capability timeout and keepalive.
func (m *Machine) Tick(now time.Time) Output {
	var out Output
	switch m.state {
	case StateRegistering:
		if (m.capPhase == capListing || m.capPhase == capRequesting || m.capPhase == capAuthenticating) &&
			!now.Before(m.capDeadline) {
			out.emit(Warning{
				Kind:   KindCapabilityNegotiationTimeout,
				Detail: fmt.Sprintf("capability negotiation did not finish within %s", m.cfg.CapTimeout),
			})
			m.endCap(&out)
		}
		m.checkLiveness(now, &out)
	case StateRegistered:
		m.checkLiveness(now, &out)
	}
	return out
}

func (m *Machine) checkLiveness(now time.Time, out *Output) {
	if m.pingToken != "" {
		if !now.Before(m.pingDeadline) {
			m.state = StateClosing
			out.Drop = &Drop{
				Kind: KindTransportError,
				Err:  fmt.Errorf("%w: no reply within %s", ErrKeepaliveTimeout, m.cfg.KeepaliveGrace),
			}
		}
		return
	}
	if now.Sub(m.lastRecv) >= m.cfg.KeepaliveTimeout {
		m.pingToken = fmt.Sprintf("ircterm-%d", now.Unix())
		m.pingDeadline = now.Add(m.cfg.KeepaliveGrace)
		out.send(irc.NewMessage(irc.CmdPing, m.pingToken), true)
	}
}

// Disconnected tears down connection-scoped state. Channels held while
// registered are remembered for rejoin.
func (m *Machine) Disconnected(reason string, err error, final bool, now time.Time) Output {
	var out Output
	if m.state == StateDisconnected {
		return out
	}
	if m.state == StateRegistered || (m.state == StateClosing && len(m.sess.Channels) > 0) {
		m.rejoin = m.rejoin[:0]
		for _, name := range m.sess.ChannelNames() {
			ch, _ := m.sess.Channel(name)
			m.rejoin = append(m.rejoin, Join{Channel: ch.Name, Key: ch.Modes['k']})
			out.emit(ChannelLeft{Name: ch.Name, Reason: "disconnected"})
		}
	}
	m.sess.Reset()
	m.state = StateDisconnected
	m.capPhase = capIdle
	m.pingToken = ""
	out.emit(Disconnected{Conn: m.conn, Reason: reason, Err: err, Final: final || m.quitting})
	return out
}

// Submit translates a consumer command into outbound lines. Ordinary lines
// submitted before registration are held and flushed after 001.
func (m *Machine) Submit(cmd Command, now time.Time) Output {
	var out Output
	switch c := cmd.(type) {
	case Join:
		if !validTarget(c.Channel) {
			m.reject(&out, cmd, "invalid channel")
			return out
		}
		if c.Key != "" {
			m.enqueue(&out, irc.NewMessage(irc.CmdJoin, c.Channel, c.Key))
		} else {
			m.enqueue(&out, irc.NewMessage(irc.CmdJoin, c.Channel))
		}
	case Part:
		if !validTarget(c.Channel) {
			m.reject(&out, cmd, "invalid channel")
			return out
		}
		if c.Reason != "" {
			m.enqueue(&out, irc.NewTrailing(irc.CmdPart, c.Channel, c.Reason))
		} else {
			m.enqueue(&out, irc.NewMessage(irc.CmdPart, c.Channel))
		}
	case SendMessage:
		m.sendText(&out, cmd, irc.CmdPrivmsg, c.Target, c.Text)
	case Notice:
		m.sendText(&out, cmd, irc.CmdNotice, c.Target, c.Text)
	case Action:
		if !validTarget(c.Target) {
			m.reject(&out, cmd, "invalid target")
			return out
		}
		m.enqueue(&out, irc.NewTrailing(irc.CmdPrivmsg, c.Target, ctcpWrap("ACTION", c.Text)))
	case Nick:
		if !validNick(c.Nick) {
			m.reject(&out, cmd, "invalid nickname")
			return out
		}
		switch m.state {
		case StateRegistered:
			m.enqueue(&out, irc.NewMessage(irc.CmdNick, c.Nick))
		case StateRegistering:
			m.desiredNick = c.Nick
			m.nickAttempt = c.Nick
			out.send(irc.NewMessage(irc.CmdNick, c.Nick), true)
		default:
			old := m.desiredNick
			m.desiredNick = c.Nick
			m.sess.SetNick(c.Nick)
			out.emit(NickChanged{Old: old, New: c.Nick})
		}
	case SendRaw:
		msg := irc.ParseString(strings.TrimRight(c.Line, "\r\n"))
		if msg.Malformed {
			m.reject(&out, cmd, msg.Reason)
			return out
		}
		m.enqueue(&out, msg)
	case Quit:
		reason := c.Reason
		if reason == "" {
			reason = m.cfg.QuitMessage
		}
		m.quitting = true
		out.Quit = true
		if m.state == StateRegistering || m.state == StateRegistered {
			out.Lines = append(out.Lines, Outbound{Msg: irc.NewTrailing(irc.CmdQuit, reason), Fenced: true})
			m.state = StateClosing
		}
	default:
		m.reject(&out, cmd, "unsupported by the protocol machine")
	}
	return out
}

func (m *Machine) reject(out *Output, cmd Command, detail string) {
	out.emit(Warning{Detail: fmt.Sprintf("%s: %s", strings.ToLower(cmd.CommandName()), detail)})
}

func (m *Machine) enqueue(out *Output, msg irc.Message) {
	if err := msg.Validate(); err != nil {
		out.emit(Warning{Detail: fmt.Sprintf("%s: %v", ErrInvalidCommand, err), Raw: msg.String()})
		return
	}
	if m.state == StateRegistered {
		out.send(msg, false)
		return
	}
	m.pending = append(m.pending, msg)
}

func (m *Machine) sendText(out *Output, cmd Command, verb, target, text string) {
	if !validTarget(target) {
		m.reject(out, cmd, "invalid target")
		return
	}
	budget := irc.MaxLineLength - 2 - len(verb) - len(target) - 3 - m.prefixReserve()
	for _, chunk := range splitText(text, budget) {
		m.enqueue(out, irc.NewTrailing(verb, target, chunk))
	}
}

// prefixReserve is the room the server needs to prepend our nick!user@host.
func (m *Machine) prefixReserve() int {
	return len(m.sess.Nick) + len(m.cfg.Username) + 64 + 4
}

func validTarget(t string) bool {
	return t != "" && !strings.ContainsAny(t, " ,\r\n\x00")
}

// splitText breaks text at newlines and then into chunks of at most max
// bytes, cutting at a space where possible and never inside a UTF-8 sequence.
func splitText(text string, max int) []string {
	if max < 16 {
		max = 16
	}
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		for len(line) > max {
			cut := max
			for cut > 0 && !utf8Start(line[cut]) {
				cut--
			}
			if sp := strings.LastIndexByte(line[:cut], ' '); sp > max/2 {
				cut = sp
			}
			out = append(out, line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
