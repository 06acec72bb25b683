package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ircterm/internal/protocol/irc"
	"github.com/danmuck/ircterm/internal/state"
)

type handlerFunc func(m *Machine, msg irc.Message, now time.Time, out *Output)

var handlers = map[string]handlerFunc{
	irc.CmdPing:             (*Machine).handlePing,
	irc.CmdPong:             func(*Machine, irc.Message, time.Time, *Output) {},
	irc.CmdCap:              (*Machine).handleCap,
	irc.CmdAuthenticate:     (*Machine).handleSASL,
	irc.RplLoggedIn:         (*Machine).handleSASL,
	irc.RplSaslSuccess:      (*Machine).handleSASL,
	irc.ErrSaslFail:         (*Machine).handleSASL,
	irc.ErrSaslTooLong:      (*Machine).handleSASL,
	irc.ErrSaslAborted:      (*Machine).handleSASL,
	irc.ErrSaslAlready:      (*Machine).handleSASL,
	irc.RplSaslMechs:        (*Machine).handleSASL,
	irc.RplWelcome:          (*Machine).handleWelcome,
	irc.RplISupport:         (*Machine).handleISupport,
	irc.ErrNicknameInUse:    (*Machine).handleNickInUse,
	irc.ErrNickCollision:    (*Machine).handleNickInUse,
	irc.ErrUnavailResource:  (*Machine).handleNickInUse,
	irc.ErrErroneusNick:     (*Machine).handleRegistrationRejected,
	irc.ErrPasswdMismatch:   (*Machine).handleRegistrationRejected,
	irc.ErrYoureBannedCreep: (*Machine).handleRegistrationRejected,
	irc.CmdError:            (*Machine).handleError,
	irc.CmdNick:             (*Machine).handleNick,
	irc.CmdJoin:             (*Machine).handleJoin,
	irc.CmdPart:             (*Machine).handlePart,
	irc.CmdKick:             (*Machine).handleKick,
	irc.CmdQuit:             (*Machine).handleQuit,
	irc.CmdMode:             (*Machine).handleMode,
	irc.RplUModeIs:          (*Machine).handleUModeIs,
	irc.RplChannelModeIs:    (*Machine).handleChannelModeIs,
	irc.CmdTopic:            (*Machine).handleTopic,
	irc.RplTopic:            (*Machine).handleTopicReply,
	irc.RplNoTopic:          (*Machine).handleTopicReply,
	irc.RplTopicWhoTime:     (*Machine).handleTopicWhoTime,
	irc.RplNamReply:         (*Machine).handleNames,
	irc.RplEndOfNames:       func(*Machine, irc.Message, time.Time, *Output) {},
	irc.CmdPrivmsg:          (*Machine).handleMessage,
	irc.CmdNotice:           (*Machine).handleMessage,
}

func (m *Machine) handlePing(msg irc.Message, _ time.Time, out *Output) {
	pong := irc.Message{Command: irc.CmdPong, Params: append([]string(nil), msg.Params...), Trailing: msg.Trailing}
	out.send(pong, true)
}

func (m *Machine) handleWelcome(msg irc.Message, _ time.Time, out *Output) {
	nick := msg.Param(0)
	if nick == "" || nick == "*" {
		nick = m.nickAttempt
	}
	m.sess.SetNick(nick)
	m.desiredNick = nick
	m.server = msg.Prefix
	m.state = StateRegistered
	if m.capPhase != capIdle {
		m.capPhase = capDone
	}
	out.emit(Registered{Nick: nick, Server: msg.Prefix})

	seen := make(map[string]bool)
	joins := make([]Join, 0, len(m.cfg.Autojoin)+len(m.rejoin))
	joins = append(joins, m.rejoin...)
	for _, entry := range m.cfg.Autojoin {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		j := Join{Channel: fields[0]}
		if len(fields) > 1 {
			j.Key = fields[1]
		}
		joins = append(joins, j)
	}
	for _, j := range joins {
		key := m.sess.Support().Fold(j.Channel)
		if seen[key] || !validTarget(j.Channel) {
			continue
		}
		seen[key] = true
		if j.Key != "" {
			out.send(irc.NewMessage(irc.CmdJoin, j.Channel, j.Key), false)
		} else {
			out.send(irc.NewMessage(irc.CmdJoin, j.Channel), false)
		}
	}
	m.rejoin = nil

	for _, p := range m.pending {
		out.send(p, false)
	}
	m.pending = nil
}

func (m *Machine) handleISupport(msg irc.Message, _ time.Time, _ *Output) {
	if len(msg.Params) < 2 {
		return
	}
	tokens := msg.Params[1:]
	if len(tokens) > 1 && strings.IndexByte(tokens[len(tokens)-1], ' ') >= 0 {
		tokens = tokens[:len(tokens)-1]
	}
	m.sess.ApplyISupport(tokens)
}

// nextNick walks alternates first, then appends one more '_' per retry.
func (m *Machine) nextNick() (string, bool) {
	if m.altIndex < len(m.cfg.AltNicknames) {
		n := m.cfg.AltNicknames[m.altIndex]
		m.altIndex++
		return n, true
	}
	if m.nickRetries >= m.cfg.NickRetryLimit {
		return "", false
	}
	m.nickRetries++
	return m.desiredNick + strings.Repeat("_", m.nickRetries), true
}

func (m *Machine) handleNickInUse(msg irc.Message, _ time.Time, out *Output) {
	if m.state != StateRegistering {
		out.emit(Warning{Detail: fmt.Sprintf("nickname %s unavailable: %s", msg.Param(1), msg.Last()), Raw: msg.String()})
		return
	}
	next, ok := m.nextNick()
	if !ok {
		m.failRegistration(out, fmt.Errorf("%w: nickname %q unavailable after %d retries",
			ErrRegistrationFailure, m.nickAttempt, m.nickRetries))
		return
	}
	m.nickAttempt = next
	out.send(irc.NewMessage(irc.CmdNick, next), true)
}

func (m *Machine) handleRegistrationRejected(msg irc.Message, _ time.Time, out *Output) {
	if m.state != StateRegistering {
		out.emit(Warning{Detail: msg.Last(), Raw: msg.String()})
		return
	}
	m.failRegistration(out, fmt.Errorf("%w: %s %s", ErrRegistrationFailure, msg.Command, msg.Last()))
}

func (m *Machine) failRegistration(out *Output, err error) {
	m.state = StateClosing
	out.Drop = &Drop{Kind: KindRegistrationFailure, Err: err, Final: true}
}

func (m *Machine) handleError(msg irc.Message, _ time.Time, out *Output) {
	m.state = StateClosing
	out.Drop = &Drop{
		Kind:  KindTransportError,
		Err:   fmt.Errorf("%w: %s", ErrServerClosed, msg.Last()),
		Final: m.quitting,
	}
}

func (m *Machine) handleNick(msg irc.Message, _ time.Time, out *Output) {
	from := msg.Source().Nick
	to := msg.Param(0)
	if from == "" || to == "" {
		return
	}
	if m.sess.IsSelf(from) {
		old := m.sess.Nick
		m.sess.SetNick(to)
		m.desiredNick = to
		out.emit(NickChanged{Old: old, New: to})
	}
	m.emitDiffs(out, m.sess.RenameMember(from, to))
}

func (m *Machine) handleJoin(msg irc.Message, _ time.Time, out *Output) {
	nick := msg.Source().Nick
	channel := msg.Param(0)
	if nick == "" || channel == "" {
		return
	}
	if m.sess.IsSelf(nick) {
		if d := m.sess.JoinChannel(channel); d.Changed() {
			m.sess.UpsertMember(channel, nick, "")
			ch, _ := m.sess.Channel(channel)
			out.emit(ChannelJoined{Name: ch.Name, State: ch})
		}
		return
	}
	ch, ok := m.sess.Channel(channel)
	if !ok {
		return
	}
	if _, present := ch.Members[m.sess.Support().Fold(nick)]; present {
		return
	}
	m.emitDiff(out, m.sess.UpsertMember(channel, nick, ""))
}

func (m *Machine) handlePart(msg irc.Message, _ time.Time, out *Output) {
	nick := msg.Source().Nick
	channel := msg.Param(0)
	if m.sess.IsSelf(nick) {
		if d := m.sess.PartChannel(channel); d.Changed() {
			out.emit(ChannelLeft{Name: d.Channel, Reason: msg.Param(1)})
		}
		return
	}
	m.emitDiff(out, m.sess.RemoveMember(channel, nick))
}

func (m *Machine) handleKick(msg irc.Message, _ time.Time, out *Output) {
	channel, victim := msg.Param(0), msg.Param(1)
	if m.sess.IsSelf(victim) {
		if d := m.sess.PartChannel(channel); d.Changed() {
			out.emit(ChannelLeft{Name: d.Channel, Reason: msg.Param(2), Kicked: true, By: msg.Source().Nick})
		}
		return
	}
	m.emitDiff(out, m.sess.RemoveMember(channel, victim))
}

func (m *Machine) handleQuit(msg irc.Message, _ time.Time, out *Output) {
	nick := msg.Source().Nick
	if nick == "" || m.sess.IsSelf(nick) {
		return
	}
	m.emitDiffs(out, m.sess.RemoveMemberEverywhere(nick))
}

func (m *Machine) handleMode(msg irc.Message, _ time.Time, out *Output) {
	target := msg.Param(0)
	switch {
	case m.sess.IsChannel(target):
		changes := state.ParseModes(m.sess.Support(), msg.Param(1), tail(msg.Params, 2))
		m.emitDiff(out, m.sess.ApplyModeDelta(target, changes))
	case m.sess.IsSelf(target):
		if d := m.sess.SetUserModes(msg.Param(1)); d.Changed() {
			out.emit(UserModeChanged{Modes: d.Modes})
		}
	default:
		out.emit(RawUnhandled{Message: msg.Clone()})
	}
}

// handleUModeIs replaces user modes wholesale from RPL_UMODEIS.
func (m *Machine) handleUModeIs(msg irc.Message, _ time.Time, out *Output) {
	modes := strings.TrimPrefix(msg.Param(1), "+")
	if modes == m.sess.UserModes {
		return
	}
	delta := ""
	if m.sess.UserModes != "" {
		delta = "-" + m.sess.UserModes
	}
	if d := m.sess.SetUserModes(delta + "+" + modes); d.Changed() {
		out.emit(UserModeChanged{Modes: d.Modes})
	}
}

func (m *Machine) handleChannelModeIs(msg irc.Message, _ time.Time, out *Output) {
	channel := msg.Param(1)
	changes := state.ParseModes(m.sess.Support(), msg.Param(2), tail(msg.Params, 3))
	m.emitDiff(out, m.sess.ApplyModeDelta(channel, changes))
}

func (m *Machine) handleTopic(msg irc.Message, _ time.Time, out *Output) {
	m.emitDiff(out, m.sess.SetTopic(msg.Param(0), msg.Param(1), msg.Source().Nick))
}

func (m *Machine) handleTopicReply(msg irc.Message, _ time.Time, out *Output) {
	topic := ""
	if msg.Command == irc.RplTopic {
		topic = msg.Param(2)
	}
	m.emitDiff(out, m.sess.SetTopic(msg.Param(1), topic, ""))
}

func (m *Machine) handleTopicWhoTime(msg irc.Message, _ time.Time, out *Output) {
	channel := msg.Param(1)
	ch, ok := m.sess.Channel(channel)
	if !ok {
		return
	}
	setter := msg.Param(2)
	if src := irc.ParseSource(setter); src.Nick != "" {
		setter = src.Nick
	}
	m.emitDiff(out, m.sess.SetTopic(channel, ch.Topic, setter))
}

func (m *Machine) handleNames(msg irc.Message, _ time.Time, out *Output) {
	if len(msg.Params) < 4 {
		return
	}
	m.emitDiff(out, m.sess.SyncNames(msg.Param(2), strings.Fields(msg.Last())))
}

func (m *Machine) emitDiff(out *Output, d state.Diff) {
	if d.Changed() {
		out.emit(ChannelUpdated{Name: d.Channel, Diff: d})
	}
}

func (m *Machine) emitDiffs(out *Output, diffs []state.Diff) {
	for _, d := range diffs {
		m.emitDiff(out, d)
	}
}

func tail(params []string, from int) []string {
	if from >= len(params) {
		return nil
	}
	return params[from:]
}
