package engine

import (
	"strings"
	"time"

	"github.com/danmuck/ircterm/internal/protocol/irc"
)

const ctcpDelim = "\x01"

type ctcp struct {
	Verb string
	Args string
}

// parseCTCP recognizes a \x01VERB args\x01 payload; the closing delimiter is optional.
func parseCTCP(text string) (ctcp, bool) {
	if !strings.HasPrefix(text, ctcpDelim) || len(text) < 2 {
		return ctcp{}, false
	}
	body := strings.TrimSuffix(text[1:], ctcpDelim)
	verb, args, _ := strings.Cut(body, " ")
	if verb == "" {
		return ctcp{}, false
	}
	return ctcp{Verb: strings.ToUpper(verb), Args: args}, true
}

func ctcpWrap(verb, args string) string {
	if args == "" {
		return ctcpDelim + verb + ctcpDelim
	}
	return ctcpDelim + verb + " " + args + ctcpDelim
}

func (m *Machine) handleMessage(msg irc.Message, now time.Time, out *Output) {
	if len(msg.Params) < 2 {
		out.emit(RawUnhandled{Message: msg.Clone()})
		return
	}
	src := msg.Source()
	from := src.Nick
	if from == "" {
		from = src.Name
	}
	target, text := msg.Param(0), msg.Last()
	ev := MessageReceived{
		From:    from,
		Source:  src,
		Target:  target,
		Text:    text,
		Tags:    msg.Tags.Clone(),
		Time:    messageTime(msg, now),
		Private: !m.sess.IsChannel(target),
		Notice:  msg.Command == irc.CmdNotice,
	}

	if c, ok := parseCTCP(text); ok {
		switch {
		case c.Verb == "ACTION":
			ev.Action = true
			ev.Text = c.Args
		case ev.Notice:
			ev.Text = strings.TrimSpace(c.Verb + " " + c.Args)
		default:
			m.replyCTCP(msg, src, c, now, out)
			return
		}
	}

	ev.Service = strings.EqualFold(src.Nick, "NickServ") && m.sess.IsSelf(target)
	out.emit(ev)
}

func (m *Machine) replyCTCP(msg irc.Message, src irc.Source, c ctcp, now time.Time, out *Output) {
	if src.Nick == "" {
		return
	}
	var reply string
	switch c.Verb {
	case "VERSION":
		reply = m.cfg.CTCPVersion
	case "PING":
		reply = c.Args
	case "TIME":
		reply = now.Format(time.RFC1123Z)
	case "CLIENTINFO":
		reply = "ACTION CLIENTINFO PING TIME VERSION"
	default:
		out.emit(RawUnhandled{Message: msg.Clone()})
		return
	}
	m.enqueue(out, irc.NewTrailing(irc.CmdNotice, src.Nick, ctcpWrap(c.Verb, reply)))
}

// messageTime prefers the IRCv3 server-time tag.
func messageTime(msg irc.Message, now time.Time) time.Time {
	if v, ok := msg.Tags.Get("time"); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return now
}
