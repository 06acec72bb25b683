package tui

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/danmuck/ircterm/internal/engine"
)

var (
	ErrUsage          = errors.New("usage")
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoTarget       = errors.New("join a channel first with /join #channel")
)

const nickServ = "NickServ"

// Local is input handled by the terminal without touching the connection.
type Local int

const (
	LocalNone Local = iota
	LocalClear
	LocalHelp
	LocalQuery
)

// Action is one parsed input line. Target, when set, becomes the active
// conversation.
type Action struct {
	Command engine.Command
	Local   Local
	Target  string
}

type commandHelp struct {
	name  string
	usage string
	desc  string
}

var commandTable = []commandHelp{
	{"/clear", "/clear", "Clear the chat window"},
	{"/connect", "/connect host [port] [tls]", "Connect or switch to a server"},
	{"/exit", "/exit", "Same as /quit"},
	{"/help", "/help", "Display all available commands"},
	{"/join", "/join #channel [key]", "Join a channel"},
	{"/me", "/me action", "Send an action to the active target"},
	{"/msg", "/msg target message", "Send a private message"},
	{"/nick", "/nick newnick", "Change nickname"},
	{"/nickserv", "/nickserv command", "Send a command to NickServ"},
	{"/notice", "/notice target message", "Send a notice"},
	{"/part", "/part [#channel] [reason]", "Leave a channel"},
	{"/query", "/query target", "Switch the active target"},
	{"/quit", "/quit [reason]", "Disconnect and exit"},
	{"/raw", "/raw LINE", "Send a raw protocol line"},
}

// HelpLines renders the command table, one command per line.
func HelpLines() []string {
	out := make([]string, 0, len(commandTable)+1)
	out = append(out, "---- Command Help ----")
	for _, c := range commandTable {
		out = append(out, fmt.Sprintf("%-28s %s", c.usage, c.desc))
	}
	return out
}

// Completions lists command names starting with prefix, sorted.
func Completions(prefix string) []string {
	if !strings.HasPrefix(prefix, "/") {
		return nil
	}
	var out []string
	for _, c := range commandTable {
		if strings.HasPrefix(c.name, prefix) {
			out = append(out, c.name)
		}
	}
	sort.Strings(out)
	return out
}

func usage(name string) error {
	for _, c := range commandTable {
		if c.name == name {
			return fmt.Errorf("%w: %s", ErrUsage, c.usage)
		}
	}
	return fmt.Errorf("%w: %s", ErrUsage, name)
}

// ParseInput turns one line typed by the user into an Action. Plain text
// goes to active.
func ParseInput(line, active string) (Action, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Action{}, nil
	}
	if !strings.HasPrefix(line, "/") {
		if active == "" {
			return Action{}, ErrNoTarget
		}
		return Action{Command: engine.SendMessage{Target: active, Text: line}}, nil
	}

	name, rest, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	rest = strings.TrimSpace(rest)

	switch name {
	case "/join":
		fields := strings.Fields(rest)
		if len(fields) == 0 || len(fields) > 2 {
			return Action{}, usage(name)
		}
		join := engine.Join{Channel: fields[0]}
		if len(fields) == 2 {
			join.Key = fields[1]
		}
		return Action{Command: join, Target: join.Channel}, nil

	case "/part":
		channel, reason := active, rest
		if first, tail, _ := strings.Cut(rest, " "); isChannelName(first) {
			channel, reason = first, strings.TrimSpace(tail)
		}
		if channel == "" || !isChannelName(channel) {
			return Action{}, usage(name)
		}
		return Action{Command: engine.Part{Channel: channel, Reason: reason}}, nil

	case "/msg", "/notice":
		target, text, ok := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if !ok || target == "" || text == "" {
			return Action{}, usage(name)
		}
		if name == "/notice" {
			return Action{Command: engine.Notice{Target: target, Text: text}}, nil
		}
		return Action{Command: engine.SendMessage{Target: target, Text: text}}, nil

	case "/me":
		if active == "" {
			return Action{}, ErrNoTarget
		}
		if rest == "" {
			return Action{}, usage(name)
		}
		return Action{Command: engine.Action{Target: active, Text: rest}}, nil

	case "/nick":
		fields := strings.Fields(rest)
		if len(fields) != 1 {
			return Action{}, usage(name)
		}
		return Action{Command: engine.Nick{Nick: fields[0]}}, nil

	case "/nickserv", "/ns":
		if rest == "" {
			return Action{}, usage("/nickserv")
		}
		return Action{Command: engine.SendMessage{Target: nickServ, Text: rest}}, nil

	case "/raw", "/quote":
		if rest == "" {
			return Action{}, usage("/raw")
		}
		return Action{Command: engine.SendRaw{Line: rest}}, nil

	case "/quit", "/exit":
		return Action{Command: engine.Quit{Reason: rest}}, nil

	case "/connect", "/server":
		return parseConnect(rest)

	case "/query":
		fields := strings.Fields(rest)
		if len(fields) != 1 {
			return Action{}, usage(name)
		}
		return Action{Local: LocalQuery, Target: fields[0]}, nil

	case "/clear":
		return Action{Local: LocalClear}, nil

	case "/help":
		return Action{Local: LocalHelp}, nil
	}
	return Action{}, fmt.Errorf("%w: %s (try /help)", ErrUnknownCommand, name)
}

func parseConnect(rest string) (Action, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 || len(fields) > 3 {
		return Action{}, usage("/connect")
	}
	cmd := engine.Connect{Host: fields[0]}
	for _, f := range fields[1:] {
		switch strings.ToLower(f) {
		case "tls", "+tls", "ssl":
			cmd.TLS = true
			continue
		}
		port, err := strconv.Atoi(strings.TrimPrefix(f, "+"))
		if err != nil || port <= 0 || port > 65535 {
			return Action{}, usage("/connect")
		}
		if strings.HasPrefix(f, "+") {
			cmd.TLS = true
		}
		cmd.Port = port
	}
	return Action{Command: cmd}, nil
}

func isChannelName(s string) bool {
	return s != "" && strings.ContainsRune("#&+!", rune(s[0]))
}
