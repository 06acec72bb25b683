package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/danmuck/ircterm/internal/engine"
	"github.com/danmuck/ircterm/internal/state"
)

type lineKind int

const (
	lineChat lineKind = iota
	lineSelf
	lineSystem
	lineHighlight
	lineError
)

type entry struct {
	kind lineKind
	text string
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	selfStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	frameStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("241"))
)

func (e entry) render() string {
	switch e.kind {
	case lineSelf:
		return selfStyle.Render(e.text)
	case lineSystem:
		return systemStyle.Render(e.text)
	case lineHighlight:
		return highlightStyle.Render(e.text)
	case lineError:
		return errorStyle.Render(e.text)
	}
	return e.text
}

var timeNow = time.Now

func stamp(t time.Time) string {
	if t.IsZero() {
		t = timeNow()
	}
	return t.Format("15:04")
}

// formatEvent renders one event for the scrollback. ok is false for events
// that only update the header.
func formatEvent(ev engine.Event, nick string) (entry, bool) {
	switch e := ev.(type) {
	case engine.Connected:
		return entry{lineSystem, "Connected to " + e.Addr}, true
	case engine.Registered:
		return entry{lineSystem, fmt.Sprintf("Registered as %s on %s", e.Nick, e.Server)}, true
	case engine.MessageReceived:
		return formatMessage(e, nick), true
	case engine.ChannelJoined:
		text := "Joined " + e.Name
		if e.State.HasTopic {
			text += ": " + e.State.Topic
		}
		return entry{lineSystem, text}, true
	case engine.ChannelLeft:
		if e.Kicked {
			return entry{lineHighlight, fmt.Sprintf("Kicked from %s by %s (%s)", e.Name, e.By, e.Reason)}, true
		}
		return entry{lineSystem, fmt.Sprintf("Left %s (%s)", e.Name, e.Reason)}, true
	case engine.ChannelUpdated:
		return formatDiff(e.Name, e.Diff)
	case engine.NickChanged:
		return entry{lineSystem, fmt.Sprintf("%s is now known as %s", e.Old, e.New)}, true
	case engine.UserModeChanged:
		return entry{lineSystem, "User modes: " + e.Modes}, true
	case engine.Warning:
		return entry{lineSystem, "! " + e.Detail}, true
	case engine.Disconnected:
		text := "Disconnected: " + e.Reason
		if e.Final {
			text += " (final)"
		}
		return entry{lineError, text}, true
	case engine.Reconnecting:
		return entry{lineSystem, fmt.Sprintf("Reconnecting in %s (attempt %d)", e.Delay.Round(time.Millisecond), e.Attempt)}, true
	case engine.FatalError:
		return entry{lineError, fmt.Sprintf("Fatal %s: %v", e.Kind, e.Err)}, true
	case engine.RawUnhandled:
		if e.Message.IsNumeric() {
			return entry{lineSystem, e.Message.Last()}, true
		}
		return entry{lineSystem, e.Message.String()}, true
	}
	return entry{}, false
}

func formatMessage(e engine.MessageReceived, nick string) entry {
	ts := stamp(e.Time)
	var text string
	switch {
	case e.Action:
		text = fmt.Sprintf("%s * %s %s", ts, e.From, e.Text)
	case e.Notice:
		text = fmt.Sprintf("%s -%s- %s", ts, e.From, e.Text)
	case e.Private:
		text = fmt.Sprintf("%s *%s* %s", ts, e.From, e.Text)
	default:
		text = fmt.Sprintf("%s %s <%s> %s", ts, e.Target, e.From, e.Text)
	}
	kind := lineChat
	if e.Service || mentions(e.Text, nick) {
		kind = lineHighlight
	}
	return entry{kind, text}
}

func formatDiff(channel string, d state.Diff) (entry, bool) {
	switch d.Kind {
	case state.DiffMemberJoined:
		return entry{lineSystem, fmt.Sprintf("%s joined %s", d.Nick, channel)}, true
	case state.DiffMemberLeft:
		return entry{lineSystem, fmt.Sprintf("%s left %s", d.Nick, channel)}, true
	case state.DiffTopic:
		if d.TopicBy != "" {
			return entry{lineSystem, fmt.Sprintf("Topic for %s set by %s: %s", channel, d.TopicBy, d.Topic)}, true
		}
		return entry{lineSystem, fmt.Sprintf("Topic for %s: %s", channel, d.Topic)}, true
	case state.DiffModes:
		return entry{lineSystem, fmt.Sprintf("Mode %s %s", channel, d.Modes)}, true
	}
	return entry{}, false
}

func mentions(text, nick string) bool {
	return nick != "" && strings.Contains(strings.ToLower(text), strings.ToLower(nick))
}
