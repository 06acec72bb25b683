package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/danmuck/ircterm/internal/engine"
	"github.com/danmuck/ircterm/internal/testutil/testlog"
)

type recordingSubmitter struct {
	cmds []engine.Command
}

func (r *recordingSubmitter) Submit(cmd engine.Command) error {
	r.cmds = append(r.cmds, cmd)
	return nil
}

func newTestModel(t *testing.T) (*Model, *recordingSubmitter) {
	t.Helper()
	sub := &recordingSubmitter{}
	m := New(sub, make(chan engine.Event))
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, sub
}

func typeLine(m *Model, line string) {
	m.input.SetValue(line)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func lastLine(m *Model) string {
	return m.lines[len(m.lines)-1].text
}

func TestModelTracksChannelsAndNick(t *testing.T) {
	testlog.Start(t)
	m, _ := newTestModel(t)

	m.Update(eventMsg{engine.Connected{Conn: "c1", Addr: "irc://irc.test:6667"}})
	m.Update(eventMsg{engine.Registered{Nick: "alice", Server: "irc.test"}})
	m.Update(eventMsg{engine.ChannelJoined{Name: "#go"}})
	m.Update(eventMsg{engine.ChannelJoined{Name: "#irc"}})
	if m.Active() != "#irc" || !m.online || m.nick != "alice" {
		t.Fatalf("unexpected model state: active=%q online=%v nick=%q", m.Active(), m.online, m.nick)
	}

	m.Update(eventMsg{engine.ChannelLeft{Name: "#irc", Reason: "bye"}})
	if m.Active() != "#go" {
		t.Fatalf("active should fall back to remaining channel, got %q", m.Active())
	}

	m.Update(eventMsg{engine.NickChanged{Old: "alice", New: "alice_"}})
	if m.nick != "alice_" {
		t.Fatalf("nick not updated: %q", m.nick)
	}
	if !strings.Contains(m.View(), "Channel: #go") {
		t.Fatalf("title should show active channel:\n%s", m.View())
	}

	m.Update(eventMsg{engine.Disconnected{Reason: "read: EOF"}})
	if m.online || !strings.Contains(lastLine(m), "Disconnected: read: EOF") {
		t.Fatalf("disconnect not rendered: %q", lastLine(m))
	}
}

func TestModelSubmitsTypedInput(t *testing.T) {
	testlog.Start(t)
	m, sub := newTestModel(t)
	m.Update(eventMsg{engine.Registered{Nick: "alice", Server: "irc.test"}})

	typeLine(m, "hello")
	if len(sub.cmds) != 0 || !strings.Contains(lastLine(m), ErrNoTarget.Error()) {
		t.Fatalf("plain text without a target should error: %v %q", sub.cmds, lastLine(m))
	}

	typeLine(m, "/join #go")
	m.Update(eventMsg{engine.ChannelJoined{Name: "#go"}})
	typeLine(m, "hi all")
	typeLine(m, "/me waves")

	if len(sub.cmds) != 3 {
		t.Fatalf("unexpected commands: %#v", sub.cmds)
	}
	if msg, ok := sub.cmds[1].(engine.SendMessage); !ok || msg.Target != "#go" || msg.Text != "hi all" {
		t.Fatalf("unexpected message command: %#v", sub.cmds[1])
	}
	if !strings.Contains(lastLine(m), "* alice waves") {
		t.Fatalf("action not echoed: %q", lastLine(m))
	}
	if m.input.Value() != "" {
		t.Fatalf("input should be cleared after enter")
	}
}

func TestModelQuitWaitsForEventsToClose(t *testing.T) {
	testlog.Start(t)
	m, sub := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd != nil || !m.quitting {
		t.Fatalf("first escape should request quit without exiting")
	}
	if q, ok := sub.cmds[0].(engine.Quit); !ok || q.Reason != "" {
		t.Fatalf("expected Quit command, got %#v", sub.cmds)
	}

	typeLine(m, "/quit again")
	if len(sub.cmds) != 1 {
		t.Fatalf("quit should be submitted once: %#v", sub.cmds)
	}

	_, cmd = m.Update(eventsClosedMsg{})
	if cmd == nil {
		t.Fatalf("closed event channel should quit the program")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestModelHighlightsServiceAndMentions(t *testing.T) {
	testlog.Start(t)
	m, _ := newTestModel(t)
	m.Update(eventMsg{engine.Registered{Nick: "alice", Server: "irc.test"}})
	at := time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC)

	m.Update(eventMsg{engine.MessageReceived{From: "NickServ", Target: "alice", Text: "identify please", Private: true, Notice: true, Service: true, Time: at}})
	if got := m.lines[len(m.lines)-1]; got.kind != lineHighlight || got.text != "15:04 -NickServ- identify please" {
		t.Fatalf("unexpected service line: %+v", got)
	}

	m.Update(eventMsg{engine.MessageReceived{From: "bob", Target: "#go", Text: "ping Alice", Time: at}})
	if got := m.lines[len(m.lines)-1]; got.kind != lineHighlight || got.text != "15:04 #go <bob> ping Alice" {
		t.Fatalf("unexpected mention line: %+v", got)
	}

	m.Update(eventMsg{engine.MessageReceived{From: "bob", Target: "#go", Text: "plain", Time: at}})
	if got := m.lines[len(m.lines)-1]; got.kind != lineChat {
		t.Fatalf("plain message should not highlight: %+v", got)
	}
}

func TestModelScrollbackAndLocalCommands(t *testing.T) {
	testlog.Start(t)
	m, sub := newTestModel(t)
	for i := 0; i < maxScrollback+50; i++ {
		m.appendLine(lineChat, "line")
	}
	if len(m.lines) != maxScrollback {
		t.Fatalf("scrollback not capped: %d", len(m.lines))
	}

	typeLine(m, "/clear")
	if len(m.lines) != 1 || m.lines[0].text != "Chat cleared." {
		t.Fatalf("clear failed: %+v", m.lines)
	}
	typeLine(m, "/help")
	if len(m.lines) != 1+len(HelpLines()) {
		t.Fatalf("help not rendered: %d lines", len(m.lines))
	}
	typeLine(m, "/query bob")
	if m.Active() != "bob" || len(sub.cmds) != 0 {
		t.Fatalf("query should switch target locally: %q %#v", m.Active(), sub.cmds)
	}
}

func TestModelTabCompletionCycles(t *testing.T) {
	testlog.Start(t)
	m, _ := newTestModel(t)
	m.input.SetValue("/n")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.input.Value() != "/nick" {
		t.Fatalf("first completion: %q", m.input.Value())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.input.Value() != "/nickserv" {
		t.Fatalf("second completion: %q", m.input.Value())
	}
}

func TestModelWrapsLongLines(t *testing.T) {
	testlog.Start(t)
	m, _ := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 22, Height: 20})
	m.appendLine(lineChat, "alpha beta gamma delta epsilon zeta")
	view := m.viewport.View()
	alpha, zeta := -1, -1
	for i, line := range strings.Split(view, "\n") {
		if strings.Contains(line, "alpha") {
			alpha = i
		}
		if strings.Contains(line, "zeta") {
			zeta = i
		}
	}
	if alpha < 0 || zeta <= alpha {
		t.Fatalf("long line should wrap inside the viewport:\n%s", view)
	}
}
