package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/danmuck/ircterm/internal/engine"
	"github.com/muesli/reflow/wordwrap"
)

const maxScrollback = 1000

// Submitter accepts commands for the connection. *supervisor.Supervisor
// satisfies it.
type Submitter interface {
	Submit(cmd engine.Command) error
}

type eventMsg struct{ ev engine.Event }

type eventsClosedMsg struct{}

// waitForEvent delivers the next event to Update.
func waitForEvent(events <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev}
	}
}

// Model is the chat window: a scrollback viewport over an input line.
type Model struct {
	submit Submitter
	events <-chan engine.Event

	viewport viewport.Model
	input    textinput.Model
	ready    bool
	width    int
	height   int

	lines    []entry
	active   string
	joined   []string
	nick     string
	server   string
	online   bool
	quitting bool

	completions []string
	completeIdx int
	completeFor string
}

func New(submit Submitter, events <-chan engine.Event) *Model {
	in := textinput.New()
	in.Placeholder = "Type a message or /help"
	in.Prompt = "> "
	in.CharLimit = 0
	in.Focus()
	return &Model{
		submit: submit,
		events: events,
		input:  in,
		lines:  []entry{{lineSystem, "Welcome to ircterm"}},
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case eventMsg:
		m.handleEvent(msg.ev)
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.online = false
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.quitting {
				return m, tea.Quit
			}
			m.quit("")
			return m, nil
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			m.resetCompletion()
			m.handleInput(line)
			return m, nil
		case tea.KeyTab:
			m.complete()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		m.resetCompletion()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	if !m.ready {
		return "starting..."
	}
	return strings.Join([]string{
		titleStyle.Render(m.title()),
		frameStyle.Render(m.viewport.View()),
		m.input.View(),
		statusStyle.Render(m.status()),
	}, "\n")
}

// Active is the conversation plain text is sent to.
func (m *Model) Active() string { return m.active }

func (m *Model) title() string {
	server := m.server
	if server == "" {
		server = "Not connected"
	}
	channel := m.active
	if channel == "" {
		channel = "None"
	}
	return fmt.Sprintf("Server: %s - Channel: %s", server, channel)
}

func (m *Model) status() string {
	state := "offline"
	if m.online {
		state = "online"
	}
	parts := []string{state}
	if m.nick != "" {
		parts = append(parts, m.nick)
	}
	if len(m.joined) > 0 {
		parts = append(parts, strings.Join(m.joined, " "))
	}
	return strings.Join(parts, " | ")
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	// title, input and status lines plus the frame border
	vh := height - 5
	if vh < 1 {
		vh = 1
	}
	vw := width - 2
	if vw < 1 {
		vw = 1
	}
	if !m.ready {
		m.viewport = viewport.New(vw, vh)
		m.ready = true
	} else {
		m.viewport.Width = vw
		m.viewport.Height = vh
	}
	if iw := width - len(m.input.Prompt) - 1; iw > 0 {
		m.input.Width = iw
	}
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	rendered := make([]string, len(m.lines))
	for i, l := range m.lines {
		rendered[i] = wordwrap.String(l.render(), m.viewport.Width)
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	m.viewport.GotoBottom()
}

func (m *Model) appendLine(kind lineKind, text string) {
	m.lines = append(m.lines, entry{kind, text})
	if over := len(m.lines) - maxScrollback; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}
	m.refresh()
}

func (m *Model) handleEvent(ev engine.Event) {
	switch e := ev.(type) {
	case engine.Connected:
		m.online = true
	case engine.Registered:
		m.nick, m.server = e.Nick, e.Server
	case engine.NickChanged:
		if e.Old == m.nick || m.nick == "" {
			m.nick = e.New
		}
	case engine.ChannelJoined:
		m.addJoined(e.Name)
		m.active = e.Name
	case engine.ChannelLeft:
		m.removeJoined(e.Name)
		if strings.EqualFold(m.active, e.Name) {
			m.active = ""
			if len(m.joined) > 0 {
				m.active = m.joined[len(m.joined)-1]
			}
		}
	case engine.Disconnected:
		m.online = false
		m.server = ""
	}
	if line, ok := formatEvent(ev, m.nick); ok {
		m.appendLine(line.kind, line.text)
	}
}

func (m *Model) handleInput(line string) {
	act, err := ParseInput(line, m.active)
	if err != nil {
		m.appendLine(lineError, err.Error())
		return
	}
	switch act.Local {
	case LocalClear:
		m.lines = m.lines[:0]
		m.appendLine(lineSystem, "Chat cleared.")
		return
	case LocalHelp:
		for _, h := range HelpLines() {
			m.appendLine(lineSystem, h)
		}
		return
	case LocalQuery:
		m.active = act.Target
		m.appendLine(lineSystem, "Talking to "+act.Target)
		return
	}
	if act.Command == nil {
		return
	}
	if q, ok := act.Command.(engine.Quit); ok {
		m.quit(q.Reason)
		return
	}
	if err := m.submit.Submit(act.Command); err != nil {
		m.appendLine(lineError, "send failed: "+err.Error())
		return
	}
	m.echo(act.Command)
}

// echo shows our own outgoing text; the server does not reflect it back.
func (m *Model) echo(cmd engine.Command) {
	ts := stamp(timeNow())
	switch c := cmd.(type) {
	case engine.SendMessage:
		if isChannelName(c.Target) {
			m.appendLine(lineSelf, fmt.Sprintf("%s %s <%s> %s", ts, c.Target, m.nick, c.Text))
		} else {
			m.appendLine(lineSelf, fmt.Sprintf("%s -> *%s* %s", ts, c.Target, c.Text))
		}
	case engine.Notice:
		m.appendLine(lineSelf, fmt.Sprintf("%s -> -%s- %s", ts, c.Target, c.Text))
	case engine.Action:
		m.appendLine(lineSelf, fmt.Sprintf("%s * %s %s", ts, m.nick, c.Text))
	case engine.Join:
		m.appendLine(lineSystem, "Joining channel: "+c.Channel)
	case engine.Connect:
		m.appendLine(lineSystem, "Connecting to "+c.Host)
	}
}

func (m *Model) quit(reason string) {
	if m.quitting {
		return
	}
	m.quitting = true
	m.appendLine(lineSystem, "Quitting...")
	if err := m.submit.Submit(engine.Quit{Reason: reason}); err != nil {
		m.appendLine(lineError, "quit: "+err.Error())
	}
}

func (m *Model) addJoined(name string) {
	for _, j := range m.joined {
		if strings.EqualFold(j, name) {
			return
		}
	}
	m.joined = append(m.joined, name)
}

func (m *Model) removeJoined(name string) {
	for i, j := range m.joined {
		if strings.EqualFold(j, name) {
			m.joined = append(m.joined[:i], m.joined[i+1:]...)
			return
		}
	}
}

// complete cycles through command names matching the typed prefix.
func (m *Model) complete() {
	value := m.input.Value()
	if value != m.completeFor || len(m.completions) == 0 {
		m.completions = Completions(value)
		m.completeIdx = 0
	}
	if len(m.completions) == 0 {
		return
	}
	next := m.completions[m.completeIdx]
	m.completeIdx = (m.completeIdx + 1) % len(m.completions)
	m.input.SetValue(next)
	m.input.CursorEnd()
	m.completeFor = next
}

func (m *Model) resetCompletion() {
	m.completions = nil
	m.completeIdx = 0
	m.completeFor = ""
}
