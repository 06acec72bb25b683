package irc

import (
	"fmt"
	"strings"
)

const (
	// MaxLineLength is the classic line bound including CRLF.
	MaxLineLength = 512
	// MaxTagsLength bounds the tag section including '@' and the trailing space.
	MaxTagsLength = 8191
	// MaxParams is the protocol ceiling: 14 middle parameters plus one trailing.
	MaxParams = 15
)

// Message is the structured form of one protocol line.
type Message struct {
	Tags    Tags
	Prefix  string
	Command string
	Params  []string

	// Trailing records that the last parameter was introduced by ':' on the
	// wire, even where the grammar would not require it.
	Trailing bool

	Malformed bool
	Reason    string
	Raw       string

	// layout is the canonical rendering at parse time when it differs from
	// Raw. While the fields still render to it, String returns Raw so extra
	// separators and empty tag segments survive a round trip.
	layout string
}

// NewMessage builds an outbound message. The last parameter is sent as a
// trailing parameter when the grammar requires it.
func NewMessage(command string, params ...string) Message {
	return Message{Command: command, Params: params}
}

// NewTrailing builds an outbound message whose last parameter is always
// introduced by ':'.
func NewTrailing(command string, params ...string) Message {
	return Message{Command: command, Params: params, Trailing: len(params) > 0}
}

// Parse parses one line without its CRLF terminator. It never fails.
func Parse(line []byte) Message {
	return ParseString(string(line))
}

func ParseString(line string) Message {
	m := Message{Raw: line}
	if line == "" {
		return m.malformed("empty line")
	}
	if strings.ContainsAny(line, "\r\n") {
		return m.malformed("embedded line break")
	}

	rest := line
	if rest[0] == '@' {
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			return m.malformed("tags without command")
		}
		tags, ok := parseTags(rest[1:end])
		if !ok {
			return m.malformed("invalid tag key")
		}
		m.Tags = tags
		rest = strings.TrimLeft(rest[end+1:], " ")
	}

	if strings.HasPrefix(rest, ":") {
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			return m.malformed("prefix without command")
		}
		m.Prefix = rest[1:end]
		if m.Prefix == "" {
			return m.malformed("empty prefix")
		}
		rest = strings.TrimLeft(rest[end+1:], " ")
	}

	end := strings.IndexByte(rest, ' ')
	if end < 0 {
		m.Command, rest = rest, ""
	} else {
		m.Command, rest = rest[:end], rest[end+1:]
	}
	if m.Command == "" {
		return m.malformed("missing command")
	}
	if !validCommand(m.Command) {
		return m.malformed("invalid command")
	}

	for rest != "" {
		if rest[0] == ' ' {
			rest = rest[1:]
			continue
		}
		if rest[0] == ':' {
			m.Params = append(m.Params, rest[1:])
			m.Trailing = true
			break
		}
		if len(m.Params) == MaxParams-1 {
			m.Params = append(m.Params, rest)
			break
		}
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			m.Params = append(m.Params, rest)
			break
		}
		m.Params = append(m.Params, rest[:end])
		rest = rest[end+1:]
	}
	if canonical := m.render(); canonical != line {
		m.layout = canonical
	}
	return m
}

func (m Message) malformed(reason string) Message {
	m.Malformed = true
	m.Reason = reason
	m.Tags = nil
	m.Prefix = ""
	m.Command = ""
	m.Params = nil
	m.Trailing = false
	m.layout = ""
	return m
}

// Serialize renders the message without CRLF. Malformed messages render
// their original bytes.
func Serialize(m Message) []byte {
	return []byte(m.String())
}

func (m Message) String() string {
	if m.Malformed {
		return m.Raw
	}
	s := m.render()
	if m.layout != "" && s == m.layout {
		return m.Raw
	}
	return s
}

func (m Message) render() string {
	var b strings.Builder
	if len(m.Tags) > 0 {
		writeTags(&b, m.Tags)
		b.WriteByte(' ')
	}
	if m.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix)
		b.WriteByte(' ')
	}
	b.WriteString(m.Command)
	last := len(m.Params) - 1
	for i, p := range m.Params {
		b.WriteByte(' ')
		if i == last && m.needsColon(i, p) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
	return b.String()
}

func (m Message) needsColon(i int, p string) bool {
	if m.Trailing {
		return true
	}
	if i == MaxParams-1 {
		// a bare 15th parameter runs to end of line as-is
		return p == "" || p[0] == ':'
	}
	return p == "" || p[0] == ':' || strings.IndexByte(p, ' ') >= 0
}

// Line renders the message with its CRLF terminator.
func (m Message) Line() []byte {
	return append(Serialize(m), '\r', '\n')
}

// Validate reports whether the message can be sent on the wire.
func (m Message) Validate() error {
	if m.Malformed {
		return ErrMalformedOutput
	}
	if m.Command == "" {
		return ErrEmptyCommand
	}
	if !validCommand(m.Command) {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, m.Command)
	}
	if len(m.Params) > MaxParams {
		return fmt.Errorf("%w: %d", ErrTooManyParams, len(m.Params))
	}
	for i, p := range m.Params {
		if strings.ContainsAny(p, "\r\n\x00") {
			return ErrLineBreak
		}
		if i < len(m.Params)-1 && (p == "" || p[0] == ':' || strings.IndexByte(p, ' ') >= 0) {
			return fmt.Errorf("%w: index %d %q", ErrInvalidParam, i, p)
		}
	}
	if strings.ContainsAny(m.Prefix, " \r\n\x00") {
		return ErrLineBreak
	}
	for _, tag := range m.Tags {
		if !validTagKey(tag.Key) {
			return fmt.Errorf("%w: %q", ErrInvalidTagKey, tag.Key)
		}
	}

	body := m
	body.Tags = nil
	if len(body.String())+2 > MaxLineLength {
		return ErrLineTooLong
	}
	if len(m.Tags) > 0 {
		var b strings.Builder
		writeTags(&b, m.Tags)
		if b.Len()+1 > MaxTagsLength {
			return ErrLineTooLong
		}
	}
	return nil
}

// Param returns parameter i or "" when absent.
func (m Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Last returns the final parameter or "" when there are none.
func (m Message) Last() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// IsNumeric reports whether the command is a three-digit reply code.
func (m Message) IsNumeric() bool {
	return len(m.Command) == 3 && isDigit(m.Command[0]) && isDigit(m.Command[1]) && isDigit(m.Command[2])
}

// Source parses the prefix.
func (m Message) Source() Source {
	return ParseSource(m.Prefix)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (m Message) Clone() Message {
	out := m
	out.Tags = m.Tags.Clone()
	if m.Params != nil {
		out.Params = make([]string, len(m.Params))
		copy(out.Params, m.Params)
	}
	return out
}

func validCommand(cmd string) bool {
	if len(cmd) == 3 && isDigit(cmd[0]) && isDigit(cmd[1]) && isDigit(cmd[2]) {
		return true
	}
	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return cmd != ""
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
