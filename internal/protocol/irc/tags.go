package irc

import "strings"

// Tag is one IRCv3 message tag. Valued distinguishes "key=" from a bare "key".
type Tag struct {
	Key    string
	Value  string
	Valued bool
}

// Tags keeps wire order so serialization is stable. Keys are unique.
type Tags []Tag

func (t Tags) Get(key string) (string, bool) {
	for _, tag := range t {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}

func (t Tags) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Set replaces an existing key in place or appends a new one.
func (t Tags) Set(key, value string) Tags {
	for i := range t {
		if t[i].Key == key {
			t[i].Value = value
			t[i].Valued = value != ""
			return t
		}
	}
	return append(t, Tag{Key: key, Value: value, Valued: value != ""})
}

// Map returns a detached copy keyed by tag name.
func (t Tags) Map() map[string]string {
	if len(t) == 0 {
		return nil
	}
	out := make(map[string]string, len(t))
	for _, tag := range t {
		out[tag.Key] = tag.Value
	}
	return out
}

func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	copy(out, t)
	return out
}

func parseTags(raw string) (Tags, bool) {
	var out Tags
	for _, seg := range strings.Split(raw, ";") {
		if seg == "" {
			continue
		}
		key, value, valued := strings.Cut(seg, "=")
		if !validTagKey(key) {
			return nil, false
		}
		value = UnescapeTagValue(value)
		replaced := false
		for i := range out {
			if out[i].Key == key {
				out[i].Value = value
				out[i].Valued = valued
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, Tag{Key: key, Value: value, Valued: valued})
		}
	}
	return out, true
}

func writeTags(b *strings.Builder, tags Tags) {
	b.WriteByte('@')
	for i, tag := range tags {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(tag.Key)
		if tag.Valued || tag.Value != "" {
			b.WriteByte('=')
			b.WriteString(EscapeTagValue(tag.Value))
		}
	}
}

func validTagKey(key string) bool {
	key = strings.TrimPrefix(key, "+")
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '/', c == '.':
		default:
			return false
		}
	}
	return true
}

// EscapeTagValue applies IRCv3 tag value escaping.
func EscapeTagValue(v string) string {
	if !strings.ContainsAny(v, "; \\\r\n") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v) + 4)
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case ';':
			b.WriteString(`\:`)
		case ' ':
			b.WriteString(`\s`)
		case '\\':
			b.WriteString(`\\`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

// UnescapeTagValue reverses EscapeTagValue. Unknown escapes drop the
// backslash and a trailing lone backslash is discarded.
func UnescapeTagValue(v string) string {
	if strings.IndexByte(v, '\\') < 0 {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(v) {
			break
		}
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}
