package state

import "strings"

// ModeChange is one +/- mode letter with its argument, if any.
type ModeChange struct {
	Add  bool
	Mode byte
	Arg  string
}

func (m ModeChange) String() string {
	sign := "-"
	if m.Add {
		sign = "+"
	}
	if m.Arg == "" {
		return sign + string(m.Mode)
	}
	return sign + string(m.Mode) + " " + m.Arg
}

// ParseModes expands a mode string and its arguments using the server's
// CHANMODES/PREFIX arity. Missing arguments are left empty.
func ParseModes(s Support, modes string, args []string) []ModeChange {
	var out []ModeChange
	add := true
	for i := 0; i < len(modes); i++ {
		c := modes[i]
		switch c {
		case '+':
			add = true
			continue
		case '-':
			add = false
			continue
		}
		change := ModeChange{Add: add, Mode: c}
		if s.takesArg(c, add) && len(args) > 0 {
			change.Arg, args = args[0], args[1:]
		}
		out = append(out, change)
	}
	return out
}

// applyUserModes returns current with +/- letters applied.
func applyUserModes(current, delta string) string {
	add := true
	for i := 0; i < len(delta); i++ {
		c := delta[i]
		switch {
		case c == '+':
			add = true
		case c == '-':
			add = false
		case add && strings.IndexByte(current, c) < 0:
			current += string(c)
		case !add:
			current = strings.ReplaceAll(current, string(c), "")
		}
	}
	return current
}
