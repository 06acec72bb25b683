package state

import "strings"

// Support is the subset of ISUPPORT the session interprets.
type Support struct {
	PrefixModes   string
	PrefixSymbols string
	ListModes     string
	AlwaysArg     string
	SetArg        string
	NoArg         string
	ChanTypes     string
	CaseMapping   string
}

func DefaultSupport() Support {
	return Support{
		PrefixModes:   "ov",
		PrefixSymbols: "@+",
		ListModes:     "beI",
		AlwaysArg:     "k",
		SetArg:        "l",
		NoArg:         "imnpst",
		ChanTypes:     "#&",
		CaseMapping:   "rfc1459",
	}
}

// apply folds one ISUPPORT key into s. removed reports a "-KEY" token.
func (s *Support) apply(key, value string, removed bool) {
	d := DefaultSupport()
	switch key {
	case "PREFIX":
		if removed {
			s.PrefixModes, s.PrefixSymbols = d.PrefixModes, d.PrefixSymbols
			return
		}
		if modes, symbols, ok := parsePrefix(value); ok {
			s.PrefixModes, s.PrefixSymbols = modes, symbols
		}
	case "CHANMODES":
		if removed {
			s.ListModes, s.AlwaysArg, s.SetArg, s.NoArg = d.ListModes, d.AlwaysArg, d.SetArg, d.NoArg
			return
		}
		parts := strings.Split(value, ",")
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		s.ListModes, s.AlwaysArg, s.SetArg, s.NoArg = parts[0], parts[1], parts[2], parts[3]
	case "CHANTYPES":
		if removed {
			s.ChanTypes = d.ChanTypes
			return
		}
		s.ChanTypes = value
	case "CASEMAPPING":
		if removed || value == "" {
			s.CaseMapping = d.CaseMapping
			return
		}
		s.CaseMapping = strings.ToLower(value)
	}
}

// parsePrefix splits "(ov)@+" into its mode letters and symbols.
func parsePrefix(v string) (string, string, bool) {
	if v == "" {
		return "", "", true
	}
	if !strings.HasPrefix(v, "(") {
		return "", "", false
	}
	end := strings.IndexByte(v, ')')
	if end < 0 {
		return "", "", false
	}
	modes, symbols := v[1:end], v[end+1:]
	if len(modes) != len(symbols) {
		return "", "", false
	}
	return modes, symbols, true
}

// IsChannel reports whether name starts with a channel type character.
func (s Support) IsChannel(name string) bool {
	return name != "" && strings.IndexByte(s.ChanTypes, name[0]) >= 0
}

// Fold lowercases name under the server casemapping.
func (s Support) Fold(name string) string {
	b := []byte(name)
	for i, c := range b {
		switch {
		case c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A')
		case s.CaseMapping == "ascii":
		case c == '[':
			b[i] = '{'
		case c == ']':
			b[i] = '}'
		case c == '\\':
			b[i] = '|'
		case c == '~' && s.CaseMapping == "rfc1459":
			b[i] = '^'
		}
	}
	return string(b)
}

// ModeForSymbol maps a NAMES prefix symbol ('@') to its mode letter ('o').
func (s Support) ModeForSymbol(sym byte) (byte, bool) {
	i := strings.IndexByte(s.PrefixSymbols, sym)
	if i < 0 || i >= len(s.PrefixModes) {
		return 0, false
	}
	return s.PrefixModes[i], true
}

// SymbolForMode maps a prefix mode letter to its NAMES symbol.
func (s Support) SymbolForMode(mode byte) (byte, bool) {
	i := strings.IndexByte(s.PrefixModes, mode)
	if i < 0 || i >= len(s.PrefixSymbols) {
		return 0, false
	}
	return s.PrefixSymbols[i], true
}

func (s Support) isPrefixMode(c byte) bool {
	return strings.IndexByte(s.PrefixModes, c) >= 0
}

// takesArg reports whether mode c consumes an argument in the given direction.
func (s Support) takesArg(c byte, add bool) bool {
	switch {
	case s.isPrefixMode(c):
		return true
	case strings.IndexByte(s.ListModes, c) >= 0:
		return true
	case strings.IndexByte(s.AlwaysArg, c) >= 0:
		return true
	case strings.IndexByte(s.SetArg, c) >= 0:
		return add
	default:
		return false
	}
}

// rankModes orders member mode letters by PREFIX rank and drops duplicates.
func (s Support) rankModes(modes string) string {
	var b strings.Builder
	for i := 0; i < len(s.PrefixModes); i++ {
		if strings.IndexByte(modes, s.PrefixModes[i]) >= 0 {
			b.WriteByte(s.PrefixModes[i])
		}
	}
	for i := 0; i < len(modes); i++ {
		if !s.isPrefixMode(modes[i]) && strings.IndexByte(b.String(), modes[i]) < 0 {
			b.WriteByte(modes[i])
		}
	}
	return b.String()
}
