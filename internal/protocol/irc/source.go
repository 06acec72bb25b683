package irc

import "strings"

// Source is the parsed message prefix: either a server name or nick!user@host.
type Source struct {
	Name   string
	Nick   string
	User   string
	Host   string
	Server bool
}

// ParseSource splits a prefix. A bare token containing '.' is a server name;
// any other bare token is a nickname.
func ParseSource(prefix string) Source {
	s := Source{Name: prefix}
	if prefix == "" {
		return s
	}
	rest := prefix
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		s.Host = rest[at+1:]
		rest = rest[:at]
	}
	if bang := strings.IndexByte(rest, '!'); bang >= 0 {
		s.User = rest[bang+1:]
		rest = rest[:bang]
	}
	if s.User == "" && s.Host == "" && strings.IndexByte(rest, '.') >= 0 {
		s.Server = true
		s.Host = rest
		return s
	}
	s.Nick = rest
	return s
}

func (s Source) String() string {
	return s.Name
}
