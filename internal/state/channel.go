package state

import "sort"

// Member is one channel occupant and their prefix modes ("ov").
type Member struct {
	Nick  string
	Modes string
}

// Channel is the tracked state of one joined channel. Members and Modes are
// keyed by casefolded nick and mode letter respectively.
type Channel struct {
	Name     string
	Topic    string
	HasTopic bool
	TopicBy  string
	Modes    map[byte]string
	Members  map[string]Member
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		Modes:   make(map[byte]string),
		Members: make(map[string]Member),
	}
}

// Clone returns a deep copy detached from the session.
func (c *Channel) Clone() Channel {
	out := Channel{
		Name:     c.Name,
		Topic:    c.Topic,
		HasTopic: c.HasTopic,
		TopicBy:  c.TopicBy,
		Modes:    make(map[byte]string, len(c.Modes)),
		Members:  make(map[string]Member, len(c.Members)),
	}
	for k, v := range c.Modes {
		out.Modes[k] = v
	}
	for k, v := range c.Members {
		out.Members[k] = v
	}
	return out
}

// MemberList returns members sorted by nick.
func (c Channel) MemberList() []Member {
	out := make([]Member, 0, len(c.Members))
	for _, m := range c.Members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Nick < out[j].Nick
	})
	return out
}

// ModeString renders channel flags as "+klnt key 10".
func (c Channel) ModeString() string {
	if len(c.Modes) == 0 {
		return ""
	}
	letters := make([]byte, 0, len(c.Modes))
	for k := range c.Modes {
		letters = append(letters, k)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	out := "+" + string(letters)
	for _, k := range letters {
		if arg := c.Modes[k]; arg != "" {
			out += " " + arg
		}
	}
	return out
}
