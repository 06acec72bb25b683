package state

import (
	"sort"
	"strings"
	"time"
)

// Session is the per-connection model. It is owned by one goroutine.
type Session struct {
	Nick      string
	UserModes string
	Caps      map[string]string
	Features  map[string]string
	Channels  map[string]*Channel
	LastSeen  time.Time

	support Support
}

func NewSession(nick string) *Session {
	return &Session{
		Nick:     nick,
		Caps:     make(map[string]string),
		Features: make(map[string]string),
		Channels: make(map[string]*Channel),
		support:  DefaultSupport(),
	}
}

func (s *Session) Support() Support {
	return s.support
}

func (s *Session) IsChannel(name string) bool {
	return s.support.IsChannel(name)
}

// IsSelf compares nick against the current nickname under server casemapping.
func (s *Session) IsSelf(nick string) bool {
	return nick != "" && s.support.Fold(nick) == s.support.Fold(s.Nick)
}

// Reset drops all connection-scoped state, keeping the nickname.
func (s *Session) Reset() {
	s.UserModes = ""
	s.Caps = make(map[string]string)
	s.Features = make(map[string]string)
	s.Channels = make(map[string]*Channel)
	s.support = DefaultSupport()
}

// Touch records inbound activity.
func (s *Session) Touch(at time.Time) {
	s.LastSeen = at
}

func (s *Session) SetNick(nick string) Diff {
	if nick == "" || nick == s.Nick {
		return Diff{}
	}
	old := s.Nick
	s.Nick = nick
	return Diff{Kind: DiffNick, Nick: nick, OldNick: old}
}

func (s *Session) SetUserModes(delta string) Diff {
	next := applyUserModes(s.UserModes, delta)
	if next == s.UserModes {
		return Diff{}
	}
	s.UserModes = next
	return Diff{Kind: DiffUserModes, Modes: next}
}

// SetCaps applies acknowledged (+) and removed (-) capabilities.
func (s *Session) SetCaps(added map[string]string, removed []string) Diff {
	var keys []string
	for name, value := range added {
		if cur, ok := s.Caps[name]; ok && cur == value {
			continue
		}
		s.Caps[name] = value
		keys = append(keys, name)
	}
	for _, name := range removed {
		if _, ok := s.Caps[name]; !ok {
			continue
		}
		delete(s.Caps, name)
		keys = append(keys, "-"+name)
	}
	if len(keys) == 0 {
		return Diff{}
	}
	sort.Strings(keys)
	return Diff{Kind: DiffCaps, Keys: keys}
}

// CapList returns negotiated capability names, sorted.
func (s *Session) CapList() []string {
	out := make([]string, 0, len(s.Caps))
	for name := range s.Caps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ApplyISupport folds 005 tokens ("KEY=VALUE", "KEY", "-KEY") into the feature map.
func (s *Session) ApplyISupport(tokens []string) Diff {
	var keys []string
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		removed := strings.HasPrefix(tok, "-")
		key, value, _ := strings.Cut(strings.TrimPrefix(tok, "-"), "=")
		key = strings.ToUpper(key)
		if key == "" {
			continue
		}
		if removed {
			if _, ok := s.Features[key]; !ok {
				continue
			}
			delete(s.Features, key)
		} else {
			if cur, ok := s.Features[key]; ok && cur == value {
				continue
			}
			s.Features[key] = value
		}
		s.support.apply(key, value, removed)
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return Diff{}
	}
	return Diff{Kind: DiffFeatures, Keys: keys}
}

func (s *Session) channel(name string) (*Channel, bool) {
	ch, ok := s.Channels[s.support.Fold(name)]
	return ch, ok
}

// Channel returns a detached copy of a joined channel.
func (s *Session) Channel(name string) (Channel, bool) {
	ch, ok := s.channel(name)
	if !ok {
		return Channel{}, false
	}
	return ch.Clone(), true
}

// ChannelNames returns joined channel display names, sorted.
func (s *Session) ChannelNames() []string {
	out := make([]string, 0, len(s.Channels))
	for _, ch := range s.Channels {
		out = append(out, ch.Name)
	}
	sort.Strings(out)
	return out
}

func (s *Session) JoinChannel(name string) Diff {
	if name == "" {
		return Diff{}
	}
	key := s.support.Fold(name)
	if _, ok := s.Channels[key]; ok {
		return Diff{}
	}
	s.Channels[key] = newChannel(name)
	return Diff{Kind: DiffJoined, Channel: name}
}

func (s *Session) PartChannel(name string) Diff {
	ch, ok := s.channel(name)
	if !ok {
		return Diff{}
	}
	delete(s.Channels, s.support.Fold(name))
	return Diff{Kind: DiffParted, Channel: ch.Name}
}

// UpsertMember adds nick to channel or replaces its prefix modes.
func (s *Session) UpsertMember(channel, nick, modes string) Diff {
	ch, ok := s.channel(channel)
	if !ok || nick == "" {
		return Diff{}
	}
	key := s.support.Fold(nick)
	modes = s.support.rankModes(modes)
	cur, exists := ch.Members[key]
	if exists && cur.Nick == nick && cur.Modes == modes {
		return Diff{}
	}
	ch.Members[key] = Member{Nick: nick, Modes: modes}
	kind := DiffMemberJoined
	if exists {
		kind = DiffMemberUpdated
	}
	return Diff{Kind: kind, Channel: ch.Name, Nick: nick, Modes: modes}
}

func (s *Session) RemoveMember(channel, nick string) Diff {
	ch, ok := s.channel(channel)
	if !ok {
		return Diff{}
	}
	key := s.support.Fold(nick)
	m, exists := ch.Members[key]
	if !exists {
		return Diff{}
	}
	delete(ch.Members, key)
	return Diff{Kind: DiffMemberLeft, Channel: ch.Name, Nick: m.Nick}
}

// RemoveMemberEverywhere handles QUIT: one diff per channel the nick was in.
func (s *Session) RemoveMemberEverywhere(nick string) []Diff {
	var out []Diff
	for _, name := range s.ChannelNames() {
		if d := s.RemoveMember(name, nick); d.Changed() {
			out = append(out, d)
		}
	}
	return out
}

// RenameMember handles NICK for every channel the old nick is in.
func (s *Session) RenameMember(oldNick, newNick string) []Diff {
	var out []Diff
	oldKey, newKey := s.support.Fold(oldNick), s.support.Fold(newNick)
	for _, name := range s.ChannelNames() {
		ch, _ := s.channel(name)
		m, ok := ch.Members[oldKey]
		if !ok {
			continue
		}
		delete(ch.Members, oldKey)
		m.Nick = newNick
		ch.Members[newKey] = m
		out = append(out, Diff{Kind: DiffMemberRenamed, Channel: ch.Name, Nick: newNick, OldNick: oldNick, Modes: m.Modes})
	}
	return out
}

// SyncNames applies one RPL_NAMREPLY batch of "@+nick" or "@nick!u@h" entries.
func (s *Session) SyncNames(channel string, entries []string) Diff {
	ch, ok := s.channel(channel)
	if !ok {
		return Diff{}
	}
	var members []Member
	for _, entry := range entries {
		modes := ""
		for entry != "" {
			mode, ok := s.support.ModeForSymbol(entry[0])
			if !ok {
				break
			}
			modes += string(mode)
			entry = entry[1:]
		}
		if bang := strings.IndexByte(entry, '!'); bang >= 0 {
			entry = entry[:bang]
		}
		if entry == "" {
			continue
		}
		m := Member{Nick: entry, Modes: s.support.rankModes(modes)}
		key := s.support.Fold(entry)
		if cur, ok := ch.Members[key]; ok && cur == m {
			continue
		}
		ch.Members[key] = m
		members = append(members, m)
	}
	if len(members) == 0 {
		return Diff{}
	}
	return Diff{Kind: DiffNames, Channel: ch.Name, Members: members}
}

func (s *Session) SetTopic(channel, topic, setBy string) Diff {
	ch, ok := s.channel(channel)
	if !ok {
		return Diff{}
	}
	hasTopic := topic != ""
	if ch.HasTopic == hasTopic && ch.Topic == topic && (setBy == "" || ch.TopicBy == setBy) {
		return Diff{}
	}
	ch.Topic = topic
	ch.HasTopic = hasTopic
	if setBy != "" {
		ch.TopicBy = setBy
	}
	return Diff{Kind: DiffTopic, Channel: ch.Name, Topic: topic, TopicBy: ch.TopicBy}
}

// ApplyModeDelta applies channel mode changes. Prefix modes update member
// mode sets; list modes are reported but not stored.
func (s *Session) ApplyModeDelta(channel string, changes []ModeChange) Diff {
	ch, ok := s.channel(channel)
	if !ok {
		return Diff{}
	}
	var applied []ModeChange
	for _, c := range changes {
		switch {
		case s.support.isPrefixMode(c.Mode):
			key := s.support.Fold(c.Arg)
			m, ok := ch.Members[key]
			if !ok {
				continue
			}
			has := strings.IndexByte(m.Modes, c.Mode) >= 0
			if c.Add == has {
				continue
			}
			if c.Add {
				m.Modes = s.support.rankModes(m.Modes + string(c.Mode))
			} else {
				m.Modes = strings.ReplaceAll(m.Modes, string(c.Mode), "")
			}
			ch.Members[key] = m
		case strings.IndexByte(s.support.ListModes, c.Mode) >= 0:
		default:
			cur, has := ch.Modes[c.Mode]
			if c.Add {
				if has && cur == c.Arg {
					continue
				}
				ch.Modes[c.Mode] = c.Arg
			} else {
				if !has {
					continue
				}
				delete(ch.Modes, c.Mode)
			}
		}
		applied = append(applied, c)
	}
	if len(applied) == 0 {
		return Diff{}
	}
	return Diff{Kind: DiffModes, Channel: ch.Name, Changes: applied}
}

// Snapshot is an immutable copy of the whole session.
type Snapshot struct {
	Nick      string
	UserModes string
	Caps      map[string]string
	Features  map[string]string
	Channels  map[string]Channel
	LastSeen  time.Time
}

func (s *Session) Snapshot() Snapshot {
	out := Snapshot{
		Nick:      s.Nick,
		UserModes: s.UserModes,
		Caps:      make(map[string]string, len(s.Caps)),
		Features:  make(map[string]string, len(s.Features)),
		Channels:  make(map[string]Channel, len(s.Channels)),
		LastSeen:  s.LastSeen,
	}
	for k, v := range s.Caps {
		out.Caps[k] = v
	}
	for k, v := range s.Features {
		out.Features[k] = v
	}
	for _, ch := range s.Channels {
		out.Channels[ch.Name] = ch.Clone()
	}
	return out
}
