package engine

import (
	"time"

	"github.com/danmuck/ircterm/internal/protocol/irc"
	"github.com/danmuck/ircterm/internal/state"
)

// Event is the consumer-facing tagged union. Values are immutable copies;
// nothing in an Event aliases live session state.
type Event interface {
	EventName() string
}

type Connected struct {
	Conn string
	Addr string
}

type Registered struct {
	Nick   string
	Server string
}

type CapabilityChanged struct {
	Caps    map[string]string
	Added   []string
	Removed []string
}

type ChannelJoined struct {
	Name  string
	State state.Channel
}

type ChannelUpdated struct {
	Name string
	Diff state.Diff
}

type ChannelLeft struct {
	Name   string
	Reason string
	Kicked bool
	By     string
}

// MessageReceived is a PRIVMSG or NOTICE. Service marks NickServ traffic
// addressed to us; Action marks CTCP ACTION.
type MessageReceived struct {
	From    string
	Source  irc.Source
	Target  string
	Text    string
	Tags    irc.Tags
	Time    time.Time
	Private bool
	Notice  bool
	Action  bool
	Service bool
}

type RawUnhandled struct {
	Message irc.Message
}

type Disconnected struct {
	Conn   string
	Reason string
	Err    error
	Final  bool
}

// FatalError is always the last event a supervisor publishes.
type FatalError struct {
	Kind ErrorKind
	Err  error
}

type NickChanged struct {
	Old string
	New string
}

// Warning is informational: parse anomalies, capability timeout, nick
// collisions after registration and rejected commands.
type Warning struct {
	Kind   ErrorKind
	Detail string
	Raw    string
}

type UserModeChanged struct {
	Modes string
}

type Reconnecting struct {
	Attempt int
	Delay   time.Duration
}

func (Connected) EventName() string         { return "Connected" }
func (Registered) EventName() string        { return "Registered" }
func (CapabilityChanged) EventName() string { return "CapabilityChanged" }
func (ChannelJoined) EventName() string     { return "ChannelJoined" }
func (ChannelUpdated) EventName() string    { return "ChannelUpdated" }
func (ChannelLeft) EventName() string       { return "ChannelLeft" }
func (MessageReceived) EventName() string   { return "MessageReceived" }
func (RawUnhandled) EventName() string      { return "RawUnhandled" }
func (Disconnected) EventName() string      { return "Disconnected" }
func (FatalError) EventName() string        { return "FatalError" }
func (NickChanged) EventName() string       { return "NickChanged" }
func (Warning) EventName() string           { return "Warning" }
func (UserModeChanged) EventName() string   { return "UserModeChanged" }
func (Reconnecting) EventName() string      { return "Reconnecting" }
