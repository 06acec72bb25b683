package tui

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/ircterm/internal/engine"
	"github.com/danmuck/ircterm/internal/testutil/testlog"
)

func TestParseInputCommands(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		line   string
		active string
		want   Action
	}{
		{"hello there", "#go", Action{Command: engine.SendMessage{Target: "#go", Text: "hello there"}}},
		{"/join #go", "", Action{Command: engine.Join{Channel: "#go"}, Target: "#go"}},
		{"/JOIN #secret hunter2", "", Action{Command: engine.Join{Channel: "#secret", Key: "hunter2"}, Target: "#secret"}},
		{"/part", "#go", Action{Command: engine.Part{Channel: "#go"}}},
		{"/part see you", "#go", Action{Command: engine.Part{Channel: "#go", Reason: "see you"}}},
		{"/part #irc bye all", "#go", Action{Command: engine.Part{Channel: "#irc", Reason: "bye all"}}},
		{"/msg bob hi bob", "", Action{Command: engine.SendMessage{Target: "bob", Text: "hi bob"}}},
		{"/notice bob ping", "", Action{Command: engine.Notice{Target: "bob", Text: "ping"}}},
		{"/me waves", "#go", Action{Command: engine.Action{Target: "#go", Text: "waves"}}},
		{"/nick alice_", "", Action{Command: engine.Nick{Nick: "alice_"}}},
		{"/nickserv identify pw", "", Action{Command: engine.SendMessage{Target: "NickServ", Text: "identify pw"}}},
		{"/raw WHOIS bob", "", Action{Command: engine.SendRaw{Line: "WHOIS bob"}}},
		{"/quit gone fishing", "", Action{Command: engine.Quit{Reason: "gone fishing"}}},
		{"/exit", "", Action{Command: engine.Quit{}}},
		{"/connect irc.libera.chat", "", Action{Command: engine.Connect{Host: "irc.libera.chat"}}},
		{"/connect irc.libera.chat 6697 tls", "", Action{Command: engine.Connect{Host: "irc.libera.chat", Port: 6697, TLS: true}}},
		{"/connect irc.libera.chat +6697", "", Action{Command: engine.Connect{Host: "irc.libera.chat", Port: 6697, TLS: true}}},
		{"/query bob", "#go", Action{Local: LocalQuery, Target: "bob"}},
		{"/clear", "", Action{Local: LocalClear}},
		{"/help", "", Action{Local: LocalHelp}},
		{"   ", "#go", Action{}},
	}
	for _, tc := range cases {
		got, err := ParseInput(tc.line, tc.active)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.line, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: got %#v want %#v", tc.line, got, tc.want)
		}
	}
}

func TestParseInputErrors(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		line   string
		active string
		want   error
	}{
		{"hello", "", ErrNoTarget},
		{"/me waves", "", ErrNoTarget},
		{"/join", "", ErrUsage},
		{"/part", "", ErrUsage},
		{"/msg bob", "", ErrUsage},
		{"/nick", "", ErrUsage},
		{"/nick a b", "", ErrUsage},
		{"/raw", "", ErrUsage},
		{"/nickserv", "", ErrUsage},
		{"/connect", "", ErrUsage},
		{"/connect host notaport", "", ErrUsage},
		{"/frobnicate", "", ErrUnknownCommand},
	}
	for _, tc := range cases {
		if _, err := ParseInput(tc.line, tc.active); !errors.Is(err, tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.line, tc.want, err)
		}
	}
}

func TestCompletions(t *testing.T) {
	testlog.Start(t)
	got := Completions("/n")
	want := []string{"/nick", "/nickserv", "/notice"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if Completions("n") != nil {
		t.Fatalf("plain text should not complete")
	}
	if len(HelpLines()) != len(commandTable)+1 {
		t.Fatalf("help should list every command")
	}
}
