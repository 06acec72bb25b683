package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/danmuck/ircterm/internal/protocol/irc"
	"github.com/danmuck/ircterm/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

// drain simulates the writer loop: sleep until the next release, send, repeat.
func drain(t *testing.T, o *Outbox, start time.Time) map[string]time.Duration {
	t.Helper()
	sent := make(map[string]time.Duration)
	now := start
	for i := 0; i < 100 && o.Len() > 0; i++ {
		for _, msg := range o.Ready(now) {
			sent[msg.Last()] = now.Sub(start)
		}
		delay, ok := o.Delay(now)
		if !ok {
			break
		}
		now = now.Add(delay)
	}
	require.Zero(t, o.Len(), "outbox not drained")
	return sent
}

func TestOutboxPacesOrdinaryLines(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox(Config{Interval: 2 * time.Second, Burst: 1})
	start := time.Unix(1_700_000_000, 0)

	var order []string
	for i := 0; i < 5; i++ {
		text := fmt.Sprintf("m%d", i)
		order = append(order, text)
		o.Push(irc.NewTrailing("PRIVMSG", "#chan", text), false)
	}

	now := start
	var got []string
	var at []time.Duration
	for o.Len() > 0 {
		for _, msg := range o.Ready(now) {
			got = append(got, msg.Last())
			at = append(at, now.Sub(start))
		}
		delay, ok := o.Delay(now)
		if !ok {
			break
		}
		now = now.Add(delay)
	}

	require.Equal(t, order, got)
	require.Len(t, at, 5)
	for i, d := range at {
		want := time.Duration(i) * 2 * time.Second
		require.InDelta(t, want.Seconds(), d.Seconds(), 0.01, "send %d", i)
	}
}

func TestOutboxPriorityBypassesBucket(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox(Config{Interval: 10 * time.Second, Burst: 1})
	now := time.Unix(1_700_000_000, 0)

	o.Push(irc.NewTrailing("PRIVMSG", "#chan", "first"), false)
	o.Push(irc.NewTrailing("PRIVMSG", "#chan", "second"), false)
	first := o.Ready(now)
	require.Len(t, first, 1)

	o.Push(irc.NewTrailing("PONG", "abc123"), true)
	out := o.Ready(now)
	require.Len(t, out, 1)
	require.Equal(t, "PONG :abc123", out[0].String())

	delay, ok := o.Delay(now)
	require.True(t, ok)
	require.InDelta(t, 10.0, delay.Seconds(), 0.01)
}

func TestOutboxBurstThenSteadyRate(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox(Config{Interval: time.Second, Burst: 3})
	start := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		o.Push(irc.NewTrailing("PRIVMSG", "#chan", fmt.Sprintf("m%d", i)), false)
	}
	sent := drain(t, o, start)
	require.Zero(t, sent["m0"])
	require.Zero(t, sent["m2"])
	require.InDelta(t, 1.0, sent["m3"].Seconds(), 0.01)
	require.InDelta(t, 2.0, sent["m4"].Seconds(), 0.01)
}

func TestOutboxDelayEmptyAndDrop(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox(Config{})
	_, ok := o.Delay(time.Now())
	require.False(t, ok)

	o.Push(irc.NewMessage("JOIN", "#a"), false)
	o.Push(irc.NewMessage("JOIN", "#b"), false)
	require.Equal(t, 2, o.Drop())
	require.Zero(t, o.Len())
}

func TestOutboxFencedLineWaitsForQueuedLines(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox(Config{Interval: 2 * time.Second, Burst: 1})
	start := time.Unix(1_700_000_000, 0)
	for _, text := range []string{"one", "two", "three"} {
		o.Push(irc.NewTrailing("PRIVMSG", "#c", text), false)
	}
	o.PushFenced(irc.NewTrailing("QUIT", "bye"))

	first := o.Ready(start)
	require.Len(t, first, 1)
	require.Equal(t, "PRIVMSG #c :one", first[0].String())

	sent := drain(t, o, start)
	require.InDelta(t, 2.0, sent["two"].Seconds(), 0.01)
	require.InDelta(t, 4.0, sent["three"].Seconds(), 0.01)
	require.InDelta(t, 4.0, sent["bye"].Seconds(), 0.01)
}

func TestOutboxFencedLineOnEmptyQueueLeavesAtOnce(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox(Config{Interval: 10 * time.Second, Burst: 1})
	now := time.Unix(1_700_000_000, 0)
	o.Push(irc.NewTrailing("PRIVMSG", "#c", "spent"), false)
	require.Len(t, o.Ready(now), 1)

	o.PushFenced(irc.NewTrailing("QUIT", "bye"))
	delay, ok := o.Delay(now)
	require.True(t, ok)
	require.Zero(t, delay)
	out := o.Ready(now)
	require.Len(t, out, 1)
	require.Equal(t, "QUIT :bye", out[0].String())
	require.Zero(t, o.Len())
}
