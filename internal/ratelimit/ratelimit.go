// Package ratelimit paces ordinary outbound lines with a token bucket while
// letting protocol-critical lines (PONG, registration) bypass it.
//
// Time is always passed in by the caller so pacing is deterministic.
package ratelimit

import (
	"time"

	"github.com/danmuck/ircterm/internal/protocol/irc"
	"golang.org/x/time/rate"
)

// Config is the flood policy: at most Burst lines at once, then one per Interval.
type Config struct {
	Interval time.Duration
	Burst    int
}

func DefaultConfig() Config {
	return Config{Interval: 2 * time.Second, Burst: 4}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	return c
}

// Outbox holds lines waiting to be written. It is owned by one goroutine.
type Outbox struct {
	limiter  *rate.Limiter
	priority []irc.Message
	ordinary []queued
}

type queued struct {
	msg     irc.Message
	unpaced bool
}

func NewOutbox(cfg Config) *Outbox {
	cfg = cfg.WithDefaults()
	return &Outbox{limiter: rate.NewLimiter(rate.Every(cfg.Interval), cfg.Burst)}
}

// Push queues msg. Priority lines skip the token bucket and go out ahead of
// queued ordinary lines; ordinary lines keep submission order.
func (o *Outbox) Push(msg irc.Message, priority bool) {
	if priority {
		o.priority = append(o.priority, msg)
		return
	}
	o.ordinary = append(o.ordinary, queued{msg: msg})
}

// PushFenced queues msg behind every ordinary line already queued. It leaves
// as soon as those have gone, without spending a token. QUIT uses it so
// earlier messages are not overtaken.
func (o *Outbox) PushFenced(msg irc.Message) {
	o.ordinary = append(o.ordinary, queued{msg: msg, unpaced: true})
}

// Ready pops every line allowed to leave at now.
func (o *Outbox) Ready(now time.Time) []irc.Message {
	out := o.priority
	o.priority = nil
	for len(o.ordinary) > 0 {
		head := o.ordinary[0]
		if !head.unpaced && !o.limiter.AllowN(now, 1) {
			break
		}
		out = append(out, head.msg)
		o.ordinary[0] = queued{}
		o.ordinary = o.ordinary[1:]
	}
	return out
}

// Delay is how long after now the next queued line can leave. ok is false
// when nothing is queued.
func (o *Outbox) Delay(now time.Time) (time.Duration, bool) {
	if len(o.priority) > 0 {
		return 0, true
	}
	if len(o.ordinary) == 0 {
		return 0, false
	}
	if o.ordinary[0].unpaced {
		return 0, true
	}
	tokens := o.limiter.TokensAt(now)
	if tokens >= 1 {
		return 0, true
	}
	wait := time.Duration((1 - tokens) / float64(o.limiter.Limit()) * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, true
}

// Len is the number of queued lines.
func (o *Outbox) Len() int {
	return len(o.priority) + len(o.ordinary)
}

// Drop discards queued ordinary lines, e.g. after the link is lost.
func (o *Outbox) Drop() int {
	n := len(o.ordinary)
	o.ordinary = nil
	o.priority = nil
	return n
}
