package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/danmuck/ircterm/internal/engine"
	"github.com/danmuck/ircterm/internal/mailbox"
	"github.com/danmuck/ircterm/internal/observability"
	"github.com/danmuck/ircterm/internal/protocol/session"
	"github.com/danmuck/ircterm/internal/state"
	"github.com/danmuck/ircterm/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrReconnectExhausted = errors.New("supervisor: reconnect attempts exhausted")

// Dialer opens a byte stream to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, ep transport.Endpoint) (net.Conn, error)
}

type Option func(*Supervisor)

func WithDialer(d Dialer) Option {
	return func(s *Supervisor) { s.dialer = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

func WithRand(rng *rand.Rand) Option {
	return func(s *Supervisor) { s.rng = rng }
}

// Supervisor bridges consumers to one protocol machine.
type Supervisor struct {
	cfg      Config
	dialer   Dialer
	logger   zerolog.Logger
	now      func() time.Time
	rng      *rand.Rand
	machine  *engine.Machine
	backoff  *session.Backoff
	events   *mailbox.Queue[engine.Event]
	commands *mailbox.Queue[engine.Command]

	snapshot   atomic.Pointer[state.Snapshot]
	registered atomic.Bool
}

func New(cfg Config, opts ...Option) *Supervisor {
	cfg = cfg.WithDefaults()
	s := &Supervisor{
		cfg:      cfg,
		logger:   log.Logger,
		now:      time.Now,
		machine:  engine.NewMachine(cfg.Engine),
		events:   mailbox.New[engine.Event](),
		commands: mailbox.New[engine.Command](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialer == nil {
		s.dialer = transport.NewDialer(cfg.Session)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s.backoff = session.NewBackoff(cfg.Session.Backoff, s.rng)
	snap := s.machine.Snapshot()
	s.snapshot.Store(&snap)
	return s
}

// Events yields consumer events in protocol order. It is closed when Run returns.
func (s *Supervisor) Events() <-chan engine.Event {
	return s.events.Out()
}

// Submit queues a command. It never blocks.
func (s *Supervisor) Submit(cmd engine.Command) error {
	return s.commands.Push(cmd)
}

// Close closes the command channel, which quits like engine.Quit{}.
func (s *Supervisor) Close() {
	s.commands.Close()
}

// Snapshot is the session as of the last processed line.
func (s *Supervisor) Snapshot() state.Snapshot {
	return *s.snapshot.Load()
}

// Registered reports whether the current link has completed registration.
func (s *Supervisor) Registered() bool {
	return s.registered.Load()
}

// Run drives connections until quit, a fatal error or ctx cancellation.
// Submit fails with mailbox.ErrClosed once Run has returned.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.events.Close()
	defer s.commands.Close()

	ep := s.cfg.Endpoint
	if ep.Host == "" {
		act := s.idle(ctx, nil)
		switch act.kind {
		case actionStop:
			return ctx.Err()
		case actionQuit:
			return nil
		}
		ep = act.endpoint
	}

	for {
		res := s.runConnection(ctx, ep)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case res.drop != nil && res.drop.Kind.Fatal():
			s.publish(engine.FatalError{Kind: res.drop.Kind, Err: res.drop.Err})
			return res.drop.Err
		case s.machine.Quitting():
			return nil
		case res.next != nil:
			ep = *res.next
			s.backoff.Reset()
			continue
		}

		if s.backoff.Exhausted() {
			err := fmt.Errorf("%w: %d attempts: %v", ErrReconnectExhausted, s.backoff.Attempt, res.err)
			s.publish(engine.FatalError{Kind: engine.KindTransportError, Err: errors.Join(engine.ErrTransport, err)})
			return err
		}
		delay := s.backoff.Fail()
		observability.RecordReconnectDelay(delay)
		s.logger.Warn().
			Int("attempt", s.backoff.Attempt).
			Dur("delay", delay).
			Str("addr", ep.String()).
			Msg("supervisor.reconnect scheduled")
		s.publish(engine.Reconnecting{Attempt: s.backoff.Attempt, Delay: delay})

		timer := time.NewTimer(delay)
		act := s.idle(ctx, timer.C)
		timer.Stop()
		switch act.kind {
		case actionStop:
			return ctx.Err()
		case actionQuit:
			return nil
		case actionConnect:
			ep = act.endpoint
			s.backoff.Reset()
		}
	}
}

type actionKind int

const (
	actionProceed actionKind = iota
	actionConnect
	actionQuit
	actionStop
)

type idleAction struct {
	kind     actionKind
	endpoint transport.Endpoint
}

// idle waits for timer (nil waits forever) while handling commands with no
// link. Ordinary commands are held by the machine until registration.
func (s *Supervisor) idle(ctx context.Context, timer <-chan time.Time) idleAction {
	for {
		select {
		case <-ctx.Done():
			return idleAction{kind: actionStop}
		case <-timer:
			return idleAction{kind: actionProceed}
		case cmd, ok := <-s.commands.Out():
			if !ok {
				cmd = engine.Quit{}
			}
			switch c := cmd.(type) {
			case engine.Connect:
				ep, err := EndpointFor(c, s.cfg.Endpoint)
				if err != nil {
					s.publish(engine.Warning{Detail: fmt.Sprintf("connect: %v", err)})
					continue
				}
				return idleAction{kind: actionConnect, endpoint: ep}
			case engine.Quit:
				s.apply(s.machine.Submit(c, s.now()))
				return idleAction{kind: actionQuit}
			default:
				s.apply(s.machine.Submit(cmd, s.now()))
			}
		}
	}
}

// apply publishes machine events. Lines are dropped here because there is
// no link; connection loops route lines to their outbox instead.
func (s *Supervisor) apply(out engine.Output) {
	for _, ev := range out.Events {
		s.publish(ev)
	}
}

func (s *Supervisor) publish(ev engine.Event) {
	switch ev.(type) {
	case engine.Registered:
		s.registered.Store(true)
		s.backoff.Reset()
	case engine.Disconnected:
		s.registered.Store(false)
	}
	observability.RecordEvent(ev.EventName())
	if err := s.events.Push(ev); err != nil {
		s.logger.Debug().Str("event", ev.EventName()).Msg("supervisor.publish after close")
	}
}

func (s *Supervisor) storeSnapshot() {
	snap := s.machine.Snapshot()
	s.snapshot.Store(&snap)
}
