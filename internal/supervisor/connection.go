package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/danmuck/ircterm/internal/engine"
	"github.com/danmuck/ircterm/internal/observability"
	"github.com/danmuck/ircterm/internal/protocol/frame"
	"github.com/danmuck/ircterm/internal/protocol/irc"
	"github.com/danmuck/ircterm/internal/ratelimit"
	"github.com/danmuck/ircterm/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// errStop ends a connection group on purpose.
var errStop = errors.New("supervisor: stop")

type connResult struct {
	err  error
	drop *engine.Drop
	next *transport.Endpoint
}

type dialResult struct {
	conn net.Conn
	err  error
}

// runConnection dials ep and runs one link to completion. It always leaves
// the machine Disconnected.
func (s *Supervisor) runConnection(ctx context.Context, ep transport.Endpoint) connResult {
	connID := uuid.NewString()
	logger := s.logger.With().Str("conn", connID).Str("addr", ep.String()).Logger()
	s.machine.Connecting(connID, s.now())

	conn, res, ok := s.dial(ctx, ep, logger)
	if !ok {
		reason := "dial canceled"
		if res.err != nil {
			reason = "dial: " + res.err.Error()
		}
		s.apply(s.machine.Disconnected(reason, res.err, false, s.now()))
		s.storeSnapshot()
		return res
	}
	logger.Info().Msg("supervisor.connected")

	res = s.serve(ctx, conn, ep, logger)

	reason := "connection closed"
	var cause error
	switch {
	case res.drop != nil:
		cause = res.drop.Err
		reason = cause.Error()
	case s.machine.Quitting():
		reason = "quit"
	case res.next != nil:
		reason = "changing server"
	case res.err != nil:
		cause = res.err
		reason = cause.Error()
	case ctx.Err() != nil:
		cause = ctx.Err()
		reason = "shutdown"
	}
	final := ctx.Err() != nil || (res.drop != nil && res.drop.Final)
	logger.Info().Str("reason", reason).Bool("final", final).Msg("supervisor.disconnected")
	s.apply(s.machine.Disconnected(reason, cause, final, s.now()))
	s.storeSnapshot()
	if res.err == nil {
		res.err = cause
	}
	return res
}

// dial runs the dial in the background so quit and connect commands stay live.
func (s *Supervisor) dial(ctx context.Context, ep transport.Endpoint, logger zerolog.Logger) (net.Conn, connResult, bool) {
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan dialResult, 1)
	go func() {
		c, err := s.dialer.Dial(dialCtx, ep)
		done <- dialResult{conn: c, err: err}
	}()

	abandon := func(res connResult) (net.Conn, connResult, bool) {
		cancel()
		if r := <-done; r.conn != nil {
			_ = r.conn.Close()
		}
		return nil, res, false
	}

	for {
		select {
		case r := <-done:
			observability.RecordConnectAttempt(ep.Addr(), r.err == nil)
			if r.err != nil {
				logger.Warn().Err(r.err).Int("attempt", s.backoff.Attempt).Msg("supervisor.dial failed")
				return nil, connResult{err: fmt.Errorf("%w: %v", engine.ErrTransport, r.err)}, false
			}
			return r.conn, connResult{}, true
		case <-ctx.Done():
			return abandon(connResult{err: ctx.Err()})
		case cmd, ok := <-s.commands.Out():
			if !ok {
				cmd = engine.Quit{}
			}
			switch c := cmd.(type) {
			case engine.Quit:
				s.apply(s.machine.Submit(c, s.now()))
				return abandon(connResult{})
			case engine.Connect:
				next, err := EndpointFor(c, s.cfg.Endpoint)
				if err != nil {
					s.publish(engine.Warning{Detail: fmt.Sprintf("connect: %v", err)})
					continue
				}
				return abandon(connResult{next: &next})
			default:
				s.apply(s.machine.Submit(cmd, s.now()))
			}
		}
	}
}

// serve runs reader, writer and the engine loop for one established link.
func (s *Supervisor) serve(ctx context.Context, conn net.Conn, ep transport.Endpoint, logger zerolog.Logger) connResult {
	var res connResult
	g, gctx := errgroup.WithContext(ctx)
	lines := make(chan frame.Line, 64)
	writes := make(chan irc.Message, 64)

	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})

	g.Go(func() error {
		r := frame.NewReader(conn, s.cfg.Limits)
		for {
			line, err := r.ReadLine()
			if err != nil {
				return fmt.Errorf("%w: read: %v", engine.ErrTransport, err)
			}
			select {
			case lines <- line:
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case msg := <-writes:
				_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.Session.WriteTimeout))
				if err := frame.WriteLine(conn, irc.Serialize(msg), s.cfg.Limits); err != nil {
					if errors.Is(err, frame.ErrLineTooLong) || errors.Is(err, frame.ErrLineBreak) {
						logger.Warn().Err(err).Str("command", msg.Command).Msg("supervisor.write dropped line")
						continue
					}
					return fmt.Errorf("%w: write: %v", engine.ErrTransport, err)
				}
				observability.RecordLine("out", commandLabel(msg))
				logger.Trace().Str("command", msg.Command).Msg("supervisor.write")
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		return s.loop(gctx, ep, lines, writes, &res, logger)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, errStop) && !errors.Is(err, net.ErrClosed) {
		res.err = err
	}
	return res
}

func (s *Supervisor) loop(
	ctx context.Context,
	ep transport.Endpoint,
	lines <-chan frame.Line,
	writes chan<- irc.Message,
	res *connResult,
	logger zerolog.Logger,
) error {
	outbox := ratelimit.NewOutbox(s.cfg.RateLimit)
	defer outbox.Drop()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	sendTimer := time.NewTimer(time.Hour)
	sendTimer.Stop()
	defer sendTimer.Stop()
	var quitDeadline <-chan time.Time
	commands := s.commands.Out()

	startClose := func() {
		if quitDeadline == nil {
			quitDeadline = time.After(s.cfg.Session.QuitGrace)
		}
	}

	apply := func(out engine.Output) error {
		for _, l := range out.Lines {
			if l.Fenced {
				outbox.PushFenced(l.Msg)
				continue
			}
			outbox.Push(l.Msg, l.Priority)
		}
		for _, ev := range out.Events {
			s.publish(ev)
		}
		s.storeSnapshot()
		if out.Quit {
			startClose()
		}
		if out.Drop != nil {
			res.drop = out.Drop
			logger.Warn().Err(out.Drop.Err).Str("kind", out.Drop.Kind.String()).Msg("supervisor.drop")
			return errStop
		}
		return nil
	}

	_ = apply(s.machine.Established(ep.String(), s.now()))

	for {
		now := s.now()
		for _, msg := range outbox.Ready(now) {
			select {
			case writes <- msg:
			case <-ctx.Done():
				return nil
			}
		}
		observability.SetSendQueueDepth(outbox.Len())
		if d, ok := outbox.Delay(now); ok {
			sendTimer.Reset(d)
		}

		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			msg := irc.Parse(line.Data)
			if line.Truncated {
				observability.RecordAnomaly("truncated")
			}
			if msg.Malformed {
				observability.RecordAnomaly(msg.Reason)
			}
			observability.RecordLine("in", commandLabel(msg))
			if err := apply(s.machine.HandleParsed(msg, line, s.now())); err != nil {
				return err
			}
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				cmd = engine.Quit{}
			}
			if c, isConnect := cmd.(engine.Connect); isConnect {
				next, err := EndpointFor(c, s.cfg.Endpoint)
				if err != nil {
					s.publish(engine.Warning{Detail: fmt.Sprintf("connect: %v", err)})
					continue
				}
				res.next = &next
				outbox.PushFenced(irc.NewTrailing(irc.CmdQuit, "changing server"))
				startClose()
				continue
			}
			if err := apply(s.machine.Submit(cmd, s.now())); err != nil {
				return err
			}
		case <-ticker.C:
			if err := apply(s.machine.Tick(s.now())); err != nil {
				return err
			}
		case <-sendTimer.C:
		case <-quitDeadline:
			logger.Debug().Msg("supervisor.quit grace elapsed")
			return errStop
		}
	}
}

// commandLabel keeps metric label values to a fixed set: named verbs,
// three-digit numerics, "malformed" and "other".
func commandLabel(msg irc.Message) string {
	switch {
	case msg.Malformed:
		return "malformed"
	case msg.IsNumeric():
		return msg.Command
	case irc.KnownCommand(msg.Command):
		return strings.ToUpper(msg.Command)
	default:
		return "other"
	}
}
