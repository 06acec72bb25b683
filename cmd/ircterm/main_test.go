package main

import (
	"bufio"
	"context"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/ircterm/internal/engine"
	"github.com/danmuck/ircterm/internal/supervisor"
	"github.com/danmuck/ircterm/internal/testutil/testlog"
	"github.com/danmuck/ircterm/internal/transport"
	"github.com/rs/zerolog"
)

type countingCloser struct{ n atomic.Int32 }

func (c *countingCloser) Close() { c.n.Add(1) }

func startWatch(t *testing.T, grace time.Duration) (chan os.Signal, *countingCloser, context.Context, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sigs := make(chan os.Signal, 2)
	closer := &countingCloser{}
	done := make(chan struct{})
	go func() {
		watchSignals(ctx, sigs, closer, grace, cancel, zerolog.Nop())
		close(done)
	}()
	return sigs, closer, ctx, done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("watchSignals did not return")
	}
}

func TestWatchSignalsQuitsBeforeCanceling(t *testing.T) {
	testlog.Start(t)
	sigs, closer, ctx, done := startWatch(t, 200*time.Millisecond)

	sigs <- os.Interrupt
	time.Sleep(50 * time.Millisecond)
	if closer.n.Load() != 1 {
		t.Fatalf("first signal should close the supervisor once, got %d", closer.n.Load())
	}
	if ctx.Err() != nil {
		t.Fatalf("context canceled before the grace period")
	}

	waitDone(t, done)
	if ctx.Err() == nil {
		t.Fatalf("context should be canceled after the grace period")
	}
}

func TestWatchSignalsSecondSignalForces(t *testing.T) {
	testlog.Start(t)
	sigs, closer, ctx, done := startWatch(t, time.Hour)
	sigs <- os.Interrupt
	sigs <- os.Interrupt
	waitDone(t, done)
	if closer.n.Load() != 1 || ctx.Err() == nil {
		t.Fatalf("second signal should cancel at once: closes=%d ctx=%v", closer.n.Load(), ctx.Err())
	}
}

func TestWatchSignalsStopsWithContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	closer := &countingCloser{}
	done := make(chan struct{})
	go func() {
		watchSignals(ctx, make(chan os.Signal), closer, time.Hour, cancel, zerolog.Nop())
		close(done)
	}()
	cancel()
	waitDone(t, done)
	if closer.n.Load() != 0 {
		t.Fatalf("no signal means no quit")
	}
}

func TestSignalSendsQuitToServer(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	n, _ := strconv.Atoi(port)

	cfg := supervisor.DefaultConfig()
	cfg.Endpoint = transport.Endpoint{Host: "127.0.0.1", Port: n, Kind: transport.KindTCP}
	cfg.Engine.Nickname = "alice"
	cfg.Engine.RequestedCaps = []string{}
	cfg.TickInterval = 10 * time.Millisecond
	cfg.Session.QuitGrace = 500 * time.Millisecond
	sup := supervisor.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- sup.Run(ctx) }()
	sigs := make(chan os.Signal, 2)
	go watchSignals(ctx, sigs, sup, 5*time.Second, cancel, zerolog.Nop())

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer conn.Close()
	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	expect := func(want string) {
		t.Helper()
		select {
		case got := <-lines:
			if got != want {
				t.Fatalf("server got %q want %q", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	send := func(line string) {
		t.Helper()
		if _, err := conn.Write([]byte(line + "\r\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	expect("CAP LS 302")
	expect("NICK alice")
	expect("USER alice 0 * :alice")
	send(":irc.test CAP * LS :")
	expect("CAP END")
	send(":irc.test 001 alice :Welcome")
	for registered := false; !registered; {
		select {
		case ev := <-sup.Events():
			_, registered = ev.(engine.Registered)
		case <-time.After(5 * time.Second):
			t.Fatalf("not registered")
		}
	}

	sigs <- os.Interrupt
	expect("QUIT :ircterm")
	conn.Close()

	go func() {
		for range sup.Events() {
		}
	}()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return")
	}
	if ctx.Err() != nil {
		t.Fatalf("clean quit should not need the forced cancel")
	}
}
