package frame

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/danmuck/ircterm/internal/protocol/irc"
	"github.com/danmuck/ircterm/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

var sampleMessages = []irc.Message{
	irc.NewTrailing("PING", "abc123"),
	irc.ParseString(":nick!u@h PRIVMSG #chan :hello world"),
	irc.ParseString("@time=2024-01-01T00:00:00Z;msgid=x\\sy :n!u@h NOTICE alice :ping"),
	irc.ParseString(":srv 005 alice PREFIX=(ov)@+ CHANTYPES=# :are supported"),
	irc.ParseString("JOIN #a"),
	irc.ParseString(":srv 353 alice = #chan :@alice +bob carol"),
}

func serializeAll(msgs []irc.Message) []byte {
	var buf bytes.Buffer
	for _, m := range msgs {
		buf.Write(m.Line())
	}
	return buf.Bytes()
}

func collect(f *Framer) []Line {
	var out []Line
	for {
		line, ok := f.Next()
		if !ok {
			return out
		}
		out = append(out, line)
	}
}

func TestFramerArbitraryChunking(t *testing.T) {
	testlog.Start(t)
	stream := serializeAll(sampleMessages)
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		f := NewFramer(DefaultLimits())
		var got []Line
		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(17)
			if n > len(rest) {
				n = len(rest)
			}
			f.Feed(rest[:n])
			rest = rest[n:]
			got = append(got, collect(f)...)
		}
		require.Len(t, got, len(sampleMessages), "round %d", round)
		for i, line := range got {
			require.False(t, line.Truncated)
			require.Equal(t, sampleMessages[i].String(), string(line.Data), "round %d line %d", round, i)
			require.Equal(t, sampleMessages[i].String(), irc.Parse(line.Data).String())
		}
		require.Zero(t, f.Buffered())
	}
}

func TestFramerSplitMidCRLF(t *testing.T) {
	testlog.Start(t)
	f := NewFramer(DefaultLimits())
	f.Feed([]byte("PING :a\r"))
	line, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "PING :a", string(line.Data))

	f.Feed([]byte("\nPING :b\r\nPI"))
	got := collect(f)
	require.Len(t, got, 1)
	require.Equal(t, "PING :b", string(got[0].Data))
	require.Equal(t, 2, f.Buffered())

	f.Feed([]byte("NG :c\n"))
	got = collect(f)
	require.Len(t, got, 1)
	require.Equal(t, "PING :c", string(got[0].Data))
}

func TestFramerTruncatesOverlongLine(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxLineBytes: 16, MaxTaggedLineBytes: 32}
	f := NewFramer(limits)
	long := "PRIVMSG #c :" + strings.Repeat("x", 40)
	f.Feed([]byte(long[:20]))
	line, ok := f.Next()
	require.True(t, ok)
	require.True(t, line.Truncated)
	require.Equal(t, long[:16], string(line.Data))
	require.Equal(t, "PRIVMSG", irc.Parse(line.Data).Command)

	f.Feed([]byte(long[20:] + "\r\nPING :ok\r\n"))
	got := collect(f)
	require.Len(t, got, 1)
	require.Equal(t, "PING :ok", string(got[0].Data))
}

func TestFramerTaggedLimit(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxLineBytes: 16, MaxTaggedLineBytes: 64}
	f := NewFramer(limits)
	line := "@a=" + strings.Repeat("v", 20) + " PING :x"
	f.Feed([]byte(line + "\r\n"))
	got := collect(f)
	require.Len(t, got, 1)
	require.False(t, got[0].Truncated)
	require.Equal(t, line, string(got[0].Data))
}

func TestFramerCompleteLineOverLimitInSingleChunk(t *testing.T) {
	testlog.Start(t)
	f := NewFramer(Limits{MaxLineBytes: 8})
	f.Feed([]byte("PRIVMSG #chan :toolong\r\nPING :x\r\n"))
	got := collect(f)
	require.Len(t, got, 2)
	require.True(t, got[0].Truncated)
	require.Equal(t, "PRIVMSG ", string(got[0].Data))
	require.Equal(t, "PING :x", string(got[1].Data))
}

type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestReaderReadsUntilEOF(t *testing.T) {
	testlog.Start(t)
	r := NewReader(&chunkReader{chunks: [][]byte{
		[]byte("PING :a\r\nPI"),
		[]byte("NG :b\r"),
		[]byte("\npartial"),
	}}, DefaultLimits())

	line, err := r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "PING :a", string(line.Data))
	line, err = r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "PING :b", string(line.Data))
	_, err = r.ReadLine()
	require.ErrorIs(t, err, io.EOF)
}

func TestWriteLine(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := WriteLine(&buf, []byte("PONG :abc123"), DefaultLimits()); err != nil {
		t.Fatalf("write line: %v", err)
	}
	if buf.String() != "PONG :abc123\r\n" {
		t.Fatalf("unexpected wire bytes: %q", buf.String())
	}
	if err := WriteLine(&buf, []byte("A\r\nB"), DefaultLimits()); !errors.Is(err, ErrLineBreak) {
		t.Fatalf("expected ErrLineBreak, got %v", err)
	}
	if err := WriteLine(&buf, bytes.Repeat([]byte("x"), 600), DefaultLimits()); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
}
