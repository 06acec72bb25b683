package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConn adapts a WebSocket carrying one IRC line per message to a
// CRLF byte stream.
type WebSocketConn struct {
	ws *websocket.Conn

	rmu     sync.Mutex
	pending []byte

	wmu      sync.Mutex
	unsent   []byte
	textMode bool
}

func NewWebSocketConn(ws *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{ws: ws, textMode: ws.Subprotocol() != "binary.ircv3.net"}
}

func (c *WebSocketConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	for len(c.pending) == 0 {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		data = bytes.TrimRight(data, "\r\n")
		if len(data) == 0 {
			continue
		}
		c.pending = append(data, '\r', '\n')
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends each complete line in p as its own message. A partial line is
// held until its terminator arrives.
func (c *WebSocketConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.unsent = append(c.unsent, p...)
	mt := websocket.TextMessage
	if !c.textMode {
		mt = websocket.BinaryMessage
	}
	for {
		idx := bytes.IndexAny(c.unsent, "\r\n")
		if idx < 0 {
			return len(p), nil
		}
		line := c.unsent[:idx]
		rest := c.unsent[idx:]
		for len(rest) > 0 && (rest[0] == '\r' || rest[0] == '\n') {
			rest = rest[1:]
		}
		if len(line) > 0 {
			if err := c.ws.WriteMessage(mt, line); err != nil {
				return 0, err
			}
		}
		c.unsent = append(c.unsent[:0], rest...)
	}
}

func (c *WebSocketConn) Close() error {
	c.wmu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.wmu.Unlock()
	err := c.ws.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *WebSocketConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *WebSocketConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *WebSocketConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *WebSocketConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *WebSocketConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
