// Package chat provides the Channel transport abstraction and its two
// implementations: newline-delimited JSON over a raw socket, and one JSON
// record per websocket text frame.
package chat

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a single outbound write on a websocket channel.
const writeWait = 10 * time.Second

// Channel is a bidirectional, record-delimited transport for one client.
// Send serializes and flushes one message; Receive blocks until a line of
// input arrives, returning io.EOF when the peer closes. Implementations must
// allow Send and Receive to be called from different goroutines, and Close
// to be called concurrently with both.
type Channel interface {
	Send(Message) error
	Receive() (string, error)
	Close() error
	RemoteAddr() string
}

type lineChannel struct {
	conn net.Conn
	sc   *bufio.Scanner

	mu sync.Mutex // serializes writes
	w  *bufio.Writer
}

// NewLineChannel wraps a stream connection in the newline-delimited JSON
// protocol. Inbound lines longer than maxLine fail the read.
func NewLineChannel(conn net.Conn, maxLine int64) Channel {
	sc := bufio.NewScanner(conn)
	// The scanner's cap is the larger of the initial buffer and the max, so
	// the initial buffer must not exceed the limit.
	initial := int64(1024)
	if maxLine < initial {
		initial = maxLine
	}
	sc.Buffer(make([]byte, 0, initial), int(maxLine))
	return &lineChannel{
		conn: conn,
		sc:   sc,
		w:    bufio.NewWriter(conn),
	}
}

func (c *lineChannel) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(data); err != nil {
		return err
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *lineChannel) Receive() (string, error) {
	if c.sc.Scan() {
		return strings.TrimSpace(c.sc.Text()), nil
	}
	if err := c.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (c *lineChannel) Close() error {
	return c.conn.Close()
}

func (c *lineChannel) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

type wsChannel struct {
	mu   sync.Mutex // serializes writes
	conn *websocket.Conn
}

// NewWebSocketChannel wraps an upgraded websocket connection. Each message
// travels as one text frame carrying a JSON record.
func NewWebSocketChannel(conn *websocket.Conn, maxMessage int64) Channel {
	conn.SetReadLimit(maxMessage)
	return &wsChannel{conn: conn}
}

func (c *wsChannel) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *wsChannel) Receive() (string, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseAbnormalClosure) {
			return "", io.EOF
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *wsChannel) Close() error {
	return c.conn.Close()
}

func (c *wsChannel) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// isExpectedCloseError reports whether an error is the ordinary fallout of a
// connection being torn down from the other side.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
