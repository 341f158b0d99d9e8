package chat

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// newTestServer returns a server with a throwaway upload directory and a
// rate limit high enough to stay out of the way of scripted clients.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := NewConfig()
	cfg.UploadDir = t.TempDir()
	cfg.RateLimit.Burst = 1000

	srv, err := NewServer(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = srv.Shutdown(waitFor) })
	return srv
}

// testClient is the peer end of an in-memory connection served by
// ServeChannel. A background reader decodes every wire record into msgs,
// preserving arrival order; msgs is closed when the connection dies.
type testClient struct {
	t    *testing.T
	conn net.Conn
	msgs chan Message
}

func dialTestServer(t *testing.T, srv *Server) *testClient {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	go srv.ServeChannel(NewLineChannel(serverSide, srv.cfg.MaxMessageSize))

	tc := &testClient{
		t:    t,
		conn: clientSide,
		msgs: make(chan Message, 128),
	}
	go tc.readAll()

	t.Cleanup(func() { _ = tc.conn.Close() })
	return tc
}

func (tc *testClient) readAll() {
	dec := json.NewDecoder(tc.conn)
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			close(tc.msgs)
			return
		}
		tc.msgs <- msg
	}
}

func (tc *testClient) sendLine(line string) {
	tc.t.Helper()
	_, err := tc.conn.Write([]byte(line + "\n"))
	require.NoError(tc.t, err)
}

// expect consumes messages until one satisfies the predicate, failing the
// test on timeout or closed connection. Unrelated traffic (such as join
// notices from other clients) is skipped.
func (tc *testClient) expect(desc string, pred func(Message) bool) Message {
	tc.t.Helper()

	timeout := time.After(waitFor)
	for {
		select {
		case msg, ok := <-tc.msgs:
			if !ok {
				tc.t.Fatalf("connection closed while waiting for %s", desc)
			}
			if pred(msg) {
				return msg
			}
		case <-timeout:
			tc.t.Fatalf("timed out waiting for %s", desc)
		}
	}
}

func (tc *testClient) expectKind(kind Kind) Message {
	tc.t.Helper()
	return tc.expect(string(kind)+" message", func(m Message) bool { return m.Type == kind })
}

// expectClosed waits for the server to drop the connection.
func (tc *testClient) expectClosed() {
	tc.t.Helper()

	timeout := time.After(waitFor)
	for {
		select {
		case _, ok := <-tc.msgs:
			if !ok {
				return
			}
		case <-timeout:
			tc.t.Fatal("timed out waiting for connection close")
		}
	}
}

// handshake walks the two prompts and the welcome message.
func (tc *testClient) handshake(name, room string) {
	tc.t.Helper()

	tc.expectKind(KindRequest)
	tc.sendLine(name)
	tc.expectKind(KindRequest)
	tc.sendLine(room)
	tc.expectKind(KindSuccess)
}

func joinTestClient(t *testing.T, srv *Server, name, room string) *testClient {
	t.Helper()

	tc := dialTestServer(t, srv)
	tc.handshake(name, room)
	return tc
}
