package chat

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineChannelSendWritesOneRecordPerLine(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	ch := NewLineChannel(serverSide, 4096)

	lines := make(chan string, 1)
	go func() {
		r := bufio.NewReader(clientSide)
		line, err := r.ReadString('\n')
		if err != nil {
			close(lines)
			return
		}
		lines <- line
	}()

	require.NoError(t, ch.Send(System("hello")))

	line, ok := <-lines
	require.True(t, ok, "peer should receive one line")
	assert.True(t, strings.HasSuffix(line, "\n"))

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(line), &msg))
	assert.Equal(t, KindSystem, msg.Type)
	assert.Equal(t, "hello", msg.Content)
}

func TestLineChannelReceiveTrimsWhitespace(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	ch := NewLineChannel(serverSide, 4096)

	go func() {
		_, _ = clientSide.Write([]byte("  /help \n"))
	}()

	line, err := ch.Receive()
	require.NoError(t, err)
	assert.Equal(t, "/help", line)
}

func TestLineChannelReceiveReportsEOFOnPeerClose(t *testing.T) {
	serverSide, clientSide := net.Pipe()

	ch := NewLineChannel(serverSide, 4096)
	require.NoError(t, clientSide.Close())

	_, err := ch.Receive()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineChannelRejectsOversizedLines(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	ch := NewLineChannel(serverSide, 64)

	go func() {
		_, _ = clientSide.Write([]byte(strings.Repeat("x", 256) + "\n"))
	}()

	_, err := ch.Receive()
	assert.Error(t, err, "a line past the limit must fail the read, not be truncated")
}
