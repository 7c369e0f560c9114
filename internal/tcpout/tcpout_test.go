package tcpout

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uat978/internal/message"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func startListener(t *testing.T, format Format, header message.RawMessage) (*Listener, string) {
	t.Helper()
	l := New("127.0.0.1:0", format, header, testLogger())
	addr, err := l.Listen()
	require.NoError(t, err)

	stop := make(chan struct{})
	go l.Serve(stop)
	t.Cleanup(func() { close(stop) })
	return l, addr
}

func waitForClientCount(t *testing.T, l *Listener, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for client count %d, got %d", n, l.ClientCount())
}

func TestRawLegacyListener_NoHeaderLine(t *testing.T) {
	l, addr := startListener(t, FormatRawLegacy, message.RawMessage{})
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	waitForClientCount(t, l, 1)

	payload := make([]byte, 18)
	msg, ok := message.NewDownlink(payload, 1000, 0, -30, 0)
	require.True(t, ok)
	l.Publish(msg, nil)

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, byte('-'), line[0])
}

func TestRawListener_SendsHeaderFirst(t *testing.T) {
	header := message.NewMetadata(map[string]string{"version": "1"})
	l, addr := startListener(t, FormatRaw, header)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	waitForClientCount(t, l, 1)

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, byte('!'), line[0])
}

func TestListener_ClientDisconnectUnregisters(t *testing.T) {
	l, addr := startListener(t, FormatRawLegacy, message.RawMessage{})
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	waitForClientCount(t, l, 1)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && l.ClientCount() != 0 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, l.ClientCount())
}
