package systemd

import (
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) *net.UnixConn {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func receive(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	n := NewNotifier(nil, quiet())
	n.Ready()
	n.Stopping()
}

func TestNotifierReadyAndStatus(t *testing.T) {
	conn := listen(t)
	t.Setenv("WATCHDOG_USEC", "")

	n := NewNotifier(func() string { return "2 subdevices, 1 streaming" }, quiet())
	n.Ready()
	assert.Equal(t, "READY=1", receive(t, conn))
	assert.Equal(t, "STATUS=2 subdevices, 1 streaming", receive(t, conn))

	n.Stopping()
	assert.Equal(t, "STOPPING=1", receive(t, conn))
}

func TestNotifierWatchdog(t *testing.T) {
	conn := listen(t)
	t.Setenv("WATCHDOG_USEC", "100000")
	t.Setenv("WATCHDOG_PID", "")

	n := NewNotifier(nil, quiet())
	n.Ready()
	assert.Equal(t, "READY=1", receive(t, conn))

	seen := false
	for i := 0; i < 5 && !seen; i++ {
		seen = strings.Contains(receive(t, conn), "WATCHDOG=1")
	}
	assert.True(t, seen)

	n.Stopping()
}
