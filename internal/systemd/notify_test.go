//go:build linux

package systemd

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func readNotify(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestNotify_SendsStates(t *testing.T) {
	conn := listenNotify(t)

	assert.True(t, NotifyReady())
	assert.Equal(t, "READY=1", readNotify(t, conn))

	assert.True(t, NotifyStatus("serving /srv"))
	assert.Equal(t, "STATUS=serving /srv", readNotify(t, conn))

	assert.True(t, NotifyStopping())
	assert.Equal(t, "STOPPING=1", readNotify(t, conn))
}

func TestNotify_NoSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	assert.False(t, NotifyReady())
	assert.False(t, NotifyStopping())
}
