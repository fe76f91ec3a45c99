// ABOUTME: Shared helpers for agent package tests.
// ABOUTME: Provides in-memory sockets with distinct remote addresses.

package agent

import (
	"io"
	"log/slog"
	"net"
	"testing"
)

// addrConn overrides the remote address of a net.Pipe end, which otherwise
// reports "pipe" for every connection.
type addrConn struct {
	net.Conn
	remote net.Addr
}

func (c *addrConn) RemoteAddr() net.Addr { return c.remote }

// newPipe returns the relay side (with the given peer address) and the
// agent side of an in-memory connection.
func newPipe(t *testing.T, ip string, port int) (relaySide net.Conn, agentSide net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return &addrConn{Conn: a, remote: &net.TCPAddr{IP: net.ParseIP(ip), Port: port}}, b
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
