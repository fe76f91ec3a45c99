// ABOUTME: End-to-end tests for the relay server over real TCP sockets.
// ABOUTME: Covers accept, operator sessions, shutdown and listener failures.

package relay

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shellrelay/internal/config"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Listen.Port = 0
	cfg.Session.FirstOutputTimeout = 500 * time.Millisecond
	cfg.Session.SettleTimeout = 200 * time.Millisecond
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type runningServer struct {
	server *Server
	input  *io.PipeWriter
	out    *bytes.Buffer
	done   chan error
}

func startServer(t *testing.T, ctx context.Context) *runningServer {
	t.Helper()
	pr, pw := io.Pipe()
	out := &bytes.Buffer{}

	srv := New(testConfig(), Options{In: pr, Out: out}, discardLogger())
	require.NoError(t, srv.Listen())

	rs := &runningServer{server: srv, input: pw, out: out, done: make(chan error, 1)}
	go func() { rs.done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		pw.Close()
		srv.Shutdown()
	})
	return rs
}

func (rs *runningServer) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-rs.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
		return nil
	}
}

func dialAgent(t *testing.T, rs *runningServer) (net.Conn, string) {
	t.Helper()
	conn, err := net.Dial("tcp", rs.server.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	id := conn.LocalAddr().String()
	require.Eventually(t, func() bool {
		_, ok := rs.server.Agents().Get(id)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return conn, id
}

func TestServerWhoamiSession(t *testing.T) {
	rs := startServer(t, context.Background())
	agentConn, id := dialAgent(t, rs)

	commands := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(agentConn).ReadString('\n')
		commands <- line
		if err != nil {
			return
		}
		agentConn.Write([]byte("whoami\n"))
		time.Sleep(50 * time.Millisecond)
		agentConn.Write([]byte("root\n"))
	}()

	_, err := io.WriteString(rs.input, "use "+id+"\nwhoami\nexit\nexit\n")
	require.NoError(t, err)
	require.NoError(t, rs.wait(t))

	assert.Equal(t, "whoami\n", <-commands)
	assert.Contains(t, rs.out.String(), "\nroot\n")
	assert.NotContains(t, rs.out.String(), "\nwhoami\n")

	// Shutdown closed the agent socket.
	agentConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = agentConn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Equal(t, 0, rs.server.Agents().Len())
}

func TestServerTracksDisconnects(t *testing.T) {
	rs := startServer(t, context.Background())
	first, firstID := dialAgent(t, rs)
	_, secondID := dialAgent(t, rs)

	assert.ElementsMatch(t, []string{firstID, secondID}, rs.server.Agents().List())

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool {
		return rs.server.Agents().Len() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{secondID}, rs.server.Agents().List())

	_, err := io.WriteString(rs.input, "exit\n")
	require.NoError(t, err)
	require.NoError(t, rs.wait(t))
}

func TestServerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rs := startServer(t, ctx)
	agentConn, _ := dialAgent(t, rs)

	cancel()
	require.NoError(t, rs.wait(t))

	agentConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := agentConn.Read(make([]byte, 1))
	assert.Error(t, err)

	_, err = net.DialTimeout("tcp", rs.server.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err)
}

func TestServerListenFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := testConfig()
	cfg.Listen.Port = occupied.Addr().(*net.TCPAddr).Port

	srv := New(cfg, Options{In: bytes.NewReader(nil), Out: io.Discard}, discardLogger())
	err = srv.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

func TestServerRunRequiresListen(t *testing.T) {
	srv := New(testConfig(), Options{In: bytes.NewReader(nil), Out: io.Discard}, discardLogger())
	assert.Error(t, srv.Run(context.Background()))
}
