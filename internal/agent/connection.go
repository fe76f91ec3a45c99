// ABOUTME: Represents a single connected agent: its socket and its inbox.
// ABOUTME: Writes commands to the socket and hands buffered output to the correlator.

package agent

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection represents a connected agent with its TCP socket.
type Connection struct {
	// ID is the peer address, "ip:port".
	ID string
	// InstanceID distinguishes two connections that reuse the same ID.
	InstanceID  string
	ConnectedAt time.Time

	conn      net.Conn
	inbox     *Inbox
	closeOnce sync.Once
	closed    chan struct{}
	logger    *slog.Logger
}

// ConnectionParams holds the parameters for creating a new Connection.
type ConnectionParams struct {
	Conn   net.Conn
	Logger *slog.Logger
}

// NewConnection wraps an accepted socket. The ID is taken from the peer's
// remote address.
func NewConnection(params ConnectionParams) *Connection {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := params.Conn.RemoteAddr().String()
	return &Connection{
		ID:          id,
		InstanceID:  uuid.New().String(),
		ConnectedAt: time.Now(),
		conn:        params.Conn,
		inbox:       NewInbox(),
		closed:      make(chan struct{}),
		logger:      logger.With("agent_id", id),
	}
}

// Send writes payload to the agent in a single write. No framing is added.
func (c *Connection) Send(payload string) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	_, err := c.conn.Write([]byte(payload))
	return err
}

// Next returns the next buffered chunk of agent output, waiting up to timeout.
func (c *Connection) Next(timeout time.Duration) (string, bool) {
	return c.inbox.Next(timeout)
}

// Inbox returns the buffer fed by the receive loop.
func (c *Connection) Inbox() *Inbox {
	return c.inbox
}

// Close closes the socket and the inbox. Only the first call has any
// effect; errors from closing the socket are logged and dropped.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debug("closing connection", "error", err)
		}
		c.inbox.Close()
	})
}

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}
