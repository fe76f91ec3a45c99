// ABOUTME: Per-connection read loop that feeds an agent's inbox.
// ABOUTME: Ends on EOF, a zero-length read or any error, then cleans up the agent.

package agent

import (
	"errors"
	"io"
	"net"
)

// ReadChunkSize is the largest single read taken off an agent socket.
const ReadChunkSize = 4096

// Receive reads from the agent until it disconnects, pushing each decoded
// read onto its inbox as one chunk. When the loop ends the agent is
// unregistered and its socket and inbox are closed. Receive blocks; run it
// in its own goroutine.
func (m *Manager) Receive(c *Connection) {
	logger := c.logger.With("instance_id", c.InstanceID)
	dec := newDecoder()
	buf := make([]byte, ReadChunkSize)

	defer func() {
		if rest := dec.flush(); rest != "" {
			c.inbox.Push(rest)
		}
		m.unregisterConn(c)
		c.Close()
	}()

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			if text := dec.decode(buf[:n], false); text != "" {
				c.inbox.Push(text)
				logger.Debug("chunk received", "bytes", n, "buffered", c.inbox.Len(), "text", text)
			}
		}

		switch {
		case err == nil && n == 0:
			logger.Debug("zero-length read, treating as disconnect")
			return
		case errors.Is(err, io.EOF):
			logger.Debug("agent closed connection")
			return
		case errors.Is(err, net.ErrClosed):
			logger.Debug("connection closed locally")
			return
		case err != nil:
			logger.Warn("read failed", "error", err)
			return
		}
	}
}
