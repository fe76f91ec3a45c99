// ABOUTME: Unbounded FIFO of text chunks received from one agent.
// ABOUTME: Single producer (the receive loop), single consumer with timed waits.

package agent

import (
	"sync"
	"time"
)

// Inbox buffers chunks in arrival order. Chunks are never merged or split.
type Inbox struct {
	mu     sync.Mutex
	chunks []string
	closed bool

	// signal has capacity 1 and is closed by Close, so a waiting consumer
	// wakes on either a push or a close.
	signal chan struct{}
}

// NewInbox creates an empty, open Inbox.
func NewInbox() *Inbox {
	return &Inbox{
		signal: make(chan struct{}, 1),
	}
}

// Push appends a chunk. It returns false if the Inbox is already closed.
func (b *Inbox) Push(chunk string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	b.chunks = append(b.chunks, chunk)

	select {
	case b.signal <- struct{}{}:
	default:
	}
	return true
}

// Next removes and returns the oldest chunk, waiting up to timeout for one
// to arrive. ok is false when the timeout expires, or when the Inbox is
// closed and has nothing left.
func (b *Inbox) Next(timeout time.Duration) (chunk string, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		b.mu.Lock()
		if len(b.chunks) > 0 {
			chunk = b.chunks[0]
			b.chunks[0] = ""
			b.chunks = b.chunks[1:]
			b.mu.Unlock()
			return chunk, true
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return "", false
		}

		select {
		case <-b.signal:
		case <-timer.C:
			return "", false
		}
	}
}

// Len reports how many chunks are waiting.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Close stops further pushes. Chunks already buffered stay readable.
// It is safe to call multiple times.
func (b *Inbox) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.signal)
	}
}

// Closed reports whether Close has been called.
func (b *Inbox) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
