// ABOUTME: Tests for shortcut resolution, response windowing and presentation.
// ABOUTME: Uses a scripted fake agent that replays timed chunks after each command.

package session

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// timedChunk is a chunk the fake agent emits after a delay.
type timedChunk struct {
	after time.Duration
	text  string
}

// fakeTarget records what is sent and replays a script of chunks into an
// inbox-like channel once a command arrives.
type fakeTarget struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
	script  []timedChunk
	out     chan string
}

func newFakeTarget(script ...timedChunk) *fakeTarget {
	return &fakeTarget{script: script, out: make(chan string, 64)}
}

func (f *fakeTarget) Send(payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, payload)
	go func(script []timedChunk) {
		for _, c := range script {
			time.Sleep(c.after)
			f.out <- c.text
		}
	}(f.script)
	return nil
}

func (f *fakeTarget) Next(timeout time.Duration) (string, bool) {
	select {
	case chunk := <-f.out:
		return chunk, true
	case <-time.After(timeout):
		return "", false
	}
}

func (f *fakeTarget) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"whoami", "whoami"},
		{"listfiles", "ls -la"},
		{"listfiles win", "dir"},
		{"LISTFILES Windows", "dir"},
		{"pwd", "pwd"},
		{"cat notes.txt", "cat notes.txt"},
		{"cat notes.txt win", "type notes.txt"},
		{"cat my notes.txt win", "type my notes.txt"},
		{"cat win", "cat win"},
		{"echo hi", "echo hi"},
		{"screenshot", "screenshot"},
		{"  uname -a  ", "  uname -a  "},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Resolve(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCatWithoutFile(t *testing.T) {
	_, err := Resolve("cat")
	assert.ErrorIs(t, err, ErrMissingArgument)
}

func TestShortcutsTable(t *testing.T) {
	tokens := make([]string, 0)
	for _, s := range Shortcuts() {
		tokens = append(tokens, s.Token)
		assert.NotEmpty(t, s.Command)
		assert.NotEmpty(t, s.Help)
	}
	assert.Equal(t, []string{"whoami", "listfiles", "pwd", "cat"}, tokens)
}

func TestCorrelatorDispatch(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"listfiles", "ls -la\n"},
		{"listfiles win", "dir\n"},
		{"echo hi", "echo hi\n"},
	}

	c := NewCorrelator(20*time.Millisecond, 10*time.Millisecond, discardLogger())
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			target := newFakeTarget()
			_, err := c.Run(target, tt.line)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, target.Sent())
		})
	}
}

func TestCorrelatorDispatchIDs(t *testing.T) {
	c := NewCorrelator(20*time.Millisecond, 10*time.Millisecond, discardLogger())

	first, err := c.Run(newFakeTarget(), "whoami")
	require.NoError(t, err)
	second, err := c.Run(newFakeTarget(), "whoami")
	require.NoError(t, err)

	assert.NotEmpty(t, first.DispatchID)
	assert.NotEqual(t, first.DispatchID, second.DispatchID)
}

func TestCorrelatorWindowing(t *testing.T) {
	c := NewCorrelator(300*time.Millisecond, 100*time.Millisecond, discardLogger())

	t.Run("coalesces chunks arriving within the settle timeout", func(t *testing.T) {
		target := newFakeTarget(
			timedChunk{after: 10 * time.Millisecond, text: "A"},
			timedChunk{after: 30 * time.Millisecond, text: "B\n"},
		)

		result, err := c.Run(target, "echo hi")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B\n"}, result.Chunks)
		assert.Equal(t, OutcomeOutput, result.Outcome)
		assert.Equal(t, "AB", result.Text())
	})

	t.Run("stops at the first settle timeout", func(t *testing.T) {
		target := newFakeTarget(
			timedChunk{after: 10 * time.Millisecond, text: "early\n"},
			timedChunk{after: 250 * time.Millisecond, text: "late\n"},
		)

		result, err := c.Run(target, "echo hi")
		require.NoError(t, err)
		assert.Equal(t, []string{"early\n"}, result.Chunks)

		// The late chunk stays buffered and lands in the next window.
		next, err := c.Run(newFakeTargetSharing(target), "pwd")
		require.NoError(t, err)
		assert.Equal(t, []string{"late\n"}, next.Chunks)
	})

	t.Run("nothing within the first timeout", func(t *testing.T) {
		target := newFakeTarget(timedChunk{after: 500 * time.Millisecond, text: "too late"})

		start := time.Now()
		result, err := c.Run(target, "sleep 10")
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoOutput, result.Outcome)
		assert.Empty(t, result.Chunks)
		assert.Less(t, time.Since(start), 450*time.Millisecond)
	})
}

// newFakeTargetSharing returns a target with no script that reads from the
// same output channel as other.
func newFakeTargetSharing(other *fakeTarget) *fakeTarget {
	return &fakeTarget{out: other.out}
}

func TestCorrelatorEchoSuppression(t *testing.T) {
	c := NewCorrelator(200*time.Millisecond, 60*time.Millisecond, discardLogger())

	t.Run("drops a first line equal to the command", func(t *testing.T) {
		target := newFakeTarget(
			timedChunk{after: 5 * time.Millisecond, text: "whoami\n"},
			timedChunk{after: 20 * time.Millisecond, text: "root\n"},
		)

		result, err := c.Run(target, "whoami")
		require.NoError(t, err)
		assert.Equal(t, OutcomeOutput, result.Outcome)
		assert.Equal(t, "root", result.Text())
	})

	t.Run("compares against the resolved command", func(t *testing.T) {
		target := newFakeTarget(timedChunk{after: 5 * time.Millisecond, text: "  ls -la \r\ntotal 0\r\n"})

		result, err := c.Run(target, "listfiles")
		require.NoError(t, err)
		assert.Equal(t, []string{"total 0"}, result.Lines)
	})

	t.Run("only the first line is inspected", func(t *testing.T) {
		target := newFakeTarget(timedChunk{after: 5 * time.Millisecond, text: "x\npwd\npwd\n"})

		result, err := c.Run(target, "pwd")
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "pwd", "pwd"}, result.Lines)
	})

	t.Run("echo only", func(t *testing.T) {
		target := newFakeTarget(timedChunk{after: 5 * time.Millisecond, text: "pwd\n"})

		result, err := c.Run(target, "pwd")
		require.NoError(t, err)
		assert.Equal(t, OutcomeEchoOnly, result.Outcome)
		assert.Empty(t, result.Lines)
		assert.Equal(t, []string{"pwd\n"}, result.Chunks)
	})
}

func TestCorrelatorSendFailure(t *testing.T) {
	c := NewCorrelator(time.Second, 100*time.Millisecond, discardLogger())
	target := newFakeTarget()
	target.sendErr = errors.New("broken pipe")

	start := time.Now()
	result, err := c.Run(target, "whoami")
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	require.NotNil(t, result)
	assert.Equal(t, "whoami", result.Command)
	assert.Empty(t, result.Chunks)
	require.NotEmpty(t, result.DispatchID)
	assert.Contains(t, err.Error(), "dispatch "+result.DispatchID)
}

func TestCorrelatorUsageFaultSendsNothing(t *testing.T) {
	c := NewCorrelator(time.Second, 100*time.Millisecond, discardLogger())
	target := newFakeTarget()

	_, err := c.Run(target, "cat")
	assert.ErrorIs(t, err, ErrMissingArgument)
	assert.Empty(t, target.Sent())
}

func TestNewCorrelatorDefaults(t *testing.T) {
	c := NewCorrelator(0, 0, nil)
	assert.Equal(t, DefaultFirstOutputTimeout, c.FirstOutputTimeout)
	assert.Equal(t, DefaultSettleTimeout, c.SettleTimeout)
}

func TestPresent(t *testing.T) {
	t.Run("output", func(t *testing.T) {
		var buf bytes.Buffer
		Present(&buf, &Result{Outcome: OutcomeOutput, Lines: []string{"a", "b"}})
		assert.Equal(t, "a\nb\n", buf.String())
	})

	t.Run("no output and echo only differ", func(t *testing.T) {
		var none, echo bytes.Buffer
		Present(&none, &Result{Outcome: OutcomeNoOutput})
		Present(&echo, &Result{Outcome: OutcomeEchoOnly})

		assert.Contains(t, none.String(), "no immediate output")
		assert.Contains(t, echo.String(), "only an echo")
		assert.NotEqual(t, none.String(), echo.String())
	})
}
