// ABOUTME: Sends one command to an agent and collects its output within a timeout window.
// ABOUTME: Applies the first-output/settle timeouts, echo suppression and result classification.

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default windowing timeouts.
const (
	DefaultFirstOutputTimeout = 2 * time.Second
	DefaultSettleTimeout      = 200 * time.Millisecond
)

// ErrSendFailed indicates the command could not be written to the agent.
// The session cannot continue after it.
var ErrSendFailed = errors.New("send failed")

// Target is the agent end of a session.
type Target interface {
	// Send writes the payload to the agent as a single write.
	Send(payload string) error
	// Next returns the next chunk of agent output, waiting up to timeout.
	Next(timeout time.Duration) (string, bool)
}

// Outcome classifies what came back for a command.
type Outcome int

const (
	// OutcomeNoOutput means nothing arrived within the first-output timeout.
	OutcomeNoOutput Outcome = iota
	// OutcomeEchoOnly means the only thing collected was the command's echo.
	OutcomeEchoOnly
	// OutcomeOutput means there is output to show.
	OutcomeOutput
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoOutput:
		return "no_output"
	case OutcomeEchoOnly:
		return "echo_only"
	case OutcomeOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Result is the correlated response to one dispatched command.
type Result struct {
	// DispatchID tags the command in logs and errors.
	DispatchID string
	// Command is the text sent, without the trailing newline.
	Command string
	// Chunks are the raw chunks drained from the agent, in arrival order.
	Chunks []string
	// Lines is the output left after echo suppression.
	Lines   []string
	Outcome Outcome
}

// Text returns the lines joined with newlines.
func (r *Result) Text() string {
	return strings.Join(r.Lines, "\n")
}

// Correlator dispatches commands and windows their responses.
type Correlator struct {
	FirstOutputTimeout time.Duration
	SettleTimeout      time.Duration
	logger             *slog.Logger
}

// NewCorrelator creates a Correlator. Zero timeouts fall back to the defaults.
func NewCorrelator(firstOutput, settle time.Duration, logger *slog.Logger) *Correlator {
	if firstOutput <= 0 {
		firstOutput = DefaultFirstOutputTimeout
	}
	if settle <= 0 {
		settle = DefaultSettleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		FirstOutputTimeout: firstOutput,
		SettleTimeout:      settle,
		logger:             logger.With("component", "correlator"),
	}
}

// Run resolves line, sends it to target and collects the response. A
// returned error wrapping ErrSendFailed ends the session and comes with a
// Result carrying only the command and its dispatch ID; an error wrapping
// ErrMissingArgument means nothing was sent.
func (c *Correlator) Run(target Target, line string) (*Result, error) {
	command, err := Resolve(line)
	if err != nil {
		return nil, err
	}

	dispatchID := uuid.New().String()
	if err := target.Send(command + "\n"); err != nil {
		c.logger.Warn("dispatch failed", "dispatch_id", dispatchID, "error", err)
		return &Result{DispatchID: dispatchID, Command: command},
			fmt.Errorf("%w (dispatch %s): %w", ErrSendFailed, dispatchID, err)
	}
	c.logger.Debug("command dispatched", "dispatch_id", dispatchID, "command", command)

	chunks := c.collect(target)
	result := classify(command, chunks)
	result.DispatchID = dispatchID

	c.logger.Debug("response collected",
		"dispatch_id", dispatchID,
		"chunks", len(chunks),
		"outcome", result.Outcome.String(),
	)
	return result, nil
}

// collect waits up to FirstOutputTimeout for a first chunk, then drains
// chunks until SettleTimeout passes with nothing new.
func (c *Correlator) collect(target Target) []string {
	first, ok := target.Next(c.FirstOutputTimeout)
	if !ok {
		return nil
	}

	chunks := []string{first}
	for {
		chunk, ok := target.Next(c.SettleTimeout)
		if !ok {
			return chunks
		}
		chunks = append(chunks, chunk)
	}
}

// classify applies echo suppression to the collected chunks.
func classify(command string, chunks []string) *Result {
	result := &Result{Command: command, Chunks: chunks}
	if len(chunks) == 0 {
		result.Outcome = OutcomeNoOutput
		return result
	}

	text := strings.TrimRight(strings.Join(chunks, ""), "\r\n")
	lines := strings.Split(text, "\n")
	if strings.TrimSpace(lines[0]) == strings.TrimSpace(command) {
		lines = lines[1:]
	}

	if len(lines) == 0 {
		result.Outcome = OutcomeEchoOnly
		return result
	}
	result.Lines = lines
	result.Outcome = OutcomeOutput
	return result
}
