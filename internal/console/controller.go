// ABOUTME: Operator state machine selecting the active agent and driving the correlator.
// ABOUTME: Handles list/use/help/exit at the main menu and free text inside an agent session.

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/shellrelay/internal/agent"
	"github.com/2389/shellrelay/internal/session"
)

// State is the controller's position in the menu hierarchy.
type State int

const (
	StateMainMenu State = iota
	StateAgentSession
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateMainMenu:
		return "main_menu"
	case StateAgentSession:
		return "agent_session"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// DefaultPrompt is shown at the main menu.
const DefaultPrompt = "relay> "

const usageLine = "Available commands: list, use <agent_id>, help, exit"

var (
	okColor     = color.New(color.FgGreen)
	errColor    = color.New(color.FgRed)
	infoColor   = color.New(color.FgYellow)
	promptColor = color.New(color.FgCyan)
)

// Options configures a Controller.
type Options struct {
	Agents     *agent.Manager
	Correlator *session.Correlator
	In         io.Reader
	Out        io.Writer
	// Prompt is the main menu prompt. Defaults to DefaultPrompt.
	Prompt string
	// ShowPrompt prints prompts before each line is read.
	ShowPrompt bool
	// Interrupts delivers operator interrupts (Ctrl-C). Each one acts as
	// exit at the current level. Nil disables interrupt handling.
	Interrupts <-chan os.Signal
	Logger     *slog.Logger
}

// Controller drives agent sessions from operator input.
type Controller struct {
	agents     *agent.Manager
	correlator *session.Correlator
	in         io.Reader
	out        io.Writer
	prompt     string
	showPrompt bool
	interrupts <-chan os.Signal
	logger     *slog.Logger

	state  State
	active string
}

// New creates a Controller in the main menu.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prompt := opts.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	correlator := opts.Correlator
	if correlator == nil {
		correlator = session.NewCorrelator(0, 0, logger)
	}
	return &Controller{
		agents:     opts.Agents,
		correlator: correlator,
		in:         opts.In,
		out:        opts.Out,
		prompt:     prompt,
		showPrompt: opts.ShowPrompt,
		interrupts: opts.Interrupts,
		logger:     logger.With("component", "console"),
		state:      StateMainMenu,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Active returns the agent ID of the current session, or "".
func (c *Controller) Active() string {
	return c.active
}

// Run reads operator input until the controller reaches SHUTDOWN, input
// ends, or ctx is cancelled. An interrupt leaves the current session, or
// shuts down from the main menu. It returns the error that stopped the
// input reader, if any.
func (c *Controller) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	lines, readErr := c.readLines(done)

	c.printPrompt()
	for c.state != StateShutdown {
		select {
		case <-ctx.Done():
			c.logger.Info("context cancelled, shutting down")
			c.state = StateShutdown
			c.active = ""
			return nil
		case <-c.interrupts:
			fmt.Fprintln(c.out)
			c.exitLevel()
		case line, ok := <-lines:
			if !ok {
				c.exitLevel()
				if c.state == StateShutdown {
					return <-readErr
				}
				continue
			}
			c.Handle(line)
		}
		c.printPrompt()
	}
	return nil
}

// readLines scans c.in on its own goroutine. The lines channel is closed at
// end of input; the error channel then yields the scanner error (or nil).
func (c *Controller) readLines(done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				errCh <- nil
				return
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
			errCh <- fmt.Errorf("reading operator input: %w", err)
			return
		}
		errCh <- nil
	}()
	return lines, errCh
}

// exitLevel behaves like exit at the current level.
func (c *Controller) exitLevel() {
	if c.state == StateAgentSession {
		c.leaveSession()
		return
	}
	c.shutdown()
}

// Handle processes one line of operator input in the current state.
func (c *Controller) Handle(line string) {
	switch c.state {
	case StateMainMenu:
		c.handleMain(strings.TrimSpace(line))
	case StateAgentSession:
		c.handleSession(strings.TrimSpace(line))
	}
}

func (c *Controller) handleMain(input string) {
	switch {
	case input == "list":
		c.printAgents()
	case input == "help":
		c.printHelp()
	case input == "exit":
		c.shutdown()
	case input == "use" || strings.HasPrefix(input, "use "):
		id := strings.TrimSpace(strings.TrimPrefix(input, "use"))
		if id == "" {
			fmt.Fprintln(c.out, "Usage: use <agent_id>")
			return
		}
		c.enterSession(id)
	default:
		fmt.Fprintln(c.out, usageLine)
	}
}

func (c *Controller) enterSession(id string) {
	if _, ok := c.agents.Get(id); !ok {
		errColor.Fprintf(c.out, "[!] %v: %s\n", agent.ErrAgentNotFound, id)
		return
	}
	c.state = StateAgentSession
	c.active = id
	c.logger.Debug("session started", "agent_id", id)
	okColor.Fprintf(c.out, "[+] Now controlling %s. Type 'exit' to return to the main menu.\n", id)
}

func (c *Controller) leaveSession() {
	c.logger.Debug("session ended", "agent_id", c.active)
	c.state = StateMainMenu
	c.active = ""
}

func (c *Controller) shutdown() {
	infoColor.Fprintln(c.out, "[!] Shutting down the relay...")
	c.state = StateShutdown
	c.active = ""
}

func (c *Controller) handleSession(input string) {
	if strings.EqualFold(input, "exit") {
		c.leaveSession()
		return
	}
	if input == "" {
		return
	}

	conn, ok := c.agents.Get(c.active)
	if !ok {
		errColor.Fprintf(c.out, "[!] %s disconnected, returning to the main menu\n", c.active)
		c.leaveSession()
		return
	}

	result, err := c.correlator.Run(conn, input)
	switch {
	case errors.Is(err, session.ErrMissingArgument):
		errColor.Fprintf(c.out, "[!] %v\n", err)
	case err != nil:
		errColor.Fprintf(c.out, "[!] Error sending command: %v\n", err)
		c.leaveSession()
	default:
		session.Present(c.out, result)
	}
}

func (c *Controller) printAgents() {
	ids := c.agents.List()
	fmt.Fprintln(c.out, "Connected agents:")
	if len(ids) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}
	for _, id := range ids {
		fmt.Fprintf(c.out, " - %s\n", id)
	}
}

func (c *Controller) printHelp() {
	fmt.Fprintln(c.out, "Main prompt commands:")
	fmt.Fprintln(c.out, "  list                 list connected agents")
	fmt.Fprintln(c.out, "  use <agent_id>       open a session with an agent")
	fmt.Fprintln(c.out, "  help                 show this help")
	fmt.Fprintln(c.out, "  exit                 close every connection and stop the relay")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Shortcuts (inside an agent session):")
	for _, s := range session.Shortcuts() {
		fmt.Fprintf(c.out, "  %-20s %s\n", s.Token, s.Help)
	}
	fmt.Fprintln(c.out, "  screenshot           sent as-is, needs agent support")
	fmt.Fprintln(c.out, "  exit                 return to the main prompt")
	fmt.Fprintln(c.out, "Any other line is sent to the agent unchanged.")
}

func (c *Controller) printPrompt() {
	if !c.showPrompt {
		return
	}
	switch c.state {
	case StateMainMenu:
		promptColor.Fprint(c.out, c.prompt)
	case StateAgentSession:
		promptColor.Fprintf(c.out, "%s> ", c.active)
	}
}
