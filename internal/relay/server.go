// ABOUTME: Relay server that owns the agent listener, registry and operator console.
// ABOUTME: Runs the accept loop and console together and tears everything down on exit.

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/2389/shellrelay/internal/agent"
	"github.com/2389/shellrelay/internal/config"
	"github.com/2389/shellrelay/internal/console"
	"github.com/2389/shellrelay/internal/session"
)

// Options holds the operator console streams.
type Options struct {
	In         io.Reader
	Out        io.Writer
	ShowPrompt bool
	// Interrupts are forwarded to the console, where they act as exit at
	// the current level.
	Interrupts <-chan os.Signal
}

// Server is a running relay.
type Server struct {
	config   *config.Config
	agents   *agent.Manager
	console  *console.Controller
	listener net.Listener
	logger   *slog.Logger

	shutdownOnce sync.Once
}

// New creates a Server from cfg. Nothing is bound until Listen is called.
func New(cfg *config.Config, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	agents := agent.NewManager(logger)
	correlator := session.NewCorrelator(cfg.Session.FirstOutputTimeout, cfg.Session.SettleTimeout, logger)

	return &Server{
		config: cfg,
		agents: agents,
		console: console.New(console.Options{
			Agents:     agents,
			Correlator: correlator,
			In:         opts.In,
			Out:        opts.Out,
			Prompt:     cfg.Console.Prompt,
			ShowPrompt: opts.ShowPrompt,
			Interrupts: opts.Interrupts,
			Logger:     logger,
		}),
		logger: logger.With("component", "relay"),
	}
}

// Listen binds the agent listener.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Addr(), err)
	}
	s.listener = ln
	s.logger.Info("listening for agents", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address. Listen must have succeeded.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Agents returns the agent registry.
func (s *Server) Agents() *agent.Manager {
	return s.agents
}

// Run accepts agents and runs the operator console until the console shuts
// down, the context is cancelled or accepting fails. Listen must be called
// first.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("relay: Run called before Listen")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.acceptLoop()
	})

	g.Go(func() error {
		defer s.Shutdown()
		return s.console.Run(gctx)
	})

	return g.Wait()
}

// acceptLoop hands every accepted socket to the registry. It returns nil
// once the listener is closed.
func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("accept timed out", "error", err)
				continue
			}
			return fmt.Errorf("accepting agent: %w", err)
		}

		if _, err := s.agents.Attach(conn); err != nil {
			s.logger.Warn("rejecting agent",
				"remote_addr", conn.RemoteAddr().String(),
				"error", err,
			)
		}
	}
}

// Shutdown closes every agent connection and the listener, ignoring errors.
// It is safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutting down relay", "agents", s.agents.Len())
		s.agents.CloseAll()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("closing listener", "error", err)
			}
		}
	})
}
