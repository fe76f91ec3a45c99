// ABOUTME: Entry point for the shellrelay operator console
// ABOUTME: Listens for agents and drives shell-style sessions against them

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/2389/shellrelay/internal/config"
	"github.com/2389/shellrelay/internal/relay"
)

// Version is set at build time.
var version = "dev"

const banner = `
     _          _ _          _
 ___| |__   ___| | |_ __ ___| | __ _ _   _
/ __| '_ \ / _ \ | | '__/ _ \ |/ _' | | | |
\__ \ | | |  __/ | | | |  __/ | (_| | |_| |
|___/_| |_|\___|_|_|_|  \___|_|\__,_|\__, |
                                     |___/
`

// getConfigPath returns the default path to the relay config file.
// Priority: SHELLRELAY_CONFIG env var > XDG_CONFIG_HOME/shellrelay/relay.yaml > ~/.config/shellrelay/relay.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SHELLRELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "shellrelay", "relay.yaml")
}

func usage() {
	fmt.Println("Usage: shellrelay [command] [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Listen for agents and open the operator console (default)")
	fmt.Println("  init       Create a new config file interactively")
	fmt.Println("  version    Print the version")
	fmt.Println()
	fmt.Println("Run 'shellrelay serve --help' for serve flags.")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	command, args := "serve", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "serve":
		err = runServe(ctx, args)
	case "init":
		err = runInit(args)
	case "version":
		fmt.Println(version)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// serveFlags holds the command-line overrides for serve.
type serveFlags struct {
	configPath    string
	host          string
	port          int
	firstTimeout  string
	settleTimeout string
	logLevel      string
	logFormat     string
	noColor       bool
}

func parseServeFlags(args []string) (*pflag.FlagSet, *serveFlags, error) {
	f := &serveFlags{}
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (YAML or TOML)")
	fs.StringVar(&f.host, "host", "", "listen address for agents")
	fs.IntVarP(&f.port, "port", "p", 0, "listen port for agents")
	fs.StringVar(&f.firstTimeout, "first-timeout", "", "how long to wait for the first chunk of output")
	fs.StringVar(&f.settleTimeout, "settle-timeout", "", "gap between chunks that ends a response")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "text or json")
	fs.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return fs, f, nil
}

// loadConfig resolves the config file and applies flag overrides. An
// explicit --config or SHELLRELAY_CONFIG must exist; the XDG default is
// only read when present.
func loadConfig(fs *pflag.FlagSet, f *serveFlags) (*config.Config, string, error) {
	path := f.configPath
	explicit := path != "" || os.Getenv("SHELLRELAY_CONFIG") != ""
	if path == "" {
		path = getConfigPath()
	}

	var cfg *config.Config
	if _, statErr := os.Stat(path); statErr == nil || explicit {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		path = "(defaults)"
	}

	if fs.Changed("host") {
		cfg.Listen.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Listen.Port = f.port
	}
	if fs.Changed("first-timeout") {
		cfg.Session.FirstOutputTimeoutRaw = f.firstTimeout
	}
	if fs.Changed("settle-timeout") {
		cfg.Session.SettleTimeoutRaw = f.settleTimeout
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if fs.Changed("no-color") {
		cfg.Console.NoColor = f.noColor
	}

	if err := cfg.ParseDurations(); err != nil {
		return nil, "", fmt.Errorf("parsing flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("validating config: %w", err)
	}
	return cfg, path, nil
}

func runServe(ctx context.Context, args []string) error {
	fs, flags, err := parseServeFlags(args)
	if err != nil {
		return err
	}

	cfg, configPath, err := loadConfig(fs, flags)
	if err != nil {
		return err
	}
	if cfg.Console.NoColor {
		color.NoColor = true
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging, os.Stderr)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Agents:    %s\n", cfg.Addr())
	green.Print("    ▶ ")
	fmt.Printf("Windows:   first output %s, settle %s\n", cfg.Session.FirstOutputTimeout, cfg.Session.SettleTimeout)
	fmt.Println()
	fmt.Println("Type 'help' for commands.")

	// Ctrl-C leaves the current session instead of killing the relay.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	srv := relay.New(cfg, relay.Options{
		In:         os.Stdin,
		Out:        os.Stdout,
		ShowPrompt: interactive,
		Interrupts: interrupts,
	}, logger)

	if err := srv.Listen(); err != nil {
		return err
	}

	logger.Info("starting shellrelay",
		"config", configPath,
		"addr", srv.Addr().String(),
		"interactive", interactive,
	)

	return srv.Run(ctx)
}
