// ABOUTME: Interactive "init" command that writes a starter config file
// ABOUTME: Prompts for listener and timing settings, defaulting to the built-in values

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/2389/shellrelay/internal/config"
)

func runInit(args []string) error {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", getConfigPath(), "where to write the config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("shellrelay configuration setup")
	fmt.Println("==============================")
	fmt.Println()

	cfg, outputFile, err := buildConfig(bufio.NewReader(os.Stdin), os.Stdout, *configPath)
	if err != nil {
		return err
	}
	if cfg == nil {
		fmt.Println("Aborted.")
		return nil
	}

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	header := "# shellrelay configuration\n# Generated by shellrelay init\n\n"
	if err := os.WriteFile(outputFile, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the relay:")
	fmt.Printf("  shellrelay serve --config %s\n", outputFile)
	return nil
}

// buildConfig asks for each setting and returns the validated config and
// the output path. A nil config means the operator declined to overwrite.
func buildConfig(reader *bufio.Reader, out io.Writer, defaultPath string) (*config.Config, string, error) {
	outputFile := prompt(reader, out, "Config file path", defaultPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := strings.ToLower(prompt(reader, out, "File exists. Overwrite?", "no"))
		if overwrite != "yes" && overwrite != "y" {
			return nil, "", nil
		}
	}

	cfg := config.Default()

	fmt.Fprintln(out, "\n--- Listener ---")
	cfg.Listen.Host = prompt(reader, out, "Listen address", cfg.Listen.Host)
	portStr := prompt(reader, out, "Listen port", strconv.Itoa(cfg.Listen.Port))
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, "", fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	cfg.Listen.Port = port

	fmt.Fprintln(out, "\n--- Response windows ---")
	cfg.Session.FirstOutputTimeoutRaw = prompt(reader, out, "Wait for first output", cfg.Session.FirstOutputTimeoutRaw)
	cfg.Session.SettleTimeoutRaw = prompt(reader, out, "Settle gap between chunks", cfg.Session.SettleTimeoutRaw)

	fmt.Fprintln(out, "\n--- Logging ---")
	cfg.Logging.Level = prompt(reader, out, "Log level (debug/info/warn/error)", cfg.Logging.Level)
	cfg.Logging.Format = prompt(reader, out, "Log format (text/json)", cfg.Logging.Format)

	if err := cfg.ParseDurations(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, outputFile, nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
