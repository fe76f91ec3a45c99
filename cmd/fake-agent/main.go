// ABOUTME: Minimal fake agent for E2E testing: dials the relay and answers commands from a canned table.
// ABOUTME: Usage: fake-agent [--addr 127.0.0.1:4444] [--echo] [--gap 50ms]
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	addr := pflag.String("addr", "127.0.0.1:4444", "relay address")
	echo := pflag.Bool("echo", false, "echo each command back before answering")
	gap := pflag.Duration("gap", 0, "split each answer into two writes separated by this gap")
	pflag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, *addr, *echo, *gap); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, addr string, echo bool, gap time.Duration) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	fmt.Fprintf(os.Stderr, "connected to %s as %s\n", addr, conn.LocalAddr())

	err = serve(conn, echo, gap)
	if ctx.Err() != nil {
		return nil // graceful shutdown
	}
	return err
}

// serve answers newline-terminated commands until the relay hangs up.
func serve(conn io.ReadWriter, echo bool, gap time.Duration) error {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" {
			continue
		}

		log.Printf("received command: %s", cmd)

		if echo {
			if _, err := io.WriteString(conn, cmd+"\n"); err != nil {
				return fmt.Errorf("send echo: %w", err)
			}
		}

		if err := writeReply(conn, reply(cmd), gap); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("recv error: %w", err)
	}
	return nil
}

func writeReply(w io.Writer, text string, gap time.Duration) error {
	if gap <= 0 {
		_, err := io.WriteString(w, text)
		return err
	}

	// Two writes with a pause so the relay sees separate chunks.
	half := len(text) / 2
	if _, err := io.WriteString(w, text[:half]); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	time.Sleep(gap)
	if _, err := io.WriteString(w, text[half:]); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// reply returns a canned answer for cmd. Nothing is ever executed.
func reply(cmd string) string {
	fields := strings.Fields(cmd)
	switch strings.ToLower(fields[0]) {
	case "whoami":
		return "operator\n"
	case "pwd":
		return "/home/operator\n"
	case "ls":
		return "total 8\ndrwxr-xr-x 2 operator operator 4096 Jan  1 00:00 .\n-rw-r--r-- 1 operator operator   12 Jan  1 00:00 notes.txt\n"
	case "dir":
		return " Directory of C:\\Users\\operator\n\n01/01/2024  12:00 AM                12 notes.txt\n"
	case "cat", "type":
		if len(fields) > 1 && fields[1] == "notes.txt" {
			return "hello relay\n"
		}
		return fmt.Sprintf("%s: no such file\n", fields[0])
	case "screenshot":
		return "screenshot: not supported\n"
	default:
		return fmt.Sprintf("unknown command: %s\n", fields[0])
	}
}
