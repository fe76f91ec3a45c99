// ABOUTME: Static table of operator shortcuts and their command expansions.
// ABOUTME: Resolves typed lines into the command text sent to an agent.

package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingArgument indicates a shortcut was used without a required argument.
var ErrMissingArgument = errors.New("missing argument")

// Shortcut maps an operator token to the command sent to the agent.
type Shortcut struct {
	Token   string
	Command string
	// Windows replaces Command when the line ends in a "win" argument.
	// Empty means the shortcut has no Windows variant.
	Windows string
	// TakesFile means the remaining tokens name a file appended to the command.
	TakesFile bool
	Help      string
}

var shortcuts = []Shortcut{
	{Token: "whoami", Command: "whoami", Help: "current user on the agent"},
	{Token: "listfiles", Command: "ls -la", Windows: "dir", Help: "list files (listfiles win sends dir)"},
	{Token: "pwd", Command: "pwd", Help: "current directory"},
	{Token: "cat", Command: "cat", Windows: "type", TakesFile: true, Help: "print a file (cat <file> win sends type <file>)"},
}

var shortcutIndex = func() map[string]Shortcut {
	idx := make(map[string]Shortcut, len(shortcuts))
	for _, s := range shortcuts {
		idx[s.Token] = s
	}
	return idx
}()

// Shortcuts returns the shortcut table in display order.
func Shortcuts() []Shortcut {
	out := make([]Shortcut, len(shortcuts))
	copy(out, shortcuts)
	return out
}

// Resolve returns the command text for an operator line. Lines whose first
// token is not a shortcut are returned unchanged.
func Resolve(line string) (string, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return line, nil
	}

	s, ok := shortcutIndex[strings.ToLower(parts[0])]
	if !ok {
		return line, nil
	}

	args := parts[1:]
	windows := false
	if s.Windows != "" && len(args) > 0 && isWindowsFlag(args[len(args)-1]) {
		// A lone "cat win" names a file called win.
		if !s.TakesFile || len(args) > 1 {
			windows = true
			args = args[:len(args)-1]
		}
	}

	command := s.Command
	if windows {
		command = s.Windows
	}

	if !s.TakesFile {
		return command, nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("%s: %w: usage %s <file> [win]", s.Token, ErrMissingArgument, s.Token)
	}
	return command + " " + strings.Join(args, " "), nil
}

func isWindowsFlag(arg string) bool {
	return strings.HasPrefix(strings.ToLower(arg), "win")
}
