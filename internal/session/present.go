// ABOUTME: Writes a correlated response to the operator console.
// ABOUTME: Distinguishes real output from the no-output and echo-only notices.

package session

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Operator-facing notices. They must stay distinct from each other.
const (
	NoOutputNotice = "[!] no immediate output: the command may still be running, or the agent sent nothing back"
	EchoOnlyNotice = "[!] response was only an echo of the command"
)

var noticeColor = color.New(color.FgYellow)

// Present writes result to w: the output lines, or one of the notices.
func Present(w io.Writer, result *Result) {
	switch result.Outcome {
	case OutcomeNoOutput:
		noticeColor.Fprintln(w, NoOutputNotice)
	case OutcomeEchoOnly:
		noticeColor.Fprintln(w, EchoOnlyNotice)
	default:
		fmt.Fprintln(w, result.Text())
	}
}
