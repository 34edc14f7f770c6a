package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/infrastructure/cli/helpers"
	"github.com/doeshing/shai-ops/internal/ports"
)

// Prompter implements ConfirmationPrompter using stdin/stdout.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter constructs a prompter referencing stdio.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Enabled indicates the prompter is interactive.
func (p *Prompter) Enabled() bool {
	return true
}

// Reader exposes the buffered input so a REPL can share it with the prompter.
func (p *Prompter) Reader() *bufio.Reader {
	return p.in
}

// Confirm asks the operator to release a proposal. Under exact-text
// confirmation the typed line is returned verbatim for the pipeline to check;
// an empty line cancels.
func (p *Prompter) Confirm(turn domain.Turn) (string, bool, error) {
	c := turn.Confirmation
	if c == nil {
		return "", true, nil
	}
	if c.DiscloseElevation {
		fmt.Fprintln(p.out, "\nThis command requires elevated privileges.")
	}

	switch c.Mode {
	case domain.ConfirmNone:
		return "", true, nil
	case domain.ConfirmSimple:
		ok, err := helpers.PromptForYesNo(p.out, p.in, "\nRun this command?", false)
		return "", ok, err
	default:
		line, err := helpers.ReadLine(p.out, p.in, fmt.Sprintf("\nType %s to run it (empty line cancels): ", c.RequiredLiteral))
		if err != nil {
			return "", false, err
		}
		if line == "" {
			return "", false, nil
		}
		return line, true, nil
	}
}

var _ ports.ConfirmationPrompter = (*Prompter)(nil)
