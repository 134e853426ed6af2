// Package prompt reads interactive input for the CLI.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks questions on Out and reads answers from In. Passwords are
// read from the terminal without echo.
type Prompter struct {
	In  *bufio.Reader
	Out io.Writer

	// readPassword is swapped out in tests.
	readPassword func(fd int) ([]byte, error)
	fd           int
}

// New returns a Prompter bound to stdin and stdout.
func New() *Prompter {
	return &Prompter{
		In:           bufio.NewReader(os.Stdin),
		Out:          os.Stdout,
		readPassword: term.ReadPassword,
		fd:           int(os.Stdin.Fd()),
	}
}

// Line prints label and returns one trimmed line. A final line without a
// newline is accepted.
func (p *Prompter) Line(label string) (string, error) {
	if _, err := fmt.Fprintf(p.Out, "%s: ", label); err != nil {
		return "", err
	}
	line, err := p.In.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password prints label and reads a secret. When stdin is not a terminal
// the secret is read as a plain line.
func (p *Prompter) Password(label string) (string, error) {
	if p.readPassword == nil || !term.IsTerminal(p.fd) {
		return p.Line(label)
	}
	if _, err := fmt.Fprintf(p.Out, "%s: ", label); err != nil {
		return "", err
	}
	pw, err := p.readPassword(p.fd)
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// Multiline reads lines until an empty one and joins them with '\n'.
func (p *Prompter) Multiline(label string) (string, error) {
	if _, err := fmt.Fprintf(p.Out, "%s (empty line to finish):\n", label); err != nil {
		return "", err
	}
	var lines []string
	for {
		line, err := p.In.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			break
		}
		lines = append(lines, line)
		if err != nil {
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}
