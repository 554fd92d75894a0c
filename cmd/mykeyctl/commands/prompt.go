package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrPassphraseMismatch is returned when a confirmation does not match.
var ErrPassphraseMismatch = errors.New("passphrases do not match")

// Prompter asks the user for secrets.
type Prompter interface {
	Passphrase(prompt string) (string, error)
}

// TerminalPrompter reads passphrases without echo when in is a terminal and
// line by line otherwise, so passphrases can be piped in scripts.
type TerminalPrompter struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

// NewTerminalPrompter prompts on out and reads from in.
func NewTerminalPrompter(in *os.File, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out}
}

// Passphrase prints prompt and reads one passphrase.
func (p *TerminalPrompter) Passphrase(prompt string) (string, error) {
	_, _ = fmt.Fprint(p.out, prompt)

	fd := int(p.in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		return string(b), nil
	}

	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// newPassphrase asks for a passphrase twice. An empty answer means no
// passphrase.
func newPassphrase(p Prompter, what string) (string, error) {
	first, err := p.Passphrase(fmt.Sprintf("Enter %s (empty for none): ", what))
	if err != nil {
		return "", err
	}
	second, err := p.Passphrase(fmt.Sprintf("Confirm %s: ", what))
	if err != nil {
		return "", err
	}
	if first != second {
		return "", ErrPassphraseMismatch
	}
	return first, nil
}
