package folder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"ttshist/internal/history"
)

// StaticPicker grants a fixed, pre-configured directory.
type StaticPicker struct {
	Path string
}

var _ history.DirectoryPicker = StaticPicker{}

// Pick opens the configured directory. An empty path counts as a
// dismissed picker.
func (p StaticPicker) Pick(ctx context.Context, _ history.PickOptions) (history.Directory, error) {
	if p.Path == "" {
		return nil, history.ErrPickerCancelled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return OpenOSDirectory(p.Path)
}

// PromptPicker asks for a directory path on an interactive terminal.
type PromptPicker struct {
	in  *bufio.Reader
	out io.Writer
}

var _ history.DirectoryPicker = (*PromptPicker)(nil)

// NewPromptPicker creates a picker reading answers from in and writing
// prompts to out.
func NewPromptPicker(in io.Reader, out io.Writer) *PromptPicker {
	return &PromptPicker{in: bufio.NewReader(in), out: out}
}

// IsTerminal reports whether f is attached to an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Pick prompts for a path. An empty answer accepts the hint when there is
// one and cancels otherwise.
func (p *PromptPicker) Pick(ctx context.Context, opts history.PickOptions) (history.Directory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case opts.Reconnection && opts.Hint != "":
		fmt.Fprintf(p.out, "Reconnect history folder [%s]: ", opts.Hint)
	case opts.Hint != "":
		fmt.Fprintf(p.out, "History folder [%s]: ", opts.Hint)
	default:
		fmt.Fprint(p.out, "History folder (empty to cancel): ")
	}

	answer, err := p.readLine()
	if err != nil {
		return nil, err
	}
	if answer == "" {
		answer = opts.Hint
	}
	if answer == "" {
		return nil, history.ErrPickerCancelled
	}
	return OpenOSDirectory(answer)
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func (p *PromptPicker) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (p *PromptPicker) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", history.ErrPickerCancelled
		}
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
