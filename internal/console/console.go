// Package console connects chat sessions to a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/omochice/turn-chat/pkg/protocol"
)

type line struct {
	text string
	err  error
}

// Console reads local lines from in and prints remote lines to out.
// It satisfies chat.Prompter and chat.Display.
type Console struct {
	in    io.Reader
	out   io.Writer
	outMu sync.Mutex

	once  sync.Once
	lines chan line
}

// New creates a Console. Nothing is read from in until the first prompt.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:    in,
		out:   out,
		lines: make(chan line),
	}
}

// Prompt prints prompt and waits for one line of input.
// It returns io.EOF once the input is exhausted.
func (c *Console) Prompt(ctx context.Context, prompt string) (string, error) {
	c.once.Do(func() { go c.readLines() })

	c.outMu.Lock()
	fmt.Fprint(c.out, prompt)
	c.outMu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}

// Show prints one line.
func (c *Console) Show(text string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.out, text)
}

// readLines feeds the lines channel until the input ends. A line that was
// read while nobody was prompting is handed to the next Prompt.
func (c *Console) readLines() {
	defer close(c.lines)
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		c.lines <- line{text: scanner.Text()}
	}
	if err := scanner.Err(); err != nil {
		c.lines <- line{err: err}
	}
}

// AskHandle asks the user for a handle until a valid one is entered.
func (c *Console) AskHandle(ctx context.Context) (string, error) {
	for {
		text, err := c.Prompt(ctx, fmt.Sprintf("What do you want as your handle? (Max of %d characters) ", protocol.MaxHandleLength))
		if err != nil {
			return "", err
		}
		handle := strings.TrimSpace(text)
		if err := protocol.ValidateHandle(handle); err != nil {
			c.Show(err.Error())
			continue
		}
		c.Show("You chose " + handle)
		return handle, nil
	}
}
