// Package console is the operator's line-oriented terminal: prompts, replies
// from the assistant, and cancellable line reads.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

const speaker = "pilot"

type line struct {
	text string
	err  error
}

// Console reads operator lines in a background goroutine so a read can be
// abandoned when its context is canceled. The reader goroutine exits at EOF
// or after Close.
type Console struct {
	in  io.Reader
	out io.Writer
	st  styles

	mu        sync.Mutex
	lines     chan line
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a console over in and out.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:    in,
		out:   out,
		st:    newStyles(out),
		lines: make(chan line),
		done:  make(chan struct{}),
	}
}

func (c *Console) start() {
	c.startOnce.Do(func() {
		go func() {
			defer close(c.lines)
			scanner := bufio.NewScanner(c.in)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				select {
				case c.lines <- line{text: scanner.Text()}:
				case <-c.done:
					return
				}
			}
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			select {
			case c.lines <- line{err: err}:
			case <-c.done:
			}
		}()
	})
}

// ReadLine waits for the next operator line. It returns io.EOF when input
// ends and ctx.Err() when ctx is canceled first.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	c.start()
	select {
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		if l.err != nil {
			return "", l.err
		}
		return strings.TrimRight(l.text, "\r"), nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.done:
		return "", io.EOF
	}
}

// Prompt prints label and reads a line.
func (c *Console) Prompt(ctx context.Context, label string) (string, error) {
	c.write(c.st.prompt.Render(label) + " ")
	return c.ReadLine(ctx)
}

// Say prints an assistant reply.
func (c *Console) Say(format string, args ...any) {
	c.write(c.st.speaker.Render(speaker+":") + " " + fmt.Sprintf(format, args...) + "\n")
}

// Thinking shows the indicator printed before each oracle call.
func (c *Console) Thinking() {
	c.write(c.st.thinking.Render(speaker+" is thinking...") + "\n")
}

// Thought echoes the reasoning attached to a step.
func (c *Console) Thought(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	c.write(c.st.thought.Render("  > "+text) + "\n")
}

// Warn prints a notice that needs the operator's attention.
func (c *Console) Warn(format string, args ...any) {
	c.write(c.st.warning.Render(fmt.Sprintf(format, args...)) + "\n")
}

// Fail prints a failure report.
func (c *Console) Fail(format string, args ...any) {
	c.write(c.st.failure.Render(fmt.Sprintf(format, args...)) + "\n")
}

// Close stops the reader goroutine once its pending read returns.
func (c *Console) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, s)
}
