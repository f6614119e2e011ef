// Package repl runs the operator's read-dispatch-print loop.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"catalog_chat/internal/chat/agent"
	"catalog_chat/platform/logger"
	"catalog_chat/platform/sanitize"
)

const (
	promptHeader = "Your question:"
	answerHeader = "AI answer:"
)

// Responder answers one line of operator input.
type Responder interface {
	Respond(ctx context.Context, text string) (agent.Response, error)
}

// Loop reads questions from in and prints answers to out.
type Loop struct {
	responder Responder
	in        io.Reader
	out       io.Writer
	errOut    io.Writer
	answer    *color.Color
	log       *logger.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithErrorOutput sets where failed turns are reported. Defaults to out.
func WithErrorOutput(w io.Writer) Option {
	return func(l *Loop) { l.errOut = w }
}

// WithoutColor prints answers as plain text.
func WithoutColor() Option {
	return func(l *Loop) { l.answer.DisableColor() }
}

// New creates a loop over the given streams.
func New(responder Responder, in io.Reader, out io.Writer, log *logger.Logger, opts ...Option) *Loop {
	l := &Loop{
		responder: responder,
		in:        in,
		out:       out,
		errOut:    out,
		answer:    color.New(color.FgCyan),
		log:       log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run loops until input ends (nil) or ctx is cancelled (ctx.Err()).
// Input lines are forwarded as-is, empty ones included. A failed turn is
// reported and the loop goes on.
func (l *Loop) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprintln(l.out, promptHeader)

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-readErr:
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}

		resp, err := l.responder.Respond(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.WithContext(ctx).Warn("turn failed", "error", err)
			fmt.Fprintf(l.errOut, "Error: %v\n", err)
			continue
		}

		fmt.Fprintln(l.out, answerHeader)
		l.answer.Fprintln(l.out, sanitize.Terminal(resp.Last()))
		fmt.Fprintln(l.out)
	}
}
