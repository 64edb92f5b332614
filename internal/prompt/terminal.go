// Package prompt implements the interactive permission prompt for
// terminal sessions.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/promptline-ai/promptline/internal/permission"
)

// Terminal asks permission questions on an interactive terminal. It
// reads one line per question; EOF or context cancellation aborts the
// prompt and the caller treats that as a denial.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal creates a prompter reading from in and writing to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Present displays the request and blocks until the user answers.
func (t *Terminal) Present(ctx context.Context, req permission.Request) (permission.Decision, error) {
	fmt.Fprintf(t.out, "\nPermission required: %s\n", req.Title)
	fmt.Fprintf(t.out, "  tool:   %s\n", req.Key.Tool)
	if req.Key.Scope != "" {
		fmt.Fprintf(t.out, "  scope:  %s\n", req.Key.Scope)
	}
	fmt.Fprintf(t.out, "  danger: %s\n", req.Danger)
	if req.Danger == permission.Destructive {
		fmt.Fprintln(t.out, "  this action may be irreversible")
	}

	for {
		fmt.Fprint(t.out, "[y]es once / [a]lways / [n]o / n[e]ver > ")

		line, err := t.readLine(ctx)
		if err != nil {
			return "", err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return permission.AllowOnce, nil
		case "a", "always":
			return permission.AllowAlways, nil
		case "n", "no":
			return permission.DenyOnce, nil
		case "e", "never":
			return permission.DenyAlways, nil
		default:
			fmt.Fprintln(t.out, "please answer y, a, n or e")
		}
	}
}

// readLine reads a line while staying cancellable. The read itself
// cannot be interrupted, but a cancelled context wins the race once the
// user hits enter or the loop's signal handler closes stdin.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	type lineOrErr struct {
		line string
		err  error
	}
	ch := make(chan lineOrErr, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		ch <- lineOrErr{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && res.line == "" {
			return "", res.err
		}
		return res.line, nil
	}
}
