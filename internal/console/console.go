// Package console is the line-oriented front end used by `buzz --plain`.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nixlim/buzz/internal/alertlog"
	"github.com/nixlim/buzz/internal/permission"
)

// Prompter asks for permission on a terminal line.
type Prompter struct {
	mu    sync.Mutex
	out   io.Writer
	lines chan string
}

// NewPrompter reads answers from in. The reader goroutine lives until in
// reaches EOF.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{out: out, lines: make(chan string)}
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
		close(p.lines)
	}()
	return p
}

func (p *Prompter) Ask(ctx context.Context) (permission.Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.out, "Allow buzz to show notifications? [a]llow / [b]lock / Enter to decide later: ")
	select {
	case line, ok := <-p.lines:
		if !ok {
			return permission.Dismiss, io.EOF
		}
		return ParseDecision(line), nil
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return permission.Dismiss, ctx.Err()
	}
}

// ParseDecision maps a typed answer to a decision. Anything unrecognised
// dismisses the prompt.
func ParseDecision(s string) permission.Decision {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "allow", "y", "yes":
		return permission.Allow
	case "b", "block", "n", "no":
		return permission.Block
	}
	return permission.Dismiss
}

// FormatEntry renders an entry the way the log panel does.
func FormatEntry(e alertlog.Entry) string {
	return "[" + e.Timestamp + "] " + e.Message
}

// Follow prints entries appended to log, oldest first, until ctx ends.
func Follow(ctx context.Context, log *alertlog.Log, out io.Writer, every time.Duration) {
	var last int64
	t := time.NewTicker(every)
	defer t.Stop()

	flush := func() {
		if newest, ok := log.Latest(); !ok || newest.ID <= last {
			return
		}
		entries := log.List()
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].ID > last {
				fmt.Fprintln(out, FormatEntry(entries[i]))
				last = entries[i].ID
			}
		}
	}

	for {
		flush()
		select {
		case <-ctx.Done():
			flush()
			return
		case <-t.C:
		}
	}
}
