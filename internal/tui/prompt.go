package tui

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/buzz/internal/permission"
)

// Prompter answers permission prompts through the dashboard. The platform
// calls Ask from the request goroutine; the model shows a dialog and
// replies with the key the user pressed.
type Prompter struct {
	requests chan promptRequest

	done      chan struct{}
	closeOnce sync.Once
}

// ErrPrompterClosed is returned by Ask once the dashboard has gone away.
var ErrPrompterClosed = errors.New("permission prompt closed")

type promptRequest struct {
	reply chan permission.Decision
}

// promptMsg tells the model a prompt is waiting.
type promptMsg struct {
	req promptRequest
}

func NewPrompter() *Prompter {
	return &Prompter{
		requests: make(chan promptRequest),
		done:     make(chan struct{}),
	}
}

// Close releases the pending prompt wait and any Ask still blocked on the
// dialog. It is safe to call more than once.
func (p *Prompter) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Ask blocks until the dialog is answered or ctx ends.
func (p *Prompter) Ask(ctx context.Context) (permission.Decision, error) {
	req := promptRequest{reply: make(chan permission.Decision, 1)}
	select {
	case p.requests <- req:
	case <-p.done:
		return permission.Dismiss, ErrPrompterClosed
	case <-ctx.Done():
		return permission.Dismiss, ctx.Err()
	}
	select {
	case d := <-req.reply:
		return d, nil
	case <-p.done:
		return permission.Dismiss, ErrPrompterClosed
	case <-ctx.Done():
		return permission.Dismiss, ctx.Err()
	}
}

// waitForPrompt is re-armed after every prompt. It yields no message once
// the prompter is closed.
func (p *Prompter) waitForPrompt() tea.Cmd {
	return func() tea.Msg {
		select {
		case req := <-p.requests:
			return promptMsg{req: req}
		case <-p.done:
			return nil
		}
	}
}

// handlePromptKey handles the allow/block/dismiss dialog.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var d permission.Decision
	switch {
	case key.Matches(msg, m.keys.Allow):
		d = permission.Allow
	case key.Matches(msg, m.keys.Block):
		d = permission.Block
	case key.Matches(msg, m.keys.Dismiss):
		d = permission.Dismiss
	default:
		return m, nil
	}

	m.prompt.reply <- d
	m.prompt = nil
	return m, nil
}
