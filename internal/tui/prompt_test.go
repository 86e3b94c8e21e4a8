package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/buzz/internal/permission"
)

func TestPrompter_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want permission.Decision
	}{
		{"allow", keyRunes("a"), permission.Allow},
		{"allow with y", keyRunes("y"), permission.Allow},
		{"block", keyRunes("b"), permission.Block},
		{"dismiss", tea.KeyMsg{Type: tea.KeyEsc}, permission.Dismiss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPrompter()
			m := newTestModel(newMockSession(permission.Unrequested), WithPrompter(p))

			answer := make(chan permission.Decision, 1)
			go func() {
				d, _ := p.Ask(context.Background())
				answer <- d
			}()

			msg := p.waitForPrompt()()
			m, cmd := update(t, m, msg)
			if m.prompt == nil {
				t.Fatal("prompt dialog should be open")
			}
			if cmd == nil {
				t.Error("prompt wait should be re-armed")
			}
			if !strings.Contains(stripAnsi(m.View()), "Allow buzz to show notifications?") {
				t.Error("dialog not rendered")
			}

			// Unrelated keys keep the dialog open.
			m, _ = update(t, m, keyRunes("x"))
			if m.prompt == nil {
				t.Fatal("unrelated key closed the dialog")
			}

			m, _ = update(t, m, tt.key)
			if m.prompt != nil {
				t.Error("dialog should close after answering")
			}
			select {
			case d := <-answer:
				if d != tt.want {
					t.Errorf("decision = %v, want %v", d, tt.want)
				}
			case <-time.After(time.Second):
				t.Fatal("Ask did not return")
			}
		})
	}
}

func TestPrompter_AskHonoursContext(t *testing.T) {
	p := NewPrompter()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	d, err := p.Ask(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
	if d != permission.Dismiss {
		t.Errorf("decision = %v, want Dismiss", d)
	}
}

func TestPrompter_CloseReleasesWaiters(t *testing.T) {
	p := NewPrompter()

	msgs := make(chan tea.Msg, 1)
	go func() { msgs <- p.waitForPrompt()() }()

	p.Close()
	p.Close()

	select {
	case msg := <-msgs:
		if msg != nil {
			t.Errorf("wait after Close = %T, want nil", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("prompt wait still blocked after Close")
	}

	if _, err := p.Ask(context.Background()); !errors.Is(err, ErrPrompterClosed) {
		t.Errorf("Ask after Close err = %v, want ErrPrompterClosed", err)
	}
}

func TestPrompter_CloseAnswersOpenDialog(t *testing.T) {
	p := NewPrompter()

	errs := make(chan error, 1)
	go func() {
		_, err := p.Ask(context.Background())
		errs <- err
	}()
	if _, ok := p.waitForPrompt()().(promptMsg); !ok {
		t.Fatal("expected a prompt")
	}

	p.Close()
	select {
	case err := <-errs:
		if !errors.Is(err, ErrPrompterClosed) {
			t.Errorf("err = %v, want ErrPrompterClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Ask still blocked after Close")
	}
}

func TestQuitClosesPrompter(t *testing.T) {
	p := NewPrompter()
	m := newTestModel(newMockSession(permission.Unrequested), WithPrompter(p))

	update(t, m, keyRunes("q"))

	done := make(chan tea.Msg, 1)
	go func() { done <- p.waitForPrompt()() }()
	select {
	case msg := <-done:
		if msg != nil {
			t.Errorf("wait after quit = %T, want nil", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("quitting left the prompt wait blocked")
	}
}
