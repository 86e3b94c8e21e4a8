//go:build linux

package notify

import (
	"context"
	"fmt"
	"os/exec"
)

// NotifySendNotifier sends Linux desktop notifications via notify-send.
// It cannot close notifications or report clicks.
type NotifySendNotifier struct {
	app string

	// lookPath is swapped out in tests.
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// NewNotifySendNotifier creates a notify-send backed notifier.
func NewNotifySendNotifier(app string) *NotifySendNotifier {
	return &NotifySendNotifier{
		app:      app,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (n *NotifySendNotifier) Name() string { return "notify-send" }

// Available reports whether notify-send is on PATH.
func (n *NotifySendNotifier) Available() bool {
	_, err := n.lookPath("notify-send")
	return err == nil
}

// Show runs notify-send and waits for it to exit.
func (n *NotifySendNotifier) Show(ctx context.Context, note Notification) error {
	if err := n.run(ctx, "notify-send", notifySendArgs(n.app, note)...); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}

// Close is a no-op; notify-send has no handle to close.
func (n *NotifySendNotifier) Close(context.Context, string) error { return nil }

// notifySendArgs maps a Notification onto notify-send flags.
func notifySendArgs(app string, note Notification) []string {
	urgency := "normal"
	if note.RequireInteraction {
		urgency = "critical"
	}
	args := []string{"--urgency", urgency, "--app-name", app}
	if note.RequireInteraction {
		args = append(args, "--expire-time", "0")
	}
	if note.Tag != "" {
		// Honoured by notify-osd and dunst: same value replaces in place.
		args = append(args, "--hint", "string:x-canonical-private-synchronous:"+note.Tag)
	}
	if note.Silent || !note.Renotify {
		args = append(args, "--hint", "boolean:suppress-sound:true")
	}
	return append(args, displayTitle(note), note.Body)
}
