// Package notify displays desktop notifications. Backends are chosen per
// platform: the freedesktop D-Bus service or notify-send on Linux, and
// osascript on macOS.
package notify

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by backends that cannot display anything on
// this machine.
var ErrUnsupported = errors.New("notifications unsupported on this platform")

// Notification carries everything a backend may use. Backends ignore the
// fields their platform cannot express.
type Notification struct {
	Title string
	Body  string
	Icon  string

	// Tag groups notifications: a new one with the same tag replaces the
	// old one instead of stacking.
	Tag string

	Silent             bool
	Vibrate            []int
	RequireInteraction bool

	// Renotify controls whether replacing a tagged notification alerts the
	// user again. When false the replacement is shown quietly.
	Renotify bool
}

// Click reports that the user activated a notification.
type Click struct {
	Tag    string
	Action string
}

// Notifier sends notifications via a platform-specific mechanism.
type Notifier interface {
	// Show displays n. It returns once the platform accepted or rejected it.
	Show(ctx context.Context, n Notification) error

	// Close dismisses the notification currently shown under tag, if any.
	Close(ctx context.Context, tag string) error

	// Name identifies the backend in logs and the UI.
	Name() string

	// Available reports whether the backend can be used on this machine.
	Available() bool
}

// ClickSource is implemented by backends that can report activations.
type ClickSource interface {
	Clicks() <-chan Click
}

// displayTitle prefixes the decorative icon, if any, to the title.
func displayTitle(n Notification) string {
	if n.Icon == "" {
		return n.Title
	}
	return n.Icon + " " + n.Title
}

// Disabled is the backend used when nothing can display notifications.
type Disabled struct{}

func (Disabled) Show(context.Context, Notification) error { return ErrUnsupported }
func (Disabled) Close(context.Context, string) error      { return nil }
func (Disabled) Name() string                             { return "none" }
func (Disabled) Available() bool                          { return false }
