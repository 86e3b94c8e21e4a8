//go:build darwin

package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// OSAScriptNotifier sends macOS notifications via osascript. macOS offers no
// tag replacement or close from AppleScript, so Tag only becomes the subtitle.
type OSAScriptNotifier struct {
	app string
}

// NewOSAScriptNotifier creates a macOS notification sender.
func NewOSAScriptNotifier(app string) *OSAScriptNotifier {
	return &OSAScriptNotifier{app: app}
}

func (n *OSAScriptNotifier) Name() string { return "osascript" }

func (n *OSAScriptNotifier) Available() bool {
	_, err := exec.LookPath("osascript")
	return err == nil
}

// Show executes osascript to display the notification.
func (n *OSAScriptNotifier) Show(ctx context.Context, note Notification) error {
	cmd := exec.CommandContext(ctx, "osascript", "-e", buildAppleScript(n.app, note))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("osascript: %w", err)
	}
	return nil
}

func (n *OSAScriptNotifier) Close(context.Context, string) error { return nil }

func buildAppleScript(app string, note Notification) string {
	title := escapeAppleScript(fmt.Sprintf("%s: %s", app, displayTitle(note)))
	message := escapeAppleScript(note.Body)

	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	if note.Tag != "" {
		script += fmt.Sprintf(` subtitle "%s"`, escapeAppleScript(note.Tag))
	}
	if !note.Silent {
		script += ` sound name "default"`
	}
	return script
}

// escapeAppleScript escapes characters that could break AppleScript strings.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
