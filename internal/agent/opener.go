package agent

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoOpenCommand is returned when no open command is configured.
var ErrNoOpenCommand = errors.New("no open command configured")

// CommandOpener starts an external command with the origin as its last
// argument, e.g. a terminal emulator launching a new buzz session.
type CommandOpener struct {
	Command string

	start func(ctx context.Context, name string, args ...string) error
}

func NewCommandOpener(command string) *CommandOpener {
	return &CommandOpener{Command: command, start: startDetached}
}

func (o *CommandOpener) Open(ctx context.Context, origin string) error {
	fields := strings.Fields(o.Command)
	if len(fields) == 0 {
		return ErrNoOpenCommand
	}
	args := append(fields[1:len(fields):len(fields)], origin)
	if err := o.start(ctx, fields[0], args...); err != nil {
		return fmt.Errorf("running %s: %w", fields[0], err)
	}
	return nil
}

// startDetached launches the command without waiting for it to exit. The
// child outlives ctx.
func startDetached(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
