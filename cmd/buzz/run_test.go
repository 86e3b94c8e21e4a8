package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/nixlim/buzz/internal/permission"
	"github.com/nixlim/buzz/internal/session"
	"github.com/nixlim/buzz/internal/tui"
)

func TestPlainPermissionLine(t *testing.T) {
	tests := []struct {
		state permission.State
		want  string
	}{
		{permission.Granted, "Permission granted"},
		{permission.Denied, "buzz reset-permission"},
		{permission.Unsupported, session.UnsupportedHint},
		{permission.Unrequested, "No decision yet"},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := plainPermissionLine(tt.state); !strings.Contains(got, tt.want) {
				t.Errorf("plainPermissionLine(%s) = %q, want it to contain %q", tt.state, got, tt.want)
			}
		})
	}
}

func TestShutdownOnce(t *testing.T) {
	calls := 0
	sm := tui.NewShutdownManager()
	sm.CloseSession = func() error {
		calls++
		return errors.New("boom")
	}
	shutdown := shutdownOnce(sm)

	first := shutdown()
	second := shutdown()
	if calls != 1 {
		t.Fatalf("CloseSession called %d times, want 1", calls)
	}
	if first == nil || second == nil || first.Error() != second.Error() {
		t.Errorf("both calls should report the same error, got %v and %v", first, second)
	}
}
