package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nixlim/buzz/internal/alertlog"
	"github.com/nixlim/buzz/internal/permission"
)

func TestComputeDimensions(t *testing.T) {
	tests := []struct {
		w, h int
	}{
		{120, 40},
		{80, 24},
		{10, 5},
	}
	for _, tt := range tests {
		d := computeDimensions(tt.w, tt.h)
		w := tt.w
		if w < minWidth {
			w = minWidth
		}
		if d.controlsW+d.logW != w {
			t.Errorf("%dx%d: widths %d+%d do not fill %d", tt.w, tt.h, d.controlsW, d.logW, w)
		}
		if d.controlsW < 20 || d.logW < 20 {
			t.Errorf("%dx%d: panel too narrow: %+v", tt.w, tt.h, d)
		}
		if d.controlsH < 4 {
			t.Errorf("%dx%d: body height %d", tt.w, tt.h, d.controlsH)
		}
	}
}

func TestRenderDashboard_PermissionStates(t *testing.T) {
	tests := []struct {
		state permission.State
		want  []string
	}{
		{permission.Unrequested, []string{"not requested", "Press p to enable"}},
		{permission.Granted, []string{"granted"}},
		{permission.Denied, []string{"denied", "buzz reset-permission"}},
		{permission.Unsupported, []string{"unsupported", "No notification backend"}},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			m := newTestModel(newMockSession(tt.state))
			view := stripAnsi(m.View())
			for _, w := range tt.want {
				if !strings.Contains(view, w) {
					t.Errorf("view missing %q", w)
				}
			}
		})
	}
}

func TestRenderLogPanel(t *testing.T) {
	s := newMockSession(permission.Granted)
	m := newTestModel(s)

	if got := stripAnsi(m.renderLogPanel(60, 10)); !strings.Contains(got, "No alerts yet.") {
		t.Errorf("empty log should say so:\n%s", got)
	}

	s.snap.Entries = []alertlog.Entry{
		{ID: 2, Message: "Security Alert: New login detected", Timestamp: "12:00:02"},
		{ID: 1, Message: "Reminder: Standup in 5", Timestamp: "12:00:00"},
	}
	m.refresh()
	got := stripAnsi(m.renderLogPanel(60, 10))
	newest := strings.Index(got, "Security Alert")
	oldest := strings.Index(got, "Reminder")
	if newest < 0 || oldest < 0 || newest > oldest {
		t.Errorf("entries should be newest first:\n%s", got)
	}
	if !strings.Contains(got, "Alert log (2)") {
		t.Errorf("title should carry the count:\n%s", got)
	}
}

func TestRenderLogPanel_Truncates(t *testing.T) {
	s := newMockSession(permission.Granted)
	s.snap.Entries = []alertlog.Entry{{ID: 1, Message: strings.Repeat("x", 200), Timestamp: "12:00:00"}}
	m := newTestModel(s)

	for _, line := range strings.Split(stripAnsi(m.renderLogPanel(40, 6)), "\n") {
		if strings.Contains(line, "xxx") && !strings.Contains(line, "...") {
			t.Errorf("long message not truncated: %q", line)
		}
	}
}

func TestRenderControls_MarksCurrentPattern(t *testing.T) {
	s := newMockSession(permission.Granted)
	m := newTestModel(s)
	got := stripAnsi(m.renderControlsPanel(50, 20))
	if !strings.Contains(got, "● Default") {
		t.Errorf("current pattern not marked:\n%s", got)
	}
	if !strings.Contains(got, "in-process (activated)") {
		t.Errorf("agent state missing:\n%s", got)
	}
}

func TestShutdownManager_RunsAllSteps(t *testing.T) {
	var order []string
	sm := NewShutdownManager()
	sm.CloseSession = func() error { order = append(order, "session"); return errors.New("session") }
	sm.StopServers = func(context.Context) error { order = append(order, "servers"); return nil }
	sm.Cleanup = func() { order = append(order, "cleanup") }

	err := sm.Shutdown()
	if strings.Join(order, ",") != "session,servers,cleanup" {
		t.Errorf("order = %v", order)
	}
	if err == nil || !strings.Contains(err.Error(), "session") {
		t.Errorf("err = %v, want the session error", err)
	}
}
