package session

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nixlim/buzz/internal/agent"
	"github.com/nixlim/buzz/internal/agentrpc"
	"github.com/nixlim/buzz/internal/config"
	"github.com/nixlim/buzz/internal/notify"
	"github.com/nixlim/buzz/internal/permission"
)

type fakeNotifier struct {
	mu    sync.Mutex
	shown []notify.Notification
}

func (f *fakeNotifier) Show(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, n)
	return nil
}

func (f *fakeNotifier) Close(context.Context, string) error { return nil }
func (f *fakeNotifier) Name() string                        { return "fake" }
func (f *fakeNotifier) Available() bool                     { return true }

func (f *fakeNotifier) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shown)
}

type scriptedPrompter struct {
	answer permission.Decision
	calls  atomic.Int32
}

func (p *scriptedPrompter) Ask(context.Context) (permission.Decision, error) {
	p.calls.Add(1)
	return p.answer, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// platformWith returns a file platform already holding the given decision.
func platformWith(t *testing.T, remembered permission.Decision, prompter permission.Prompter) *permission.FilePlatform {
	t.Helper()
	p := permission.NewFilePlatform(filepath.Join(t.TempDir(), "permission.toml"), true, nil)
	if remembered != permission.Dismiss {
		p.SetPrompter(permission.PrompterFunc(func(context.Context) (permission.Decision, error) {
			return remembered, nil
		}))
		if _, err := p.Request(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	p.SetPrompter(prompter)
	return p
}

func testConfig(delayMS int) config.Config {
	cfg := config.DefaultConfig()
	cfg.Alerts.StartDelayMS = delayMS
	return cfg
}

func newTestSession(t *testing.T, cfg config.Config, p permission.Platform, n notify.Notifier, reg *agent.Registry) *Session {
	t.Helper()
	s, err := New(Options{
		Config:   cfg,
		Platform: p,
		Notifier: n,
		Registry: reg,
		Logger:   testLogger(),
		Rand:     rand.New(rand.NewPCG(7, 7)),
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func eventually(t *testing.T, what string, within time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSession_GrantStartsLoopAfterDelay(t *testing.T) {
	prompter := &scriptedPrompter{answer: permission.Allow}
	n := &fakeNotifier{}
	s := newTestSession(t, testConfig(500), platformWith(t, permission.Dismiss, prompter), n, nil)

	begin := time.Now()
	st, err := s.RequestPermission(context.Background())
	if err != nil || st != permission.Granted {
		t.Fatalf("RequestPermission = %v, %v", st, err)
	}
	if !s.Snapshot().Starting {
		t.Error("snapshot should report a pending start")
	}

	eventually(t, "first entry", time.Second, func() bool { return s.Log().Len() == 1 })
	elapsed := time.Since(begin)
	if elapsed < 450*time.Millisecond || elapsed > 900*time.Millisecond {
		t.Errorf("first entry after %v, want about 500ms", elapsed)
	}

	eventually(t, "delivery", time.Second, func() bool { return n.Count() == 1 })
	snap := s.Snapshot()
	if !snap.Running || snap.Starting {
		t.Errorf("snapshot running=%v starting=%v", snap.Running, snap.Starting)
	}
	if snap.AgentMode != AgentInProcess || snap.AgentState != "activated" {
		t.Errorf("agent mode=%s state=%s", snap.AgentMode, snap.AgentState)
	}
	if snap.Stats.ViaAgent != 1 {
		t.Errorf("stats = %+v, want delivery via agent", snap.Stats)
	}

	// Granted is idempotent and never prompts again.
	if st, _ := s.RequestPermission(context.Background()); st != permission.Granted {
		t.Errorf("second request = %s", st)
	}
	if prompter.calls.Load() != 1 {
		t.Errorf("prompted %d times, want 1", prompter.calls.Load())
	}
}

func TestSession_RememberedGrantAutoStarts(t *testing.T) {
	prompter := &scriptedPrompter{answer: permission.Block}
	n := &fakeNotifier{}
	s := newTestSession(t, testConfig(20), platformWith(t, permission.Allow, prompter), n, nil)

	eventually(t, "auto start", time.Second, func() bool { return n.Count() == 1 })
	if prompter.calls.Load() != 0 {
		t.Error("remembered grant must not prompt")
	}
	if s.Snapshot().Permission != permission.Granted {
		t.Errorf("permission = %s", s.Snapshot().Permission)
	}
}

func TestSession_DeniedAtLoadNeverDelivers(t *testing.T) {
	prompter := &scriptedPrompter{answer: permission.Allow}
	n := &fakeNotifier{}
	s := newTestSession(t, testConfig(10), platformWith(t, permission.Block, prompter), n, nil)

	st, _ := s.RequestPermission(context.Background())
	if st != permission.Denied {
		t.Fatalf("state = %s, want denied", st)
	}
	time.Sleep(100 * time.Millisecond)

	if s.Log().Len() != 0 || n.Count() != 0 {
		t.Errorf("denied session made %d attempts, %d deliveries", s.Log().Len(), n.Count())
	}
	if prompter.calls.Load() != 0 {
		t.Error("denied state must not prompt")
	}
	if s.Snapshot().Running {
		t.Error("loop running while denied")
	}
}

func TestSession_DismissKeepsDefault(t *testing.T) {
	prompter := &scriptedPrompter{answer: permission.Dismiss}
	s := newTestSession(t, testConfig(10), platformWith(t, permission.Dismiss, prompter), &fakeNotifier{}, nil)

	st, err := s.RequestPermission(context.Background())
	if err != nil || st != permission.Unrequested {
		t.Fatalf("RequestPermission = %s, %v", st, err)
	}
	time.Sleep(50 * time.Millisecond)
	if s.Snapshot().Running || s.Log().Len() != 0 {
		t.Error("dismissed prompt must not start the loop")
	}
}

func TestSession_Unsupported(t *testing.T) {
	p := permission.NewFilePlatform(filepath.Join(t.TempDir(), "p.toml"), false, &scriptedPrompter{answer: permission.Allow})
	s := newTestSession(t, testConfig(10), p, notify.Disabled{}, nil)

	if _, err := s.RequestPermission(context.Background()); err == nil {
		t.Error("expected ErrUnsupported")
	}
	if s.Snapshot().Permission != permission.Unsupported {
		t.Errorf("permission = %s", s.Snapshot().Permission)
	}
}

func TestSession_SelectPattern(t *testing.T) {
	s := newTestSession(t, testConfig(10), platformWith(t, permission.Dismiss, nil), &fakeNotifier{}, nil)

	if err := s.SelectPattern("heartbeat"); err != nil {
		t.Fatal(err)
	}
	if s.Pattern().Key != "heartbeat" || s.Snapshot().Pattern.Key != "heartbeat" {
		t.Errorf("pattern = %q", s.Pattern().Key)
	}
	if err := s.SelectPattern("nope"); err == nil {
		t.Error("unknown pattern should fail")
	}
}

func TestSession_CloseCancelsPendingStart(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestSession(t, testConfig(150), platformWith(t, permission.Allow, nil), n, nil)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(250 * time.Millisecond)
	if s.Log().Len() != 0 || n.Count() != 0 {
		t.Error("closed session must not start")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSession_CloseStopsLoop(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestSession(t, testConfig(0), platformWith(t, permission.Allow, nil), n, nil)

	eventually(t, "running", time.Second, func() bool { return s.Snapshot().Running })
	s.Close()
	if s.Snapshot().Running {
		t.Error("loop still running after Close")
	}
}

func TestSession_ExternalResetStopsLoop(t *testing.T) {
	n := &fakeNotifier{}
	p := platformWith(t, permission.Allow, nil)
	s := newTestSession(t, testConfig(0), p, n, nil)
	eventually(t, "running", time.Second, func() bool { return s.Snapshot().Running })

	if err := p.Reset(); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if snap.Permission != permission.Unrequested {
		t.Errorf("permission after reset = %s, want default", snap.Permission)
	}
	if snap.Running {
		t.Error("loop still running after the decision was reset")
	}
}

func TestSession_ResetDuringStartDelay(t *testing.T) {
	n := &fakeNotifier{}
	p := platformWith(t, permission.Allow, nil)
	s := newTestSession(t, testConfig(150), p, n, nil)

	if err := p.Reset(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if s.Log().Len() != 0 || n.Count() != 0 {
		t.Errorf("start after reset made %d attempts", s.Log().Len())
	}
}

func TestSession_NotificationClickFocuses(t *testing.T) {
	reg := agent.NewRegistry()
	defer reg.Close()

	cfg := testConfig(0)
	s := newTestSession(t, cfg, platformWith(t, permission.Allow, nil), &fakeNotifier{}, reg)
	eventually(t, "agent", time.Second, func() bool { return s.Snapshot().AgentMode == AgentInProcess })

	s.mu.Lock()
	a := s.agent
	s.mu.Unlock()
	if a == nil || a.Origin() != cfg.Agent.Origin {
		t.Fatal("agent not registered for origin")
	}
	if err := a.Click(context.Background(), cfg.Notifications.Tag, ""); err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Focused():
	case <-time.After(2 * time.Second):
		t.Fatal("session was not focused")
	}
	if s.Snapshot().Focused != 1 {
		t.Errorf("Focused = %d", s.Snapshot().Focused)
	}
}

func TestSession_AgentDisabledDeliversDirectly(t *testing.T) {
	cfg := testConfig(0)
	cfg.Agent.Enabled = false
	n := &fakeNotifier{}
	s := newTestSession(t, cfg, platformWith(t, permission.Allow, nil), n, nil)

	eventually(t, "delivery", time.Second, func() bool { return n.Count() == 1 })
	snap := s.Snapshot()
	if snap.AgentMode != AgentOff || snap.Stats.Direct != 1 {
		t.Errorf("mode=%s stats=%+v", snap.AgentMode, snap.Stats)
	}
}

type recordingShower struct {
	count atomic.Int32
}

func (r *recordingShower) ShowNotification(context.Context, notify.Notification) error {
	r.count.Add(1)
	return nil
}

func TestSession_RemoteAgent(t *testing.T) {
	shower := &recordingShower{}
	srvCfg := config.DefaultConfig().Agent
	srvCfg.GRPCPort = 0
	srv := agentrpc.NewGRPCServer(srvCfg, shower, testLogger())
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	cfg := testConfig(0)
	cfg.Agent.Endpoint = srv.Addr()
	n := &fakeNotifier{}
	s := newTestSession(t, cfg, platformWith(t, permission.Allow, nil), n, nil)

	eventually(t, "remote delivery", 3*time.Second, func() bool { return shower.count.Load() == 1 })
	if n.Count() != 0 {
		t.Error("remote agent delivery must not also show locally")
	}
	if s.Snapshot().AgentMode != AgentRemote {
		t.Errorf("mode = %s", s.Snapshot().AgentMode)
	}
}
