// Package session ties one user session together: the permission gate, the
// alert loop and log, the vibration pattern and the delivery agent. UIs talk
// to a Session and render its Snapshot.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nixlim/buzz/internal/agent"
	"github.com/nixlim/buzz/internal/agentrpc"
	"github.com/nixlim/buzz/internal/alertlog"
	"github.com/nixlim/buzz/internal/catalog"
	"github.com/nixlim/buzz/internal/config"
	"github.com/nixlim/buzz/internal/loop"
	"github.com/nixlim/buzz/internal/notify"
	"github.com/nixlim/buzz/internal/permission"
	"github.com/nixlim/buzz/internal/vibrate"
)

// RecoveryHint is shown once permission has been denied.
const RecoveryHint = "Notifications are blocked. Run `buzz reset-permission` and restart buzz to be asked again."

// UnsupportedHint is shown when no notification backend exists.
const UnsupportedHint = "This system cannot display desktop notifications."

// AgentMode says where the delivery agent lives.
type AgentMode string

const (
	AgentOff       AgentMode = "off"
	AgentInProcess AgentMode = "in-process"
	AgentRemote    AgentMode = "remote"
)

// Options wires a Session. Config and Platform are required.
type Options struct {
	Config   config.Config
	Platform permission.Platform
	Notifier notify.Notifier
	Vibrator vibrate.Vibrator

	// Registry hosts the in-process agent. Nil creates a private one.
	Registry *agent.Registry
	Opener   agent.Opener

	Logger *slog.Logger
	Rand   catalog.Intn

	// Interval overrides the configured alert period when positive.
	Interval time.Duration
}

// Snapshot is a consistent view for rendering.
type Snapshot struct {
	Permission         permission.State
	Running            bool
	Starting           bool
	Pattern            catalog.VibrationPattern
	Entries            []alertlog.Entry
	Stats              loop.Stats
	Interval           time.Duration
	Backend            string
	VibrationSupported bool
	AgentMode          AgentMode
	AgentState         string
	Focused            int64
}

// Session is one running demo.
type Session struct {
	id       string
	cfg      config.Config
	gate     *permission.Gate
	log      *alertlog.Log
	loop     *loop.Loop
	notifier notify.Notifier
	vibrator vibrate.Vibrator
	logger   *slog.Logger

	registry    *agent.Registry
	ownRegistry bool
	opener      agent.Opener

	// startMu orders a delayed start against Close.
	startMu sync.Mutex

	mu       sync.Mutex
	timer    *time.Timer
	starting bool
	closed   bool
	agent    *agent.Agent
	remote   *agentrpc.Client

	focus   chan struct{}
	focused atomic.Int64
}

var sessionSeq atomic.Int64

// New builds a session and, if permission was already granted in an earlier
// run, schedules the loop to start after the start delay.
func New(opts Options) (*Session, error) {
	if opts.Platform == nil {
		return nil, fmt.Errorf("session: permission platform is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Disabled{}
	}
	if opts.Vibrator == nil {
		opts.Vibrator = vibrate.None{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Session{
		id:       fmt.Sprintf("session-%d", sessionSeq.Add(1)),
		cfg:      opts.Config,
		notifier: opts.Notifier,
		vibrator: opts.Vibrator,
		logger:   opts.Logger.With("component", "session"),
		registry: opts.Registry,
		opener:   opts.Opener,
		focus:    make(chan struct{}, 1),
	}
	if s.registry == nil {
		s.registry = agent.NewRegistry()
		s.ownRegistry = true
	}

	s.gate = permission.NewGate(opts.Platform, opts.Logger)
	s.log = alertlog.New(opts.Config.Log.Capacity)
	s.loop = loop.New(loop.Options{
		Alerts:        opts.Config.Alerts,
		Notifications: opts.Config.Notifications,
		Gate:          s.gate,
		Notifier:      opts.Notifier,
		Vibrator:      opts.Vibrator,
		Log:           s.log,
		Logger:        opts.Logger,
		Rand:          opts.Rand,
		Interval:      opts.Interval,
	})

	s.gate.OnChange(s.onPermissionChange)

	switch s.gate.State() {
	case permission.Granted:
		s.logger.Info("permission remembered as granted")
		s.scheduleStart()
	case permission.Denied:
		s.logger.Info("permission remembered as denied, loop disabled")
	case permission.Unsupported:
		s.logger.Warn("notifications unsupported, loop disabled", "backend", opts.Notifier.Name())
	}
	return s, nil
}

// ID identifies the session as an agent client.
func (s *Session) ID() string { return s.id }

// Focus is called by the agent when the user clicks a notification. The UI
// observes it through Focused.
func (s *Session) Focus(context.Context) error {
	s.focused.Add(1)
	select {
	case s.focus <- struct{}{}:
	default:
	}
	return nil
}

// Focused delivers a value each time a notification click focused this
// session. Bursts are coalesced.
func (s *Session) Focused() <-chan struct{} { return s.focus }

// Gate exposes the permission gate, e.g. to subscribe to transitions.
func (s *Session) Gate() *permission.Gate { return s.gate }

// Log returns the alert log.
func (s *Session) Log() *alertlog.Log { return s.log }

// RequestPermission asks the user. Call it only from a user action.
func (s *Session) RequestPermission(ctx context.Context) (permission.State, error) {
	return s.gate.Request(ctx)
}

// SelectPattern changes the vibration pattern for subsequent cycles.
func (s *Session) SelectPattern(key string) error {
	return s.loop.SetPattern(key)
}

func (s *Session) Pattern() catalog.VibrationPattern { return s.loop.Pattern() }

// Snapshot gathers everything a UI renders. It re-reads the platform
// permission first, so a decision reset from outside stops the loop and
// shows up on the next render.
func (s *Session) Snapshot() Snapshot {
	perm := s.gate.Refresh()

	s.mu.Lock()
	starting := s.starting
	a := s.agent
	remote := s.remote
	s.mu.Unlock()

	snap := Snapshot{
		Permission:         perm,
		Running:            s.loop.Running(),
		Starting:           starting,
		Pattern:            s.loop.Pattern(),
		Entries:            s.log.List(),
		Stats:              s.loop.Stats(),
		Interval:           s.loop.Interval(),
		Backend:            s.notifier.Name(),
		VibrationSupported: s.cfg.Alerts.VibrationEnabled && s.vibrator.Supported(),
		AgentMode:          AgentOff,
		Focused:            s.focused.Load(),
	}
	switch {
	case remote != nil:
		snap.AgentMode = AgentRemote
		snap.AgentState = s.cfg.Agent.Endpoint
	case a != nil:
		snap.AgentMode = AgentInProcess
		snap.AgentState = a.State().String()
	}
	return snap
}

// Close stops the loop and releases the agent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.starting = false
	s.mu.Unlock()

	s.startMu.Lock()
	s.loop.Stop()
	s.startMu.Unlock()
	s.loop.Wait()

	s.mu.Lock()
	a, remote := s.agent, s.remote
	s.mu.Unlock()

	var err error
	if a != nil {
		_ = a.Detach(context.Background(), s.id)
	}
	if remote != nil {
		err = remote.Close()
	}
	if s.ownRegistry {
		s.registry.Close()
	}
	return err
}

func (s *Session) onPermissionChange(from, to permission.State) {
	switch to {
	case permission.Granted:
		s.scheduleStart()
	default:
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
		}
		s.starting = false
		s.mu.Unlock()
		s.loop.Stop()
	}
}

// scheduleStart starts the loop after the configured delay. A pending
// start is replaced, not duplicated.
func (s *Session) scheduleStart() {
	delay := time.Duration(s.cfg.Alerts.StartDelayMS) * time.Millisecond

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.starting = true
	s.timer = time.AfterFunc(delay, s.start)
}

func (s *Session) start() {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.starting = false
	s.mu.Unlock()

	if !s.gate.Allowed() {
		s.logger.Info("permission withdrawn before start")
		return
	}
	s.connectAgent()

	if err := s.loop.Start(); err != nil {
		s.logger.Warn("alert loop not started", "error", err)
	}
}

// connectAgent registers the delivery agent once per session.
func (s *Session) connectAgent() {
	if !s.cfg.Agent.Enabled {
		return
	}
	s.mu.Lock()
	if s.agent != nil || s.remote != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if ep := s.cfg.Agent.Endpoint; ep != "" {
		c, err := agentrpc.Dial(ep, s.cfg.Agent.Origin)
		if err != nil {
			s.logger.Error("agent unavailable, delivering directly", "endpoint", ep, "error", err)
			return
		}
		s.mu.Lock()
		s.remote = c
		s.mu.Unlock()
		s.loop.SetAgent(c)
		s.logger.Info("using remote agent", "endpoint", ep)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, created, err := s.registry.Register(ctx, agent.Options{
		Origin:   s.cfg.Agent.Origin,
		Notifier: s.notifier,
		Opener:   s.opener,
		Logger:   s.logger,
	})
	if err != nil {
		s.logger.Error("agent registration failed, delivering directly", "error", err)
		return
	}
	if err := a.Attach(ctx, s); err != nil {
		s.logger.Warn("attaching session to agent", "error", err)
	}

	s.mu.Lock()
	s.agent = a
	s.mu.Unlock()
	s.loop.SetAgent(a)
	s.logger.Info("agent registered", "origin", a.Origin(), "created", created)
}
