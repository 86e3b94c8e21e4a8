// Package loop runs the periodic alert cycle: pick a message, record it,
// deliver it through the agent or the notifier, and buzz.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nixlim/buzz/internal/alertlog"
	"github.com/nixlim/buzz/internal/catalog"
	"github.com/nixlim/buzz/internal/config"
	"github.com/nixlim/buzz/internal/notify"
	"github.com/nixlim/buzz/internal/permission"
	"github.com/nixlim/buzz/internal/vibrate"
)

// ErrNotGranted is returned by Start when notification permission has not
// been granted.
var ErrNotGranted = errors.New("notification permission not granted")

const (
	cycleTimeout      = 10 * time.Second
	agentReadyTimeout = 250 * time.Millisecond
)

// PermissionChecker reports the live permission state. *permission.Gate
// implements it.
type PermissionChecker interface {
	Query() permission.State
}

// Agent is the delivery agent as seen by the loop. Both the in-process
// actor and the remote gRPC client implement it.
type Agent interface {
	Ready(ctx context.Context) error
	ShowNotification(ctx context.Context, n notify.Notification) error
}

// Route says how a cycle delivered its notification.
type Route string

const (
	RouteAgent  Route = "agent"
	RouteDirect Route = "direct"
)

// Options wires a Loop.
type Options struct {
	Alerts        config.AlertsConfig
	Notifications config.NotificationConfig

	Gate     PermissionChecker
	Notifier notify.Notifier
	Agent    Agent
	Vibrator vibrate.Vibrator
	Log      *alertlog.Log
	Logger   *slog.Logger

	// Rand drives message selection. Nil uses the global source.
	Rand catalog.Intn

	// Interval overrides Alerts.IntervalMS when positive.
	Interval time.Duration
}

// Stats counts cycles since the loop was created.
type Stats struct {
	Cycles   int64
	Skipped  int64
	Failures int64
	ViaAgent int64
	Direct   int64
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// Loop is the Alert Loop. The zero value is not usable; call New.
type Loop struct {
	gate     PermissionChecker
	notifier notify.Notifier
	vibrator vibrate.Vibrator
	log      *alertlog.Log
	logger   *slog.Logger
	notes    config.NotificationConfig
	interval time.Duration

	vibrationEnabled bool
	preferAgent      bool

	randMu sync.Mutex
	rand   catalog.Intn

	mu      sync.Mutex
	cancel  context.CancelFunc
	agent   Agent
	pattern catalog.VibrationPattern

	running  atomic.Bool
	// inFlight counts cycles still running across all tasks, including
	// ones left over from a replaced task.
	inFlight atomic.Int32
	wg       sync.WaitGroup

	cycles, skipped, failures, viaAgent, direct atomic.Int64

	newTicker func(time.Duration) ticker
}

// New builds a stopped loop. Missing collaborators get inert defaults.
func New(opts Options) *Loop {
	if opts.Notifier == nil {
		opts.Notifier = notify.Disabled{}
	}
	if opts.Vibrator == nil {
		opts.Vibrator = vibrate.None{}
	}
	if opts.Log == nil {
		opts.Log = alertlog.New(alertlog.DefaultCapacity)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Duration(opts.Alerts.IntervalMS) * time.Millisecond
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	pattern, ok := catalog.LookupPattern(opts.Alerts.Pattern)
	if !ok {
		pattern, _ = catalog.LookupPattern(catalog.DefaultPatternKey)
	}

	return &Loop{
		gate:             opts.Gate,
		notifier:         opts.Notifier,
		vibrator:         opts.Vibrator,
		log:              opts.Log,
		logger:           opts.Logger.With("component", "loop"),
		notes:            opts.Notifications,
		interval:         interval,
		vibrationEnabled: opts.Alerts.VibrationEnabled,
		preferAgent:      opts.Alerts.PreferAgentDelivery,
		rand:             opts.Rand,
		agent:            opts.Agent,
		pattern:          pattern,
		newTicker: func(d time.Duration) ticker {
			return timeTicker{time.NewTicker(d)}
		},
	}
}

// Start begins periodic delivery. Any task already running is replaced,
// so calling Start twice still leaves exactly one task.
func (l *Loop) Start() error {
	if l.gate == nil || l.gate.Query() != permission.Granted {
		return ErrNotGranted
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.running.Store(true)

	l.wg.Add(1)
	go l.run(ctx)
	l.logger.Info("alert loop started", "interval", l.interval.String())
	return nil
}

// Stop cancels future ticks. A cycle already in flight completes.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	l.running.Store(false)
	l.logger.Info("alert loop stopped")
}

// Wait blocks until the task goroutine and any in-flight cycle have exited.
// Call it after Stop.
func (l *Loop) Wait() { l.wg.Wait() }

// Running reports whether periodic delivery is active.
func (l *Loop) Running() bool { return l.running.Load() }

// Interval returns the cycle period.
func (l *Loop) Interval() time.Duration { return l.interval }

// Skipped returns how many ticks were dropped because a cycle was still
// in flight.
func (l *Loop) Skipped() int64 { return l.skipped.Load() }

// Stats returns the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:   l.cycles.Load(),
		Skipped:  l.skipped.Load(),
		Failures: l.failures.Load(),
		ViaAgent: l.viaAgent.Load(),
		Direct:   l.direct.Load(),
	}
}

// SetAgent installs or clears the delivery agent.
func (l *Loop) SetAgent(a Agent) {
	l.mu.Lock()
	l.agent = a
	l.mu.Unlock()
}

// Pattern returns the vibration pattern used by the next cycle.
func (l *Loop) Pattern() catalog.VibrationPattern {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pattern.Clone()
}

// SetPattern selects the pattern for subsequent cycles and plays it once as
// a preview.
func (l *Loop) SetPattern(key string) error {
	p, ok := catalog.LookupPattern(key)
	if !ok {
		return fmt.Errorf("unknown vibration pattern %q", key)
	}
	l.mu.Lock()
	l.pattern = p
	l.mu.Unlock()

	l.logger.Debug("vibration pattern changed", "pattern", key)
	if l.vibrationEnabled && l.vibrator.Supported() {
		l.vibrator.Vibrate(p.Pulses)
	}
	return nil
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	t := l.newTicker(l.interval)
	defer t.Stop()

	// Each task tracks its own cycle so a cycle left over from a replaced
	// task never suppresses the first one of the new task.
	var busy atomic.Bool
	l.tick(ctx, &busy)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			l.tick(ctx, &busy)
		}
	}
}

// tick launches one cycle unless this task's previous one has not finished.
func (l *Loop) tick(ctx context.Context, busy *atomic.Bool) {
	if ctx.Err() != nil {
		return
	}
	if !busy.CompareAndSwap(false, true) {
		l.skipped.Add(1)
		l.logger.Debug("tick skipped, previous cycle still in flight")
		return
	}

	l.inFlight.Add(1)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.inFlight.Add(-1)
		defer busy.Store(false)

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cycleTimeout)
		defer cancel()
		l.DeliveryCycle(cctx)
	}()
}

// DeliveryCycle performs one alert: it always records the attempt, then
// delivers and vibrates when permission still holds. Failures are logged,
// never returned.
func (l *Loop) DeliveryCycle(ctx context.Context) alertlog.Entry {
	l.cycles.Add(1)

	l.randMu.Lock()
	_, content := catalog.Pick(l.rand)
	l.randMu.Unlock()

	entry := l.log.Record(content)

	if l.gate == nil || l.gate.Query() != permission.Granted {
		l.logger.Warn("permission no longer granted, skipping delivery", "entry", entry.ID)
		return entry
	}

	l.mu.Lock()
	pattern := l.pattern.Clone()
	agent := l.agent
	l.mu.Unlock()

	route, err := l.deliver(ctx, agent, l.notification(content, pattern))
	switch {
	case err != nil:
		l.failures.Add(1)
		l.logger.Error("notification delivery failed", "route", string(route), "entry", entry.ID, "error", err)
	case route == RouteAgent:
		l.viaAgent.Add(1)
	default:
		l.direct.Add(1)
	}

	if l.vibrationEnabled && l.vibrator.Supported() {
		if !l.vibrator.Vibrate(pattern.Pulses) {
			l.logger.Debug("vibration rejected", "pattern", pattern.Key)
		}
	}
	return entry
}

func (l *Loop) notification(c catalog.AlertContent, p catalog.VibrationPattern) notify.Notification {
	n := notify.Notification{
		Title:              c.Title,
		Body:               c.Body,
		Icon:               c.Icon,
		Tag:                l.notes.Tag,
		Silent:             l.notes.Silent,
		RequireInteraction: l.notes.RequireInteraction,
		Renotify:           l.notes.Renotify,
	}
	if l.vibrationEnabled {
		n.Vibrate = p.Pulses
	}
	return n
}

func (l *Loop) deliver(ctx context.Context, agent Agent, n notify.Notification) (Route, error) {
	if l.preferAgent && agent != nil {
		rctx, cancel := context.WithTimeout(ctx, agentReadyTimeout)
		err := agent.Ready(rctx)
		cancel()
		if err == nil {
			return RouteAgent, agent.ShowNotification(ctx, n)
		}
		l.logger.Debug("agent not ready, delivering directly", "error", err)
	}
	return RouteDirect, l.notifier.Show(ctx, n)
}
