package permission

import (
	"context"
	"log/slog"
	"sync"
)

// Listener is called after the mirrored state changes.
type Listener func(from, to State)

// Gate mirrors the platform permission for one session and decides whether
// the alert loop may run.
type Gate struct {
	platform Platform
	log      *slog.Logger

	mu        sync.Mutex
	state     State
	listeners []Listener
}

// NewGate mirrors the platform's current state. A platform without the
// capability pins the gate at Unsupported.
func NewGate(p Platform, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	g := &Gate{platform: p, log: log.With("comp", "permission")}
	g.state = g.Query()
	return g
}

// Query reads the platform state without touching the mirror.
func (g *Gate) Query() State {
	if !g.platform.Supported() {
		return Unsupported
	}
	return g.platform.Query()
}

// State returns the mirrored state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Allowed reports whether delivery may happen right now, reading through to
// the platform so that an external reset is honoured.
func (g *Gate) Allowed() bool {
	return g.Query() == Granted
}

// OnChange registers fn for every future transition of the mirror.
func (g *Gate) OnChange(fn Listener) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

// Request asks the platform for permission. It must be called from a user
// action. When already granted it returns Granted without prompting.
func (g *Gate) Request(ctx context.Context) (State, error) {
	if cur := g.State(); cur == Granted || cur == Unsupported {
		if cur == Unsupported {
			return Unsupported, ErrUnsupported
		}
		return Granted, nil
	}

	s, err := g.platform.Request(ctx)
	if err != nil {
		g.log.Warn("permission request failed", "err", err, "state", s.String())
	}
	g.set(s)
	return s, err
}

// Refresh re-reads the platform and updates the mirror.
func (g *Gate) Refresh() State {
	s := g.Query()
	g.set(s)
	return s
}

func (g *Gate) set(s State) {
	g.mu.Lock()
	from := g.state
	g.state = s
	listeners := append([]Listener(nil), g.listeners...)
	g.mu.Unlock()

	if from == s {
		return
	}
	g.log.Info("permission changed", "from", from.String(), "to", s.String())
	for _, fn := range listeners {
		fn(from, s)
	}
}
