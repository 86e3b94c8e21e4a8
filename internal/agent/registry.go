package agent

import (
	"context"
	"errors"
	"sync"
)

// Registry holds at most one agent per origin.
type Registry struct {
	mu     sync.Mutex
	agents map[string]*Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// Register returns the running agent for opts.Origin, creating and starting
// one on first use. The second return value reports whether it was created.
func (r *Registry) Register(ctx context.Context, opts Options) (*Agent, bool, error) {
	if opts.Origin == "" {
		return nil, false, errors.New("agent origin must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.agents[opts.Origin]; ok && a.State() != Redundant {
		return a, false, nil
	}
	a := New(opts)
	a.Start()
	r.agents[opts.Origin] = a
	return a, true, nil
}

// Close stops every agent.
func (r *Registry) Close() {
	r.mu.Lock()
	agents := r.agents
	r.agents = make(map[string]*Agent)
	r.mu.Unlock()
	for _, a := range agents {
		a.Stop()
	}
}
