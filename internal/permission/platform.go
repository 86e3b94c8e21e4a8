package permission

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Platform owns the permission decision and its persistence.
type Platform interface {
	// Supported reports whether the notification capability exists.
	Supported() bool

	// Query returns the current decision without prompting.
	Query() State

	// Request prompts the user if no decision exists yet and returns the
	// resulting state. It blocks until the user answers or ctx ends.
	Request(ctx context.Context) (State, error)
}

// Prompter asks the user for a decision. Implementations block until the
// user answers or ctx is done.
type Prompter interface {
	Ask(ctx context.Context) (Decision, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context) (Decision, error)

func (f PrompterFunc) Ask(ctx context.Context) (Decision, error) { return f(ctx) }

// record is the on-disk form of a decision.
type record struct {
	State     string    `toml:"state"`
	DecidedAt time.Time `toml:"decided_at"`
}

// FilePlatform remembers the decision in a small TOML file, the way a
// browser remembers a site's notification permission across restarts.
type FilePlatform struct {
	path      string
	supported bool

	mu       sync.Mutex // serialises prompts and writes
	prompter Prompter
	now      func() time.Time
}

// NewFilePlatform creates a platform persisting to path. supported should
// reflect whether any notification backend is available.
func NewFilePlatform(path string, supported bool, prompter Prompter) *FilePlatform {
	return &FilePlatform{
		path:      path,
		supported: supported,
		prompter:  prompter,
		now:       time.Now,
	}
}

// SetPrompter attaches the UI that answers prompts.
func (p *FilePlatform) SetPrompter(pr Prompter) {
	p.mu.Lock()
	p.prompter = pr
	p.mu.Unlock()
}

func (p *FilePlatform) Supported() bool { return p.supported }

// Query reads the remembered decision. A missing or unreadable file means
// no decision has been made.
func (p *FilePlatform) Query() State {
	if !p.supported {
		return Unsupported
	}
	s, err := p.load()
	if err != nil {
		return Unrequested
	}
	return s
}

// Request prompts only while the state is default.
func (p *FilePlatform) Request(ctx context.Context) (State, error) {
	if !p.supported {
		return Unsupported, ErrUnsupported
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if s, err := p.load(); err == nil && s != Unrequested {
		return s, nil
	}
	if p.prompter == nil {
		return Unrequested, ErrNoPrompter
	}

	d, err := p.prompter.Ask(ctx)
	if err != nil {
		return Unrequested, fmt.Errorf("permission prompt: %w", err)
	}

	var s State
	switch d {
	case Allow:
		s = Granted
	case Block:
		s = Denied
	default:
		return Unrequested, nil
	}
	if err := p.save(s); err != nil {
		// The answer still stands for this session.
		return s, fmt.Errorf("remembering permission: %w", err)
	}
	return s, nil
}

// Reset forgets the decision. This is the out-of-band reset a user performs
// to recover from a denial.
func (p *FilePlatform) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing permission state: %w", err)
	}
	return nil
}

func (p *FilePlatform) load() (State, error) {
	var rec record
	if _, err := toml.DecodeFile(p.path, &rec); err != nil {
		return Unrequested, err
	}
	return ParseState(rec.State)
}

func (p *FilePlatform) save(s State) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".permission-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	rec := record{State: s.String(), DecidedAt: p.now().UTC()}
	if err := toml.NewEncoder(tmp).Encode(rec); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}
