// Package vibrate plays pulse sequences. Desktops have no vibration motor,
// so the terminal bell stands in for one: each vibrate segment rings once.
package vibrate

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Vibrator plays a pulse sequence: alternating vibrate/pause durations in
// milliseconds, starting with vibrate.
type Vibrator interface {
	// Vibrate starts the sequence and returns immediately. A new call
	// cancels any sequence still playing. It returns false when the
	// sequence was not started.
	Vibrate(pulses []int) bool

	// Supported reports whether the device can vibrate at all.
	Supported() bool
}

// None is the vibrator for devices without the capability.
type None struct{}

func (None) Vibrate([]int) bool { return false }
func (None) Supported() bool    { return false }

// Bell rings the terminal bell for each vibrate segment.
type Bell struct {
	w         io.Writer
	supported bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBell returns a Bell writing to f. It is supported only when f is a
// terminal.
func NewBell(f *os.File) *Bell {
	fd := f.Fd()
	return &Bell{
		w:         f,
		supported: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// newBellWriter is used by tests to capture output.
func newBellWriter(w io.Writer) *Bell {
	return &Bell{w: w, supported: true}
}

func (b *Bell) Supported() bool { return b.supported }

// Vibrate plays pulses in the background.
func (b *Bell) Vibrate(pulses []int) bool {
	if !b.supported || len(pulses) == 0 {
		return false
	}
	for _, ms := range pulses {
		if ms < 0 {
			return false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	seq := append([]int(nil), pulses...)
	go func() {
		defer close(done)
		b.play(ctx, seq)
	}()
	return true
}

// Stop cancels the sequence in progress, if any.
func (b *Bell) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

func (b *Bell) play(ctx context.Context, pulses []int) {
	for i, ms := range pulses {
		if i%2 == 0 && ms > 0 {
			_, _ = io.WriteString(b.w, "\a")
		}
		if ms == 0 {
			continue
		}
		t := time.NewTimer(time.Duration(ms) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// wait blocks until the current sequence finishes.
func (b *Bell) wait() {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}
