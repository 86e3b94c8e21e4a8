// Package logging sets up the diagnostic log. The TUI owns the terminal, so
// records go to a rotating JSON file; recent warnings and errors are also
// kept in memory so the header can show a count.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nixlim/buzz/internal/config"
)

// Entry is a captured WARN or ERROR record.
type Entry struct {
	Time      time.Time
	Level     slog.Level
	Component string
	Message   string
}

// String renders the entry as one diagnostics line.
func (e Entry) String() string {
	msg := e.Message
	if e.Component != "" {
		msg = e.Component + ": " + msg
	}
	return fmt.Sprintf("%s %-5s %s", e.Time.Local().Format("15:04:05"), e.Level.String(), msg)
}

// diagRing holds the latest captured entries and running totals. Totals
// keep counting after old entries fall off.
type diagRing struct {
	mu     sync.Mutex
	recent []Entry
	limit  int
	warns  int
	errors int
}

func (d *diagRing) record(e Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e.Level >= slog.LevelError {
		d.errors++
	} else {
		d.warns++
	}
	if len(d.recent) == d.limit {
		copy(d.recent, d.recent[1:])
		d.recent = d.recent[:d.limit-1]
	}
	d.recent = append(d.recent, e)
}

// newestFirst copies the held entries, most recent first.
func (d *diagRing) newestFirst() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Entry, len(d.recent))
	for i, e := range d.recent {
		out[len(d.recent)-1-i] = e
	}
	return out
}

func (d *diagRing) totals() (warn, err int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warns, d.errors
}

// captureHandler forwards to inner and copies WARN+ records into the ring,
// tagged with the logger's "component" attribute.
type captureHandler struct {
	inner     slog.Handler
	ring      *diagRing
	component string
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		h.ring.record(Entry{Time: r.Time, Level: r.Level, Component: h.component, Message: r.Message})
	}
	return h.inner.Handle(ctx, r)
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &captureHandler{inner: h.inner.WithAttrs(attrs), ring: h.ring, component: h.component}
	for _, a := range attrs {
		if a.Key == "component" {
			next.component = a.Value.String()
		}
	}
	return next
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{inner: h.inner.WithGroup(name), ring: h.ring, component: h.component}
}

// Logger bundles the slog logger with its file sink and captured entries.
type Logger struct {
	*slog.Logger

	// Path is the log file in use, empty when writing to a plain writer.
	Path string

	closer io.Closer
	ring   *diagRing
}

const captureSize = 20

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New opens a rotating log file as configured. debug forces the debug level.
func New(cfg config.LoggingConfig, debug bool) (*Logger, error) {
	path := config.ExpandPath(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("logging path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	}

	level := ParseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}

	l := NewWriter(w, level)
	l.Path = path
	l.closer = w
	return l, nil
}

// NewWriter builds a Logger that writes JSON lines to w.
func NewWriter(w io.Writer, level slog.Level) *Logger {
	ring := &diagRing{limit: captureSize}
	handler := &captureHandler{
		inner: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
		ring:  ring,
	}
	return &Logger{
		Logger: slog.New(handler),
		ring:   ring,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWriter(io.Discard, slog.LevelError+1)
}

// Counts returns how many warnings and errors have been logged.
func (l *Logger) Counts() (warn, err int) {
	return l.ring.totals()
}

// Recent returns the captured WARN/ERROR entries, newest first.
func (l *Logger) Recent() []Entry {
	return l.ring.newestFirst()
}

// Close closes the file sink, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
