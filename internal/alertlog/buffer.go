package alertlog

import (
	"sync"
	"time"

	"github.com/nixlim/buzz/internal/catalog"
)

// DefaultCapacity is the number of entries kept on screen.
const DefaultCapacity = 50

// Log is a fixed-capacity, thread-safe ring buffer of attempt records.
// When the buffer is full, the oldest entry is evicted to make room.
// Reads return entries newest first.
type Log struct {
	mu     sync.RWMutex
	items  []Entry
	cap    int
	head   int // index of the oldest element
	count  int // number of elements currently stored
	nextID int64

	now func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source used by Record.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates a Log with the given capacity. Capacity must be at least 1.
func New(capacity int, opts ...Option) *Log {
	if capacity < 1 {
		capacity = 1
	}
	l := &Log{
		items: make([]Entry, capacity),
		cap:   capacity,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record builds an entry for c stamped with the current time and a fresh
// ID, appends it, and returns it.
func (l *Log) Record(c catalog.AlertContent) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	at := l.now()
	e := Entry{
		ID:        l.nextID,
		Message:   c.Message(),
		Timestamp: at.Local().Format(TimestampLayout),
		At:        at,
	}
	l.appendLocked(e)
	return e
}

func (l *Log) appendLocked(e Entry) {
	if l.count == l.cap {
		// Full; overwrite oldest and advance head.
		l.items[l.head] = e
		l.head = (l.head + 1) % l.cap
		return
	}
	l.items[(l.head+l.count)%l.cap] = e
	l.count++
}

// List returns all entries, newest first.
func (l *Log) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.count == 0 {
		return nil
	}
	result := make([]Entry, l.count)
	for i := 0; i < l.count; i++ {
		result[i] = l.items[(l.head+l.count-1-i)%l.cap]
	}
	return result
}

// Latest returns the newest entry.
func (l *Log) Latest() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.count == 0 {
		return Entry{}, false
	}
	return l.items[(l.head+l.count-1)%l.cap], true
}

// Len returns the number of entries currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Cap returns the capacity of the log.
func (l *Log) Cap() int {
	return l.cap
}
