// Package diag keeps an in-memory record of notable events (failed config loads,
// injected elements) so they can be inspected after the fact.
package diag

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultLimit = 1000

// Kind classifies a diagnostic entry.
type Kind string

const (
	KindConfigLoadFailed Kind = "config_load_failed"
	KindElementAppended  Kind = "element_appended"
)

// Entry is a single diagnostic record.
type Entry struct {
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	Project string    `json:"project,omitempty"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
	Details any       `json:"details,omitempty"`
}

// Log is a bounded, append-only diagnostic log. Every entry is mirrored to the
// zap logger at debug level.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
	logger  *zap.Logger
	clock   func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithLimit caps the number of retained entries; the oldest are dropped first.
func WithLimit(limit int) Option {
	return func(l *Log) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) {
		l.clock = clock
	}
}

// New creates an empty log. A nil logger disables mirroring.
func New(logger *zap.Logger, opts ...Option) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{
		limit:  defaultLimit,
		logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an entry, stamping it with the current time when unset.
func (l *Log) Record(e Entry) {
	if e.Time.IsZero() {
		e.Time = l.clock()
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	if over := len(l.entries) - l.limit; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
	l.mu.Unlock()

	l.logger.Debug(e.Message,
		zap.String("kind", string(e.Kind)),
		zap.String("project", e.Project),
		zap.String("error", e.Error),
	)
}

// Entries returns a copy of the retained entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Reset drops every entry.
func (l *Log) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
