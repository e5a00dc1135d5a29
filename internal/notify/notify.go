// Package notify delivers user-facing notices. Sinks are fire and forget:
// Notify never blocks on I/O and never reports failure.
package notify

import (
	"sync"
	"time"

	"budgetflow/internal/log"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Default display durations.
const (
	DefaultDuration  = 4 * time.Second
	BlockingDuration = 0
)

type Notice struct {
	Message     string    `json:"message"`
	ActionLabel string    `json:"actionLabel,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	Level       Level     `json:"level"`
	At          time.Time `json:"at"`
}

// Sink receives notices.
type Sink interface {
	Notify(Notice)
}

// Info builds an informational notice shown for the default duration.
func Info(msg string) Notice {
	return Notice{Message: msg, Level: LevelInfo, DurationMs: DefaultDuration.Milliseconds()}
}

func Warning(msg string) Notice {
	return Notice{Message: msg, Level: LevelWarning, DurationMs: DefaultDuration.Milliseconds()}
}

// Blocking builds an error notice that stays until the user acts on it.
func Blocking(msg, action string) Notice {
	return Notice{Message: msg, ActionLabel: action, Level: LevelError, DurationMs: BlockingDuration}
}

// Func adapts a function to Sink. It is how callers subscribe to
// "data changed" style notifications.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

type discard struct{}

func (discard) Notify(Notice) {}

// Discard drops every notice.
var Discard Sink = discard{}

// Multi fans a notice out to every sink in order.
type Multi []Sink

func (m Multi) Notify(n Notice) {
	for _, s := range m {
		if s != nil {
			s.Notify(n)
		}
	}
}

// LogSink writes notices to the structured log.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogSink{logger: logger.WithComponent(log.ComponentNotify)}
}

func (s *LogSink) Notify(n Notice) {
	args := []any{"level", string(n.Level)}
	if n.ActionLabel != "" {
		args = append(args, "action", n.ActionLabel)
	}
	switch n.Level {
	case LevelError:
		s.logger.Error(n.Message, args...)
	case LevelWarning:
		s.logger.Warn(n.Message, args...)
	default:
		s.logger.Info(n.Message, args...)
	}
}

// DefaultBufferSize is how many notices the API keeps for polling clients.
const DefaultBufferSize = 100

// Buffer keeps the most recent notices in a fixed-size ring.
type Buffer struct {
	mu    sync.Mutex
	ring  []Notice
	next  int
	count int
	now   func() time.Time
}

func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{ring: make([]Notice, size), now: time.Now}
}

func (b *Buffer) Notify(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n.At.IsZero() {
		n.At = b.now()
	}
	b.ring[b.next] = n
	b.next = (b.next + 1) % len(b.ring)
	if b.count < len(b.ring) {
		b.count++
	}
}

// Recent returns up to n notices, newest first. n <= 0 returns all.
func (b *Buffer) Recent(n int) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > b.count {
		n = b.count
	}
	out := make([]Notice, 0, n)
	for i := 1; i <= n; i++ {
		idx := (b.next - i + len(b.ring)) % len(b.ring)
		out = append(out, b.ring[idx])
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
