/**
 * @description
 * Transient user notifications ("toasts"). The gateway and the ledger
 * view-model report every failure and every completed mutation through a
 * Notifier. Delivery must never block the caller.
 */

package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notification is one transient message shown to the operator.
type Notification struct {
	Level   Level
	Message string
	At      time.Time
}

// Notifier delivers notifications without blocking.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Success builds a success notification stamped now.
func Success(format string, args ...interface{}) Notification {
	return Notification{Level: LevelSuccess, Message: fmt.Sprintf(format, args...), At: time.Now()}
}

// Error builds an error notification stamped now.
func Error(message string) Notification {
	return Notification{Level: LevelError, Message: message, At: time.Now()}
}

// Info builds an informational notification stamped now.
func Info(message string) Notification {
	return Notification{Level: LevelInfo, Message: message, At: time.Now()}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(context.Context, Notification) {}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(zap.String("component", "notify"))}
}

func (n *LogNotifier) Notify(_ context.Context, note Notification) {
	fields := []zap.Field{zap.String("level_tag", string(note.Level))}
	if note.Level == LevelError {
		n.logger.Warn(note.Message, fields...)
		return
	}
	n.logger.Info(note.Message, fields...)
}

// Console prints notifications as single lines to a writer. Writes are serialised
// so concurrent callers never interleave output.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Notify(_ context.Context, note Notification) {
	prefix := "ℹ"
	switch note.Level {
	case LevelSuccess:
		prefix = "✔"
	case LevelError:
		prefix = "✖"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s\n", prefix, note.Message)
}

// Recorder keeps every notification in memory. Tests use it to assert what the
// operator would have seen.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(_ context.Context, note Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, note)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns the most recent notification, if any.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, note Notification) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, note)
		}
	}
}
