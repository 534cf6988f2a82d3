// Package notify is the single outward notification channel of a session.
package notify

import (
	"context"
	"sync"

	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/pkg/logger"
)

// defaultHistorySize bounds the notification history kept for observers.
const defaultHistorySize = 256

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, n model.Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n model.Notification)

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, n model.Notification) { f(ctx, n) }

// Fanout forwards every notification to each sink in order.
type Fanout []Sink

// Notify implements Sink.
func (f Fanout) Notify(ctx context.Context, n model.Notification) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

// History keeps the most recent notifications in a ring buffer.
type History struct {
	mu    sync.RWMutex
	items []model.Notification
	next  int
	full  bool
}

// NewHistory creates a history holding up to size notifications.
func NewHistory(size int) *History {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &History{items: make([]model.Notification, size)}
}

// Notify implements Sink.
func (h *History) Notify(_ context.Context, n model.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[h.next] = n
	h.next = (h.next + 1) % len(h.items)
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns up to limit notifications, newest first. A non-positive
// limit returns everything held.
func (h *History) Recent(limit int) []model.Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := h.next
	if h.full {
		count = len(h.items)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]model.Notification, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.next - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink creates a sink logging through l.
func NewLogSink(l logger.Logger) *LogSink {
	return &LogSink{logger: l}
}

// Notify implements Sink.
func (s *LogSink) Notify(ctx context.Context, n model.Notification) {
	fields := []logger.Field{
		logger.String("kind", string(n.Kind)),
		logger.String("subtask", n.Subtask),
	}
	if n.Reason != "" {
		fields = append(fields, logger.String("why", n.Reason))
	}
	for k, v := range n.Context {
		fields = append(fields, logger.String(k, v))
	}
	if n.Round != nil {
		fields = append(fields,
			logger.Int("stars", n.Round.Stars),
			logger.String("stage", n.Round.Stage.StageCode),
			logger.Int("drops", len(n.Round.Drops)),
		)
	}

	switch n.Kind {
	case model.KindRecognitionError, model.KindStageInvalid, model.KindReportError:
		s.logger.Warn(ctx, "session notification", fields...)
	default:
		s.logger.Info(ctx, "session notification", fields...)
	}
}

// Recorder collects notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []model.Notification
}

// Notify implements Sink.
func (r *Recorder) Notify(_ context.Context, n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of everything recorded.
func (r *Recorder) All() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Kinds returns the kinds recorded, in order.
func (r *Recorder) Kinds() []model.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Kind, len(r.items))
	for i, n := range r.items {
		out[i] = n.Kind
	}
	return out
}

// OfKind returns the recorded notifications of kind.
func (r *Recorder) OfKind(kind model.Kind) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.items {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
