// Package hostctl records the control requests a session makes to its host
// when the host is remote and polls for them.
package hostctl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/notify"
	"github.com/okian/stagedrops/pkg/logger"
)

// Subtask names control requests in notifications.
const Subtask = "HostControl"

// Override is the latest requested state of one host action.
type Override struct {
	Action      string    `json:"action"`
	PostDelayMs *int64    `json:"post_delay_ms,omitempty"`
	TimesLimit  *int      `json:"times_limit,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Recorder implements timing.Control and stop.Control by keeping the
// requested overrides.
type Recorder struct {
	mu        sync.RWMutex
	overrides map[string]Override
	sink      notify.Sink
	logger    logger.Logger
}

// New creates a recorder that announces every change on sink.
func New(sink notify.Sink) *Recorder {
	if sink == nil {
		sink = notify.Fanout{}
	}
	return &Recorder{
		overrides: make(map[string]Override),
		sink:      sink,
		logger:    logger.Get().Named("hostctl"),
	}
}

// SetPostDelay records a post delay for action, clamped at zero.
func (r *Recorder) SetPostDelay(ctx context.Context, action string, delayMs int64) error {
	if delayMs < 0 {
		r.logger.Debug(ctx, "clamping negative post delay", logger.String("action", action), logger.Int64("delayMs", delayMs))
		delayMs = 0
	}

	r.mu.Lock()
	o := r.overrides[action]
	o.Action = action
	o.PostDelayMs = &delayMs
	o.UpdatedAt = time.Now()
	r.overrides[action] = o
	r.mu.Unlock()

	r.sink.Notify(ctx, model.NewNotification(model.KindControl, Subtask, "post_delay").
		With("action", action).
		With("value", fmt.Sprint(delayMs)))
	return nil
}

// SetTimesLimit records a run limit for action, clamped at zero.
func (r *Recorder) SetTimesLimit(ctx context.Context, action string, limit int) error {
	if limit < 0 {
		limit = 0
	}

	r.mu.Lock()
	o := r.overrides[action]
	o.Action = action
	o.TimesLimit = &limit
	o.UpdatedAt = time.Now()
	r.overrides[action] = o
	r.mu.Unlock()

	r.sink.Notify(ctx, model.NewNotification(model.KindControl, Subtask, "times_limit").
		With("action", action).
		With("value", fmt.Sprint(limit)))
	return nil
}

// Overrides returns the current overrides keyed by action.
func (r *Recorder) Overrides() map[string]Override {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Override, len(r.overrides))
	for k, v := range r.overrides {
		out[k] = v
	}
	return out
}

// Halted reports whether any action was capped at zero runs.
func (r *Recorder) Halted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.overrides {
		if o.TimesLimit != nil && *o.TimesLimit == 0 {
			return true
		}
	}
	return false
}

// Reset clears all overrides.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides = make(map[string]Override)
}
