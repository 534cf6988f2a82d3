// Package timing tightens the start button's post delay from the observed
// round duration.
package timing

import (
	"context"
	"sync"
	"time"

	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/pkg/logger"
	"github.com/okian/stagedrops/pkg/metrics"
)

// Task and action names whose timings are involved in the calibration.
const (
	EndOfActionTask = "EndOfAction"
	RecognitionWait = "PRTS"
	StartButton     = "StartButton2"
)

// Params looks up named task timing constants in milliseconds.
type Params interface {
	PreDelay(name string) int
	PostDelay(name string) int
}

// Control forwards post delay changes to the host.
type Control interface {
	SetPostDelay(ctx context.Context, action string, delayMs int64) error
}

// Calibrator applies the corrective delay once per instance.
type Calibrator struct {
	params  Params
	control Control
	now     func() time.Time
	logger  logger.Logger

	mu      sync.Mutex
	applied bool
}

// Option applies a configuration option to the Calibrator.
type Option func(*Calibrator)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Calibrator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Calibrator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCalibrator creates a calibrator.
func NewCalibrator(params Params, control Control, opts ...Option) *Calibrator {
	c := &Calibrator{
		params:  params,
		control: control,
		now:     time.Now,
		logger:  logger.Get().Named("timing"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CorrectiveDelay computes the post delay in milliseconds for a round that
// started at lastStart (unix seconds) and ended at now.
func CorrectiveDelay(lastStart int64, now time.Time, expectedMs int) int64 {
	duration := now.Unix() - lastStart
	return duration*1000 - int64(expectedMs)
}

// Calibrate forwards the corrective delay to the host when allowed. It
// reports the delay and whether it was applied. The delay may be negative;
// the host clamps it.
func (c *Calibrator) Calibrate(ctx context.Context, round model.Round) (int64, bool) {
	if round.Annihilation {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.applied {
		return 0, false
	}

	lastStart := round.Start
	if lastStart == 0 {
		return 0, false
	}

	c.applied = true
	expected := c.params.PreDelay(EndOfActionTask) + c.params.PostDelay(RecognitionWait)
	delay := CorrectiveDelay(lastStart, c.now(), expected)

	c.logger.Info(ctx, "set start button post delay",
		logger.String("action", StartButton),
		logger.Int64("delayMs", delay),
		logger.Int("expectedMs", expected),
	)
	metrics.UpdateCalibratedDelay(delay)

	if err := c.control.SetPostDelay(ctx, StartButton, delay); err != nil {
		c.logger.Error(ctx, "host rejected post delay", logger.Error(err))
	}
	return delay, true
}
