// Package stop decides when the automation loop must halt.
package stop

import (
	"context"
	"errors"
	"sort"

	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/notify"
	"github.com/okian/stagedrops/pkg/logger"
	"github.com/okian/stagedrops/pkg/metrics"
)

// Subtask names the stage validity check in notifications.
const Subtask = "CheckStageValid"

// Reason explains a stop verdict.
type Reason string

// Stop reasons.
const (
	ReasonNone          Reason = ""
	ReasonInvalidStage  Reason = "invalid_stage"
	ReasonTargetReached Reason = "target_reached"
)

// HaltActions are the host actions whose run limits are zeroed on stop.
var HaltActions = []string{"StartButton1", "StartButton2", "MedicineConfirm", "StoneConfirm"}

// Control lets the evaluator cap how many more times host actions run.
type Control interface {
	SetTimesLimit(ctx context.Context, action string, limit int) error
}

// Verdict is the outcome of one evaluation.
type Verdict struct {
	Stop   bool
	Reason Reason
	Item   string
}

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithSink sets the notification sink.
func WithSink(sink notify.Sink) Option {
	return func(e *Evaluator) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// Evaluator checks the stage validity and the stop targets.
type Evaluator struct {
	targets map[string]int
	items   []string
	sink    notify.Sink
	logger  logger.Logger
}

// NewEvaluator creates an evaluator for targets. The map is copied.
func NewEvaluator(targets map[string]int, opts ...Option) *Evaluator {
	e := &Evaluator{
		targets: make(map[string]int, len(targets)),
		sink:    notify.Fanout{},
		logger:  logger.Get().Named("stop"),
	}
	for item, q := range targets {
		e.targets[item] = q
		e.items = append(e.items, item)
	}
	sort.Strings(e.items)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Evaluate decides whether to stop after a round. An invalid stage always
// stops; otherwise the first target (by item id) whose total is reached wins.
func (e *Evaluator) Evaluate(ctx context.Context, info model.RoundInfo, totals map[string]int) Verdict {
	if !info.Stage.Valid() {
		e.sink.Notify(ctx, model.NewNotification(model.KindStageInvalid, Subtask, "no-reward stage").
			With("stage_code", info.Stage.StageCode))
		return Verdict{Stop: true, Reason: ReasonInvalidStage}
	}

	for _, item := range e.items {
		if totals[item] >= e.targets[item] {
			return Verdict{Stop: true, Reason: ReasonTargetReached, Item: item}
		}
	}
	return Verdict{}
}

// Halt zeroes the run limits of the looping actions so the host stops after
// the current step.
func (e *Evaluator) Halt(ctx context.Context, control Control, verdict Verdict) error {
	metrics.RecordStopSignal(string(verdict.Reason))
	e.logger.Info(ctx, "stopping",
		logger.String("reason", string(verdict.Reason)),
		logger.String("item", verdict.Item),
	)

	var errs []error
	for _, action := range HaltActions {
		if err := control.SetTimesLimit(ctx, action, 0); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
