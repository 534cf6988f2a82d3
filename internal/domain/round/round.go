// Package round runs the per-round chain: admission, calibration,
// recognition, aggregation, stop evaluation and reporting.
package round

import (
	"context"
	"sync"

	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/notify"
	"github.com/okian/stagedrops/internal/domain/stop"
	"github.com/okian/stagedrops/pkg/logger"
	"github.com/okian/stagedrops/pkg/metrics"
)

// RecognizeSubtask names the recognition step in notifications.
const RecognizeSubtask = "RecognizeDrops"

// Gate admits round completion events.
type Gate interface {
	Admit(ctx context.Context, ev model.Event) (model.Round, bool)
}

// Calibrator tightens host timings after a round.
type Calibrator interface {
	Calibrate(ctx context.Context, round model.Round) (int64, bool)
}

// Recognizer turns the settlement frame into an analysis.
type Recognizer interface {
	Recognize(ctx context.Context, round model.Round) (model.Analysis, error)
}

// Aggregator merges drops into the session totals.
type Aggregator interface {
	Merge(ctx context.Context, analysis model.Analysis) (model.RoundInfo, error)
	Totals(ctx context.Context) map[string]int
}

// Evaluator decides whether to halt the loop.
type Evaluator interface {
	Evaluate(ctx context.Context, info model.RoundInfo, totals map[string]int) stop.Verdict
	Halt(ctx context.Context, control stop.Control, verdict stop.Verdict) error
}

// Reporter submits rounds to the statistics service.
type Reporter interface {
	Submit(ctx context.Context, round model.Round, info model.RoundInfo) error
}

// Outcome describes what happened to one event.
type Outcome struct {
	Event      model.Event
	Admitted   bool
	Round      model.Round
	Calibrated bool
	DelayMs    int64
	Info       *model.RoundInfo
	Verdict    stop.Verdict
	Err        error
}

// Pipeline processes one event at a time.
type Pipeline struct {
	gate       Gate
	calibrator Calibrator
	recognizer Recognizer
	aggregator Aggregator
	evaluator  Evaluator
	reporter   Reporter
	control    stop.Control
	sink       notify.Sink
	logger     logger.Logger

	mu sync.Mutex
}

// Deps are the components a Pipeline chains.
type Deps struct {
	Gate       Gate
	Calibrator Calibrator
	Recognizer Recognizer
	Aggregator Aggregator
	Evaluator  Evaluator
	Reporter   Reporter
	Control    stop.Control
	Sink       notify.Sink
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline chains deps.
func NewPipeline(deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		gate:       deps.Gate,
		calibrator: deps.Calibrator,
		recognizer: deps.Recognizer,
		aggregator: deps.Aggregator,
		evaluator:  deps.Evaluator,
		reporter:   deps.Reporter,
		control:    deps.Control,
		sink:       deps.Sink,
		logger:     logger.Get().Named("round"),
	}
	if p.sink == nil {
		p.sink = notify.Fanout{}
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Process runs the chain for ev. Errors local to the round are returned in
// the outcome and never stop the session.
func (p *Pipeline) Process(ctx context.Context, ev model.Event) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := Outcome{Event: ev}
	metrics.RecordEventReceived(string(ev.Tag))

	round, ok := p.gate.Admit(ctx, ev)
	if !ok {
		return out
	}
	out.Admitted = true
	out.Round = round

	out.DelayMs, out.Calibrated = p.calibrator.Calibrate(ctx, round)

	analysis, err := p.recognizer.Recognize(ctx, round)
	if err != nil {
		out.Err = err
		if ctx.Err() != nil {
			p.logger.Info(ctx, "round abandoned", logger.String("eventID", ev.ID))
			return out
		}
		p.sink.Notify(ctx, model.NewNotification(model.KindRecognitionError, RecognizeSubtask, "drop recognition failed").
			With("event_id", ev.ID))
		p.logger.Warn(ctx, "recognition failed", logger.String("eventID", ev.ID), logger.Error(err))
		return out
	}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	info, err := p.aggregator.Merge(ctx, analysis)
	if err != nil {
		out.Err = err
		p.logger.Error(ctx, "merge failed", logger.Error(err))
		return out
	}
	out.Info = &info

	out.Verdict = p.evaluator.Evaluate(ctx, info, p.aggregator.Totals(ctx))
	if out.Verdict.Stop {
		if err := p.evaluator.Halt(ctx, p.control, out.Verdict); err != nil {
			p.logger.Error(ctx, "halt incomplete", logger.Error(err))
		}
	}

	if err := p.reporter.Submit(ctx, round, info); err != nil {
		out.Err = err
		p.logger.Info(ctx, "report not submitted", logger.String("stageId", info.Stage.StageID), logger.Error(err))
	}

	return out
}
