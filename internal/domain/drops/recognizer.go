// Package drops captures the settlement frame and turns it into a normalized
// analysis.
package drops

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/session"
	"github.com/okian/stagedrops/pkg/logger"
	"github.com/okian/stagedrops/pkg/metrics"
)

// SettleTask is the task whose post delay is waited before capture.
const SettleTask = "PRTS"

// FrameSource provides the current screen frame.
type FrameSource interface {
	CaptureFrame(ctx context.Context) (image.Image, error)
}

// Result is the analyzer verdict for one frame.
type Result struct {
	OK       bool
	Analysis model.Analysis
}

// Analyzer extracts stage, stars and drops from a frame.
type Analyzer interface {
	Analyze(ctx context.Context, frame image.Image) (Result, error)
}

// Params looks up the post delay of a named task in milliseconds.
type Params interface {
	PostDelay(name string) int
}

// Recognizer runs one recognition per admitted round.
type Recognizer struct {
	frames   FrameSource
	analyzer Analyzer
	params   Params
	state    *session.State
	logger   logger.Logger
	after    func(time.Duration) <-chan time.Time
}

// Option applies a configuration option to the Recognizer.
type Option func(*Recognizer)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Recognizer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTimer overrides the settle timer.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(r *Recognizer) {
		if after != nil {
			r.after = after
		}
	}
}

// NewRecognizer creates a recognizer.
func NewRecognizer(frames FrameSource, analyzer Analyzer, params Params, state *session.State, opts ...Option) *Recognizer {
	r := &Recognizer{
		frames:   frames,
		analyzer: analyzer,
		params:   params,
		state:    state,
		logger:   logger.Get().Named("drops"),
		after:    time.After,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Recognize waits for the settlement screen to settle, captures it and
// analyzes it. Successful normal rounds set the session marker.
func (r *Recognizer) Recognize(ctx context.Context, round model.Round) (model.Analysis, error) {
	settle := time.Duration(r.params.PostDelay(SettleTask)) * time.Millisecond
	if settle > 0 {
		select {
		case <-ctx.Done():
			return model.Analysis{}, ctx.Err()
		case <-r.after(settle):
		}
	}
	if err := ctx.Err(); err != nil {
		return model.Analysis{}, err
	}

	started := time.Now()
	defer func() {
		metrics.RecordRecognitionLatency(float64(time.Since(started).Milliseconds()))
	}()

	frame, err := r.frames.CaptureFrame(ctx)
	if err != nil {
		metrics.RecordRecognitionFailure()
		return model.Analysis{}, fmt.Errorf("%w: capture: %v", ErrRecognitionFailed, err)
	}

	result, err := r.analyzer.Analyze(ctx, frame)
	if err != nil {
		metrics.RecordRecognitionFailure()
		return model.Analysis{}, fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
	}
	if !result.OK {
		metrics.RecordRecognitionFailure()
		return model.Analysis{}, ErrRecognitionFailed
	}

	if !round.Annihilation {
		r.state.MarkRecognized(round.Start)
	}

	r.logger.Debug(ctx, "drops recognized",
		logger.String("stage", result.Analysis.Stage.Code),
		logger.Int("stars", result.Analysis.Stars),
		logger.Int("drops", len(result.Analysis.Drops)),
	)
	return result.Analysis, nil
}
