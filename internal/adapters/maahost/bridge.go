// Package maahost connects a session to the MAA framework: round completion
// recognitions, the round start action, frame capture and pipeline
// overrides for timing and stop requests.
package maahost

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	maa "github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/bytedance/sonic"
	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/round"
	"github.com/okian/stagedrops/pkg/logger"
)

// Names the components are registered under.
const (
	NormalEndRecognition       = "StageDropsNormalEnd"
	AnnihilationEndRecognition = "StageDropsAnnihilationEnd"
	RoundStartAction           = "StageDropsRoundStart"
)

// Pipeline node fields written by overrides.
const (
	postDelayField = "post_delay"
	maxHitField    = "max_hit"
)

// Session is what the bridge drives.
type Session interface {
	Process(ctx context.Context, ev model.Event) (round.Outcome, error)
	RoundStarted(ctx context.Context, t time.Time)
}

// OverrideFunc applies a pipeline override through the host context.
type OverrideFunc func(mctx *maa.Context, override map[string]any) error

// CaptureFunc grabs the current frame. fallback is the image the host
// handed to the running recognition.
type CaptureFunc func(mctx *maa.Context, fallback image.Image) (image.Image, error)

// Option applies a configuration option to the Bridge.
type Option func(*Bridge)

// WithOverride replaces how overrides reach the host.
func WithOverride(fn OverrideFunc) Option {
	return func(b *Bridge) {
		if fn != nil {
			b.override = fn
		}
	}
}

// WithCapture replaces how frames are captured.
func WithCapture(fn CaptureFunc) Option {
	return func(b *Bridge) {
		if fn != nil {
			b.capture = fn
		}
	}
}

// WithClock overrides the clock used for round starts.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// binding is the host context of the callback in flight.
type binding struct {
	mctx  *maa.Context
	frame image.Image
}

// Bridge adapts a Session to MAA custom components. It is the session's
// frame source and host control while a callback runs.
type Bridge struct {
	mu      sync.Mutex
	bound   *binding
	session Session

	override OverrideFunc
	capture  CaptureFunc
	now      func() time.Time
	logger   logger.Logger
}

// New creates a bridge. Attach the session with Attach before the agent
// server starts.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		override: applyOverride,
		capture:  captureScreen,
		now:      time.Now,
		logger:   logger.Get().Named("maahost"),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Attach sets the session driven by the callbacks. The session usually
// needs the bridge as its frame source, hence the two steps.
func (b *Bridge) Attach(s Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = s
}

func (b *Bridge) bind(mctx *maa.Context, frame image.Image) func() {
	b.mu.Lock()
	b.bound = &binding{mctx: mctx, frame: frame}
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.bound = nil
		b.mu.Unlock()
	}
}

func (b *Bridge) current() (*binding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound == nil {
		return nil, ErrNoHostContext
	}
	return b.bound, nil
}

func (b *Bridge) attached() Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// CaptureFrame implements drops.FrameSource.
func (b *Bridge) CaptureFrame(ctx context.Context) (image.Image, error) {
	bd, err := b.current()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.capture(bd.mctx, bd.frame)
}

// SetPostDelay implements timing.Control. Negative delays become zero.
func (b *Bridge) SetPostDelay(ctx context.Context, action string, delayMs int64) error {
	if delayMs < 0 {
		delayMs = 0
	}
	return b.apply(ctx, action, postDelayField, delayMs)
}

// SetTimesLimit implements stop.Control.
func (b *Bridge) SetTimesLimit(ctx context.Context, action string, limit int) error {
	if limit < 0 {
		limit = 0
	}
	return b.apply(ctx, action, maxHitField, limit)
}

func (b *Bridge) apply(ctx context.Context, action, field string, value any) error {
	bd, err := b.current()
	if err != nil {
		return fmt.Errorf("override %s.%s: %w", action, field, err)
	}
	if err := b.override(bd.mctx, map[string]any{
		action: map[string]any{field: value},
	}); err != nil {
		b.logger.Warn(ctx, "pipeline override rejected",
			logger.String("action", action),
			logger.String("field", field),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %s.%s: %v", ErrOverride, action, field, err)
	}
	b.logger.Debug(ctx, "pipeline override applied",
		logger.String("action", action),
		logger.String("field", field),
		logger.Any("value", value),
	)
	return nil
}

func applyOverride(mctx *maa.Context, override map[string]any) error {
	return mctx.OverridePipeline(override)
}

func captureScreen(mctx *maa.Context, fallback image.Image) (image.Image, error) {
	controller := mctx.GetTasker().GetController()
	if controller == nil {
		if fallback == nil {
			return nil, ErrCapture
		}
		return fallback, nil
	}
	controller.PostScreencap().Wait()
	img, err := controller.CacheImage()
	if err != nil {
		if fallback != nil {
			return fallback, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	return img, nil
}

// roundEnd is the custom recognition fired when a round ends.
type roundEnd struct {
	bridge *Bridge
	tag    model.Tag
}

// outcomeDetail is the recognition detail handed back to the host.
type outcomeDetail struct {
	EventID  string `json:"event_id"`
	Tag      string `json:"tag"`
	Admitted bool   `json:"admitted"`
	Stop     bool   `json:"stop"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Run processes the round end while the host waits. The node hits when the
// round was admitted.
func (r *roundEnd) Run(mctx *maa.Context, arg *maa.CustomRecognitionArg) (*maa.CustomRecognitionResult, bool) {
	ctx := context.Background()
	s := r.bridge.attached()
	if s == nil {
		r.bridge.logger.Warn(ctx, "round end before session attach", logger.String("tag", string(r.tag)))
		return nil, false
	}

	var frame image.Image
	if arg != nil {
		frame = arg.Img
	}
	release := r.bridge.bind(mctx, frame)
	defer release()

	ev := model.NewEvent(r.tag)
	out, err := s.Process(ctx, ev)
	if err != nil {
		r.bridge.logger.Error(ctx, "session refused round end", logger.String("eventID", ev.ID), logger.Error(err))
		return nil, false
	}

	detail := outcomeDetail{
		EventID:  ev.ID,
		Tag:      string(r.tag),
		Admitted: out.Admitted,
		Stop:     out.Verdict.Stop,
		Reason:   string(out.Verdict.Reason),
	}
	if out.Err != nil {
		detail.Error = out.Err.Error()
	}
	raw, err := sonic.Marshal(detail)
	if err != nil {
		raw = []byte(`{}`)
	}

	res := &maa.CustomRecognitionResult{Detail: string(raw)}
	if arg != nil {
		res.Box = arg.Roi
	}
	return res, out.Admitted
}

// roundStartParam is the optional custom action parameter.
type roundStartParam struct {
	StartedAt int64 `json:"started_at"`
}

// roundStart is the custom action the host runs when it starts a round.
type roundStart struct {
	bridge *Bridge
}

// Run records the round start.
func (a *roundStart) Run(_ *maa.Context, arg *maa.CustomActionArg) bool {
	ctx := context.Background()
	s := a.bridge.attached()
	if s == nil {
		a.bridge.logger.Warn(ctx, "round start before session attach")
		return false
	}

	at := a.bridge.now()
	if arg != nil && arg.CustomActionParam != "" {
		var p roundStartParam
		if err := sonic.Unmarshal([]byte(arg.CustomActionParam), &p); err != nil {
			a.bridge.logger.Warn(ctx, "bad round start param", logger.Error(err))
		} else if p.StartedAt > 0 {
			at = time.Unix(p.StartedAt, 0)
		}
	}
	s.RoundStarted(ctx, at)
	return true
}

// NormalEnd returns the recognition for the normal round end.
func (b *Bridge) NormalEnd() maa.CustomRecognitionRunner {
	return &roundEnd{bridge: b, tag: model.TagNormalEnd}
}

// AnnihilationEnd returns the recognition for the annihilation round end.
func (b *Bridge) AnnihilationEnd() maa.CustomRecognitionRunner {
	return &roundEnd{bridge: b, tag: model.TagAnnihilationEnd}
}

// RoundStart returns the round start action.
func (b *Bridge) RoundStart() maa.CustomActionRunner {
	return &roundStart{bridge: b}
}

// Register registers the bridge components with the agent server.
func Register(b *Bridge) error {
	return errors.Join(
		maa.AgentServerRegisterCustomRecognition(NormalEndRecognition, b.NormalEnd()),
		maa.AgentServerRegisterCustomRecognition(AnnihilationEndRecognition, b.AnnihilationEnd()),
		maa.AgentServerRegisterCustomAction(RoundStartAction, b.RoundStart()),
	)
}
