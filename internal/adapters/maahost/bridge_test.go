package maahost_test

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	maa "github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/bytedance/sonic"
	"github.com/okian/stagedrops/internal/adapters/maahost"
	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/round"
	"github.com/okian/stagedrops/internal/domain/stop"
	"github.com/okian/stagedrops/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeSession captures a frame and steers the host the way a round does.
type fakeSession struct {
	mu      sync.Mutex
	bridge  *maahost.Bridge
	events  []model.Event
	starts  []time.Time
	frame   image.Image
	admit   bool
	capErr  error
	ctrlErr error
}

func (f *fakeSession) Process(ctx context.Context, ev model.Event) (round.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	f.frame, f.capErr = f.bridge.CaptureFrame(ctx)
	f.ctrlErr = f.bridge.SetTimesLimit(ctx, "StartButton1", 0)
	return round.Outcome{
		Event:    ev,
		Admitted: f.admit,
		Verdict:  stop.Verdict{Stop: true, Reason: stop.ReasonTargetReached, Item: "30012"},
	}, nil
}

func (f *fakeSession) RoundStarted(_ context.Context, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, t)
}

type overrides struct {
	mu    sync.Mutex
	calls []map[string]any
	err   error
}

func (o *overrides) apply(_ *maa.Context, m map[string]any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, m)
	return o.err
}

func TestBridge(t *testing.T) {
	Convey("Given a bridge attached to a session", t, func() {
		ctx := context.Background()
		ov := &overrides{}
		now := time.Unix(1_700_000_000, 0)
		b := maahost.New(
			maahost.WithOverride(ov.apply),
			maahost.WithCapture(func(_ *maa.Context, fallback image.Image) (image.Image, error) {
				return fallback, nil
			}),
			maahost.WithClock(func() time.Time { return now }),
		)
		s := &fakeSession{bridge: b, admit: true}
		b.Attach(s)

		Convey("When no callback is running", func() {
			_, err := b.CaptureFrame(ctx)
			ctrl := b.SetPostDelay(ctx, "StartButton2", 100)

			Convey("Then frames and overrides should be unavailable", func() {
				So(errors.Is(err, maahost.ErrNoHostContext), ShouldBeTrue)
				So(errors.Is(ctrl, maahost.ErrNoHostContext), ShouldBeTrue)
				So(ov.calls, ShouldBeEmpty)
			})
		})

		Convey("When the normal end recognition runs", func() {
			frame := image.NewRGBA(image.Rect(0, 0, 4, 4))
			res, hit := b.NormalEnd().Run(nil, &maa.CustomRecognitionArg{Img: frame})

			Convey("Then the session should see a normal-end event", func() {
				So(s.events, ShouldHaveLength, 1)
				So(s.events[0].Tag, ShouldEqual, model.TagNormalEnd)
			})

			Convey("And the host frame should be captured", func() {
				So(s.capErr, ShouldBeNil)
				So(s.frame == image.Image(frame), ShouldBeTrue)
			})

			Convey("And the stop request should become an override", func() {
				So(s.ctrlErr, ShouldBeNil)
				So(ov.calls, ShouldHaveLength, 1)
				So(ov.calls[0], ShouldResemble, map[string]any{"StartButton1": map[string]any{"max_hit": 0}})
			})

			Convey("And the node should hit with the outcome as detail", func() {
				So(hit, ShouldBeTrue)
				So(res, ShouldNotBeNil)
				var detail map[string]any
				So(sonic.Unmarshal([]byte(res.Detail), &detail), ShouldBeNil)
				So(detail["admitted"], ShouldEqual, true)
				So(detail["reason"], ShouldEqual, "target_reached")
			})

			Convey("And the binding should be released", func() {
				_, err := b.CaptureFrame(ctx)
				So(errors.Is(err, maahost.ErrNoHostContext), ShouldBeTrue)
			})
		})

		Convey("When the host rejects the stop override", func() {
			hostErr := errors.New("unknown node StartButton1")
			ov.err = hostErr
			_, _ = b.NormalEnd().Run(nil, &maa.CustomRecognitionArg{})

			Convey("Then the session should see the failure", func() {
				So(errors.Is(s.ctrlErr, maahost.ErrOverride), ShouldBeTrue)
				So(s.ctrlErr.Error(), ShouldContainSubstring, hostErr.Error())
				So(ov.calls, ShouldHaveLength, 1)
			})
		})

		Convey("When a rejected annihilation end runs", func() {
			s.admit = false
			_, hit := b.AnnihilationEnd().Run(nil, &maa.CustomRecognitionArg{})

			Convey("Then the node should not hit", func() {
				So(hit, ShouldBeFalse)
				So(s.events[0].Tag, ShouldEqual, model.TagAnnihilationEnd)
			})
		})

		Convey("When the round start action runs", func() {
			So(b.RoundStart().Run(nil, &maa.CustomActionArg{}), ShouldBeTrue)
			So(b.RoundStart().Run(nil, &maa.CustomActionArg{CustomActionParam: `{"started_at": 1700000100}`}), ShouldBeTrue)
			So(b.RoundStart().Run(nil, &maa.CustomActionArg{CustomActionParam: `not json`}), ShouldBeTrue)

			Convey("Then the session should record each start", func() {
				So(s.starts, ShouldHaveLength, 3)
				So(s.starts[0].Unix(), ShouldEqual, now.Unix())
				So(s.starts[1].Unix(), ShouldEqual, int64(1_700_000_100))
				So(s.starts[2].Unix(), ShouldEqual, now.Unix())
			})
		})
	})

	Convey("Given a bridge without a session", t, func() {
		b := maahost.New(maahost.WithOverride(func(*maa.Context, map[string]any) error { return nil }))

		Convey("Then callbacks should refuse to run", func() {
			_, hit := b.NormalEnd().Run(nil, &maa.CustomRecognitionArg{})
			So(hit, ShouldBeFalse)
			So(b.RoundStart().Run(nil, &maa.CustomActionArg{}), ShouldBeFalse)
		})
	})
}

func TestBridgeClampsControl(t *testing.T) {
	Convey("Given a bound bridge", t, func() {
		ov := &overrides{}
		b := maahost.New(maahost.WithOverride(ov.apply))
		clamp := &clampSession{bridge: b}
		b.Attach(clamp)

		_, _ = b.NormalEnd().Run(nil, &maa.CustomRecognitionArg{})

		Convey("Then negative values should be sent as zero", func() {
			So(ov.calls, ShouldHaveLength, 2)
			So(ov.calls[0], ShouldResemble, map[string]any{"StartButton2": map[string]any{"post_delay": int64(0)}})
			So(ov.calls[1], ShouldResemble, map[string]any{"MedicineConfirm": map[string]any{"max_hit": 0}})
		})
	})
}

type clampSession struct {
	bridge *maahost.Bridge
}

func (c *clampSession) Process(ctx context.Context, ev model.Event) (round.Outcome, error) {
	_ = c.bridge.SetPostDelay(ctx, "StartButton2", -300)
	_ = c.bridge.SetTimesLimit(ctx, "MedicineConfirm", -1)
	return round.Outcome{Event: ev}, nil
}

func (c *clampSession) RoundStarted(context.Context, time.Time) {}
