package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/notify"
	"github.com/okian/stagedrops/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func note(reason string) model.Notification {
	return model.NewNotification(model.KindReportError, "ReportToPenguinStats", reason)
}

func TestHistory(t *testing.T) {
	Convey("Given a history of size 3", t, func() {
		h := notify.NewHistory(3)
		ctx := context.Background()

		Convey("When empty", func() {
			So(h.Recent(10), ShouldBeEmpty)
		})

		Convey("When two notifications are recorded", func() {
			h.Notify(ctx, note("a"))
			h.Notify(ctx, note("b"))

			Convey("Then they should come back newest first", func() {
				got := h.Recent(0)
				So(len(got), ShouldEqual, 2)
				So(got[0].Reason, ShouldEqual, "b")
				So(got[1].Reason, ShouldEqual, "a")
			})
		})

		Convey("When more notifications than capacity are recorded", func() {
			for _, r := range []string{"a", "b", "c", "d", "e"} {
				h.Notify(ctx, note(r))
			}

			Convey("Then only the newest should be kept", func() {
				got := h.Recent(0)
				So(len(got), ShouldEqual, 3)
				So(got[0].Reason, ShouldEqual, "e")
				So(got[2].Reason, ShouldEqual, "c")
				So(len(h.Recent(2)), ShouldEqual, 2)
			})
		})
	})
}

func TestFanoutAndRecorder(t *testing.T) {
	Convey("Given a fanout over two recorders and a nil sink", t, func() {
		a, b := &notify.Recorder{}, &notify.Recorder{}
		var called int
		f := notify.Fanout{a, nil, b, notify.SinkFunc(func(context.Context, model.Notification) { called++ })}

		f.Notify(context.Background(), model.NewNotification(model.KindDropsUpdated, "StageDrops", ""))
		f.Notify(context.Background(), note("unknown stage"))

		Convey("Then every sink should see every notification", func() {
			So(a.Kinds(), ShouldResemble, []model.Kind{model.KindDropsUpdated, model.KindReportError})
			So(len(b.All()), ShouldEqual, 2)
			So(len(a.OfKind(model.KindReportError)), ShouldEqual, 1)
			So(called, ShouldEqual, 2)
		})
	})
}

func TestLogSink(t *testing.T) {
	Convey("Given a log sink", t, func() {
		var buf bytes.Buffer
		So(logger.InitWithWriter(&buf), ShouldBeNil)
		s := notify.NewLogSink(logger.Named("notify"))

		s.Notify(context.Background(), note("non-maximum clear").With("stage_code", "1-7"))

		Convey("Then the error should be logged with its context", func() {
			out := buf.String()
			So(strings.Contains(out, `"level":"warn"`), ShouldBeTrue)
			So(strings.Contains(out, `"why":"non-maximum clear"`), ShouldBeTrue)
			So(strings.Contains(out, `"stage_code":"1-7"`), ShouldBeTrue)
		})
	})
}
