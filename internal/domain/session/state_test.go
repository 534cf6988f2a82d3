package session_test

import (
	"testing"

	"github.com/okian/stagedrops/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

func TestState(t *testing.T) {
	Convey("Given a new session state", t, func() {
		s := session.New()

		Convey("Then nothing should be recognized yet", func() {
			So(s.LastRoundStart(), ShouldEqual, 0)
			So(s.Marker(), ShouldEqual, 0)
			So(s.AlreadyRecognized(), ShouldBeFalse)
		})

		Convey("When a round starts and is recognized", func() {
			s.SetLastRoundStart(1_700_000_000)
			So(s.AlreadyRecognized(), ShouldBeFalse)
			s.MarkRecognized(1_700_000_000)

			Convey("Then the marker should be derived from the start time", func() {
				So(s.Marker(), ShouldEqual, 1_700_000_000+session.RecognitionTimeOffset)
				So(s.AlreadyRecognized(), ShouldBeTrue)
			})

			Convey("And a new round start should clear the recognition", func() {
				s.SetLastRoundStart(1_700_000_300)
				So(s.AlreadyRecognized(), ShouldBeFalse)
			})

			Convey("And start and recognition should be read together", func() {
				start, recognized := s.Current()
				So(start, ShouldEqual, 1_700_000_000)
				So(recognized, ShouldBeTrue)
			})

			Convey("And reset should clear everything", func() {
				s.Reset()
				So(s.LastRoundStart(), ShouldEqual, 0)
				So(s.Marker(), ShouldEqual, 0)
			})
		})

		Convey("When a round is marked after a newer round started", func() {
			s.SetLastRoundStart(1_700_000_000)
			s.SetLastRoundStart(1_700_000_060)
			s.MarkRecognized(1_700_000_000)

			Convey("Then the newer round should not count as recognized", func() {
				So(s.AlreadyRecognized(), ShouldBeFalse)
			})
		})
	})
}
