package gate_test

import (
	"context"
	"testing"

	"github.com/okian/stagedrops/internal/domain/gate"
	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/session"
	"github.com/okian/stagedrops/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"pgregory.net/rapid"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGate(t *testing.T) {
	Convey("Given a gate over a fresh session", t, func() {
		ctx := context.Background()
		state := session.New()
		g := gate.New(state)

		Convey("When a normal-end event arrives before any recognition", func() {
			round, ok := g.Admit(ctx, model.NewEvent(model.TagNormalEnd))

			Convey("Then it should be admitted as a normal round", func() {
				So(ok, ShouldBeTrue)
				So(round.Start, ShouldEqual, 0)
				So(round.Annihilation, ShouldBeFalse)
				So(round.Variant(), ShouldEqual, "normal")
			})
		})

		Convey("When the round was already recognized", func() {
			state.SetLastRoundStart(1_700_000_000)
			state.MarkRecognized(1_700_000_000)

			_, ok := g.Admit(ctx, model.NewEvent(model.TagNormalEnd))

			Convey("Then normal-end should be rejected", func() {
				So(ok, ShouldBeFalse)
			})

			Convey("And annihilation-end should still be admitted", func() {
				round, ok := g.Admit(ctx, model.NewEvent(model.TagAnnihilationEnd))
				So(ok, ShouldBeTrue)
				So(round.Annihilation, ShouldBeTrue)
			})

			Convey("And a new round start should re-open the gate", func() {
				state.SetLastRoundStart(1_700_000_400)
				round, ok := g.Admit(ctx, model.NewEvent(model.TagNormalEnd))
				So(ok, ShouldBeTrue)
				So(round.Start, ShouldEqual, 1_700_000_400)
			})
		})

		Convey("When an unknown tag arrives", func() {
			_, ok := g.Admit(ctx, model.NewEvent(model.Tag("ProcessTask")))

			Convey("Then it should be rejected", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the event carries its id", func() {
			ev := model.NewEvent(model.TagAnnihilationEnd)
			round, _ := g.Admit(ctx, ev)

			Convey("Then the round should keep the event", func() {
				So(round.Event.ID, ShouldEqual, ev.ID)
			})
		})
	})
}

// At most one normal-end admission per round start, annihilation always admitted.
func TestGateAdmitsOncePerRound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		state := session.New()
		g := gate.New(state)

		starts := rapid.SliceOfN(rapid.Int64Range(1, 1_000_000), 1, 5).Draw(t, "starts")
		admitsPerStart := make(map[int]int)

		for i, start := range starts {
			state.SetLastRoundStart(start)
			tags := rapid.SliceOfN(rapid.SampledFrom([]model.Tag{model.TagNormalEnd, model.TagAnnihilationEnd}), 1, 8).Draw(t, "tags")
			for _, tag := range tags {
				round, ok := g.Admit(ctx, model.NewEvent(tag))
				if ok && !round.Annihilation && round.Start != start {
					t.Fatalf("round %d: admitted with start %d, want %d", i, round.Start, start)
				}
				if tag == model.TagAnnihilationEnd {
					if !ok || !round.Annihilation {
						t.Fatalf("round %d: annihilation-end must always be admitted", i)
					}
					continue
				}
				if ok {
					admitsPerStart[i]++
					// recognition succeeded for this round
					state.MarkRecognized(round.Start)
				}
			}
		}

		for i, n := range admitsPerStart {
			if n > 1 {
				t.Fatalf("round %d (start %d) admitted %d normal-end recognitions", i, starts[i], n)
			}
		}
	})
}
