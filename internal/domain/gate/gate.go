// Package gate decides which round completion events may trigger recognition.
package gate

import (
	"context"

	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/session"
	"github.com/okian/stagedrops/pkg/logger"
	"github.com/okian/stagedrops/pkg/metrics"
)

// Gate admits at most one normal-end recognition per round.
type Gate interface {
	// Admit reports whether ev may trigger recognition. The returned Round is
	// only meaningful when admitted.
	Admit(ctx context.Context, ev model.Event) (model.Round, bool)
}

// stateGate implements Gate over the session recognition marker.
type stateGate struct {
	state  *session.State
	logger logger.Logger
}

// New creates a gate reading the recognition marker from state.
func New(state *session.State, opts ...Option) Gate {
	g := &stateGate{
		state:  state,
		logger: logger.Get().Named("gate"),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Admit implements Gate.
func (g *stateGate) Admit(ctx context.Context, ev model.Event) (model.Round, bool) {
	switch ev.Tag {
	case model.TagNormalEnd:
		start, recognized := g.state.Current()
		if recognized {
			// Only one recognition per start.
			g.logger.Warn(ctx, "round already recognized",
				logger.String("eventID", ev.ID),
				logger.Int64("lastRoundStart", start),
				logger.Int64("marker", g.state.Marker()),
			)
			metrics.RecordRoundRejected("duplicate")
			return model.Round{}, false
		}
		round := model.Round{Event: ev, Start: start}
		metrics.RecordRoundAdmitted(round.Variant())
		return round, true

	case model.TagAnnihilationEnd:
		round := model.Round{Event: ev, Annihilation: true}
		metrics.RecordRoundAdmitted(round.Variant())
		return round, true

	default:
		g.logger.Debug(ctx, "ignoring event", logger.String("tag", string(ev.Tag)))
		metrics.RecordRoundRejected("unknown_tag")
		return model.Round{}, false
	}
}
