// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Tag identifies which round-completion variant fired.
type Tag string

// Round completion tags the core declares interest in.
const (
	TagNormalEnd       Tag = "normal-end"
	TagAnnihilationEnd Tag = "annihilation-end"
)

// Known reports whether the core handles events with this tag.
func (t Tag) Known() bool {
	return t == TagNormalEnd || t == TagAnnihilationEnd
}

// Event is a round completion event delivered by the host.
// It carries no payload beyond its tag.
type Event struct {
	ID         string    `json:"id"`  // unique id for tracing
	Tag        Tag       `json:"tag"` // completion variant
	ReceivedAt time.Time `json:"received_at"`
}

// NewEvent stamps a new event for tag.
func NewEvent(tag Tag) Event {
	return Event{
		ID:         uuid.NewString(),
		Tag:        tag,
		ReceivedAt: time.Now(),
	}
}

// Round is the handle of an admitted round. It is the only carrier of the
// annihilation flag for the rest of the round's processing.
type Round struct {
	Event        Event
	Annihilation bool
	// Start is the round start (unix seconds) seen when the event was
	// admitted. Zero for annihilation rounds.
	Start int64
}

// Variant names the completion variant for logs and metrics.
func (r Round) Variant() string {
	if r.Annihilation {
		return "annihilation"
	}
	return "normal"
}
