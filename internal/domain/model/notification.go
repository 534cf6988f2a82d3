package model

import (
	"time"

	"github.com/google/uuid"
)

// Kind tags a notification on the single observer channel.
type Kind string

// Notification kinds.
const (
	KindRecognitionError Kind = "recognition-error"
	KindStageInvalid     Kind = "stage-invalid"
	KindDropsUpdated     Kind = "drops-updated"
	KindReportError      Kind = "report-error"
	KindReportSuccess    Kind = "report-success"
	KindControl          Kind = "control"
)

// Notification is an outward event consumed by observers of the session.
type Notification struct {
	ID      string            `json:"id"`
	Kind    Kind              `json:"kind"`
	Subtask string            `json:"subtask,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Context map[string]string `json:"context,omitempty"`
	Round   *RoundInfo        `json:"round,omitempty"`
	At      time.Time         `json:"at"`
}

// NewNotification stamps a notification of kind for subtask.
func NewNotification(kind Kind, subtask, reason string) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Kind:    kind,
		Subtask: subtask,
		Reason:  reason,
		At:      time.Now(),
	}
}

// With returns n with a context entry added.
func (n Notification) With(key, value string) Notification {
	ctx := make(map[string]string, len(n.Context)+1)
	for k, v := range n.Context {
		ctx[k] = v
	}
	ctx[key] = value
	n.Context = ctx
	return n
}
