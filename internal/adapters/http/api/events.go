package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/stagedrops/internal/app"
	"github.com/okian/stagedrops/internal/domain/model"
)

// EventDependencies defines the interface for event processing dependencies.
type EventDependencies interface {
	Enqueue(ctx context.Context, ev model.Event) error
}

// eventRequest is the body of POST /events.
type eventRequest struct {
	Tag string `json:"tag"`
}

func (e eventRequest) validate() error {
	tag := model.Tag(strings.TrimSpace(e.Tag))
	switch {
	case tag == "":
		return errors.New("missing tag")
	case !tag.Known():
		return errors.New("unknown tag; must be normal-end or annihilation-end")
	}
	return nil
}

// EventsHandler handles round completion events.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ev := model.NewEvent(model.Tag(strings.TrimSpace(req.Tag)))
	if err := h.deps.Enqueue(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, service.ErrQueueFull):
			writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		case errors.Is(err, service.ErrUnknownTag):
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		default:
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		}
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", EventID: ev.ID})
}
