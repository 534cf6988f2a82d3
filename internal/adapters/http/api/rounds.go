package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// RoundDependencies records round starts.
type RoundDependencies interface {
	RoundStarted(ctx context.Context, t time.Time)
}

// roundStartRequest is the optional body of POST /rounds/start.
type roundStartRequest struct {
	StartedAt int64 `json:"started_at"`
}

type roundStartResponse struct {
	Status    string `json:"status"`
	StartedAt int64  `json:"started_at"`
}

// RoundsHandler handles round start notices from the host.
type RoundsHandler struct {
	deps RoundDependencies
	now  func() time.Time
}

// NewRoundsHandler creates a new rounds handler.
func NewRoundsHandler(deps RoundDependencies) *RoundsHandler {
	return &RoundsHandler{deps: deps, now: time.Now}
}

// HandleRoundStart handles POST /rounds/start requests. Without a body the
// round starts now.
func (h *RoundsHandler) HandleRoundStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.round_start"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req roundStartRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.StartedAt < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("started_at must not be negative")))
		return
	}

	at := h.now()
	if req.StartedAt > 0 {
		at = time.Unix(req.StartedAt, 0)
	}
	h.deps.RoundStarted(r.Context(), at)
	writeJSON(w, http.StatusOK, roundStartResponse{Status: "started", StartedAt: at.Unix()})
}
