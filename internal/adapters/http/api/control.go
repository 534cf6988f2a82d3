package api

import (
	"net/http"

	"github.com/okian/stagedrops/internal/adapters/hostctl"
)

// ControlProvider exposes the overrides a remote host should apply.
type ControlProvider interface {
	Overrides() (map[string]hostctl.Override, bool)
	Halted() bool
}

type controlResponse struct {
	Halted    bool                        `json:"halted"`
	Overrides map[string]hostctl.Override `json:"overrides"`
}

// ControlHandler serves pending host overrides.
type ControlHandler struct {
	provider ControlProvider
}

// NewControlHandler creates a new control handler.
func NewControlHandler(provider ControlProvider) *ControlHandler {
	return &ControlHandler{provider: provider}
}

// HandleControl handles GET /control requests. A host that applies
// overrides itself gets 404.
func (h *ControlHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	overrides, ok := h.provider.Overrides()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	writeJSON(w, http.StatusOK, controlResponse{Halted: h.provider.Halted(), Overrides: overrides})
}
