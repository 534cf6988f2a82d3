package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/stagedrops/internal/domain/model"
)

// Limits for GET /notifications.
const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 256
)

// NotificationProvider exposes recent session notifications.
type NotificationProvider interface {
	Notifications(limit int) []model.Notification
}

// NotificationsHandler serves the notification history.
type NotificationsHandler struct {
	provider NotificationProvider
}

// NewNotificationsHandler creates a new notifications handler.
func NewNotificationsHandler(provider NotificationProvider) *NotificationsHandler {
	return &NotificationsHandler{provider: provider}
}

// HandleNotifications handles GET /notifications?limit=n requests.
func (h *NotificationsHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	const op = "api.notifications"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	items := h.provider.Notifications(limit)
	if items == nil {
		items = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}
