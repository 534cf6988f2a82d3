// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	service "github.com/okian/stagedrops/internal/app"
	"github.com/okian/stagedrops/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the session.
type Dependencies interface {
	EventDependencies
	RoundDependencies
	StatsProvider
	NotificationProvider
	ControlProvider
	HealthDependencies
}

var _ Dependencies = (*service.Service)(nil)

// Server wires HTTP routes for the session API.
type Server struct {
	healthHandler        *HealthHandler
	statsHandler         *StatsHandler
	eventsHandler        *EventsHandler
	roundsHandler        *RoundsHandler
	notificationsHandler *NotificationsHandler
	controlHandler       *ControlHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:        NewHealthHandler(deps),
		statsHandler:         NewStatsHandler(deps),
		eventsHandler:        NewEventsHandler(deps),
		roundsHandler:        NewRoundsHandler(deps),
		notificationsHandler: NewNotificationsHandler(deps),
		controlHandler:       NewControlHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/rounds/start", MetricsMiddleware(s.roundsHandler.HandleRoundStart, "rounds_start"))
	mux.HandleFunc("/notifications", MetricsMiddleware(s.notificationsHandler.HandleNotifications, "notifications"))
	mux.HandleFunc("/control", MetricsMiddleware(s.controlHandler.HandleControl, "control"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

type ackResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeJSON(r *http.Request, v any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(raw) == 0 {
		return io.EOF
	}
	return sonic.Unmarshal(raw, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"code":"internal","message":"encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
