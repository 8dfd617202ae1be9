package handlers

import (
	"net/http"

	"lumina/internal/services"
)

// AlertHandler handles alert HTTP requests
type AlertHandler struct {
	alerts *services.AlertService
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts *services.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// GetAlerts handles GET /api/v1/alerts
func (h *AlertHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.alerts.State())
}

// MarkAllRead handles POST /api/v1/alerts/read
func (h *AlertHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.alerts.MarkAllRead()
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/v1/alerts
func (h *AlertHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.alerts.Clear()
	w.WriteHeader(http.StatusNoContent)
}
