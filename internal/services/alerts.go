package services

import (
	"sync"
	"time"

	"lumina/internal/models"

	"github.com/google/uuid"
)

// AlertPayload holds the optional parts of an alert
type AlertPayload struct {
	Text   string
	PostID string
}

// AlertState is the alert list as the shell sees it
type AlertState struct {
	Alerts []models.Alert `json:"alerts"`
	Unread int            `json:"unread"`
}

// AlertService accumulates locally observed interactions in memory
type AlertService struct {
	mu       sync.Mutex
	alerts   []models.Alert
	notifier Notifier
	now      func() time.Time
}

// NewAlertService creates a new alert service
func NewAlertService(notifier Notifier) *AlertService {
	return &AlertService{
		notifier: orNop(notifier),
		now:      time.Now,
	}
}

// Record adds an unread alert at the head of the list
func (s *AlertService) Record(kind models.AlertKind, source models.Identity, payload AlertPayload) models.Alert {
	alert := models.Alert{
		ID:        uuid.New().String(),
		Kind:      kind,
		Source:    source,
		Text:      payload.Text,
		PostID:    payload.PostID,
		CreatedAt: s.now(),
		Label:     "Just now",
	}

	s.mu.Lock()
	s.alerts = append([]models.Alert{alert}, s.alerts...)
	s.mu.Unlock()

	s.publish()
	return alert
}

// List returns the alerts, newest first
func (s *AlertService) List() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Alert(nil), s.alerts...)
}

// UnreadCount returns the number of unread alerts
func (s *AlertService) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if !a.Read {
			n++
		}
	}
	return n
}

// MarkAllRead flags every alert as read
func (s *AlertService) MarkAllRead() {
	s.mu.Lock()
	for i := range s.alerts {
		s.alerts[i].Read = true
	}
	s.mu.Unlock()
	s.publish()
}

// Clear empties the list
func (s *AlertService) Clear() {
	s.mu.Lock()
	s.alerts = nil
	s.mu.Unlock()
	s.publish()
}

// State returns the alerts, newest first, with the unread count
func (s *AlertService) State() AlertState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := AlertState{Alerts: make([]models.Alert, len(s.alerts))}
	copy(state.Alerts, s.alerts)
	for _, a := range s.alerts {
		if !a.Read {
			state.Unread++
		}
	}
	return state
}

func (s *AlertService) publish() {
	s.notifier.Publish(EventAlertsUpdated, s.State())
}
