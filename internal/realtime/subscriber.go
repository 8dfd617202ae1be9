// Package realtime subscribes to row-change notifications from the backend's
// realtime websocket service.
package realtime

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"lumina/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultHeartbeat = 30 * time.Second
	defaultRetry     = 5 * time.Second
)

// Binding selects the changes a handler wants. Event is an operation name
// (INSERT, UPDATE, DELETE) or "*"; Filter is a column filter such as
// "receiver_id=eq.<id>" and may be empty.
type Binding struct {
	Table  string
	Event  string
	Filter string
}

// Handler receives the change events of one binding
type Handler func(ctx context.Context, ev models.ChangeEvent)

type subscription struct {
	topic   string
	binding Binding
	handler Handler
}

// Subscriber maintains a realtime connection and dispatches change events to
// registered handlers until its context is cancelled.
type Subscriber struct {
	endpoint    string
	apiKey      string
	accessToken string

	Heartbeat time.Duration
	Retry     time.Duration

	mu   sync.Mutex
	subs []subscription
	conn *websocket.Conn
	ref  int64

	writeMu sync.Mutex
}

// NewSubscriber creates a subscriber for the realtime endpoint
func NewSubscriber(endpoint, apiKey, accessToken string) *Subscriber {
	return &Subscriber{
		endpoint:    endpoint,
		apiKey:      apiKey,
		accessToken: accessToken,
		Heartbeat:   defaultHeartbeat,
		Retry:       defaultRetry,
	}
}

// On registers a handler. Handlers must be registered before Start.
func (s *Subscriber) On(b Binding, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Event == "" {
		b.Event = "*"
	}
	s.subs = append(s.subs, subscription{
		topic:   fmt.Sprintf("realtime:%s:%d", b.Table, len(s.subs)),
		binding: b,
		handler: h,
	})
}

// SetAccessToken replaces the token used to authorize the channels. Open
// channels receive it immediately; later joins use it.
func (s *Subscriber) SetAccessToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	conn := s.conn
	subs := append([]subscription(nil), s.subs...)
	s.mu.Unlock()

	if conn == nil {
		return
	}
	for _, sub := range subs {
		if err := s.send(conn, sub.topic, "access_token", map[string]string{"access_token": token}); err != nil {
			log.Warn().Err(err).Str("topic", sub.topic).Msg("Failed to push refreshed access token")
			return
		}
	}
}

// Start connects and processes events until the context is cancelled. It
// reconnects after transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.subscribe(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Realtime connection error, reconnecting")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.Retry):
			}
		}
	}
}

func (s *Subscriber) buildURL() (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", s.apiKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	wsURL, err := s.buildURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial realtime: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage on cancellation
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.mu.Lock()
	subs := append([]subscription(nil), s.subs...)
	token := s.accessToken
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	for _, sub := range subs {
		if err := s.send(conn, sub.topic, "phx_join", joinPayload(sub.binding, token)); err != nil {
			return fmt.Errorf("join %s: %w", sub.topic, err)
		}
	}
	log.Info().Int("channels", len(subs)).Msg("Connected to realtime")

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go s.heartbeat(conn, heartbeatDone)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		msg, err := parseMessage(data)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to parse realtime message")
			continue
		}

		switch msg.Event {
		case "postgres_changes":
			ev, err := parseChange(msg.Payload)
			if err != nil {
				log.Warn().Err(err).Str("topic", msg.Topic).Msg("Failed to parse change")
				continue
			}
			for _, sub := range subs {
				if sub.topic == msg.Topic && matches(sub.binding, ev) {
					sub.handler(ctx, ev)
				}
			}
		case "phx_reply":
			if status := replyStatus(msg.Payload); status != "" && status != "ok" {
				log.Warn().Str("topic", msg.Topic).Str("status", status).Msg("Realtime join rejected")
			}
		case "phx_error", "phx_close":
			return fmt.Errorf("channel %s closed by server (%s)", msg.Topic, msg.Event)
		}
	}
}

func (s *Subscriber) heartbeat(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.send(conn, "phoenix", "heartbeat", struct{}{}); err != nil {
				log.Debug().Err(err).Msg("Heartbeat failed")
				return
			}
		}
	}
}

func (s *Subscriber) send(conn *websocket.Conn, topic, event string, payload any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.ref++
	return conn.WriteJSON(message{
		Topic:   topic,
		Event:   event,
		Payload: mustJSON(payload),
		Ref:     strconv.FormatInt(s.ref, 10),
	})
}

// matches applies the event half of a binding locally; column filters are
// evaluated by the server.
func matches(b Binding, ev models.ChangeEvent) bool {
	if b.Table != ev.Table {
		return false
	}
	return b.Event == "*" || b.Event == ev.Type
}
