package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"lumina/internal/models"

	"github.com/rs/zerolog/log"
)

// ConversationService keeps the open transcript and the peer list
type ConversationService struct {
	messages MessageStore
	profiles ProfileStore
	viewer   Viewer
	alerts   *AlertService
	notifier Notifier

	mu         sync.Mutex
	peer       string
	transcript []models.Message
	peers      []models.Identity
}

// Transcript is the open conversation
type Transcript struct {
	PeerID   string           `json:"peer_id"`
	Messages []models.Message `json:"messages"`
}

// NewConversationService creates a new conversation service
func NewConversationService(
	messages MessageStore,
	profiles ProfileStore,
	viewer Viewer,
	alerts *AlertService,
	notifier Notifier,
) *ConversationService {
	return &ConversationService{
		messages: messages,
		profiles: profiles,
		viewer:   viewer,
		alerts:   alerts,
		notifier: orNop(notifier),
	}
}

// OpenWith opens the conversation with peerID and loads its full history,
// oldest first
func (s *ConversationService) OpenWith(ctx context.Context, peerID string) ([]models.Message, error) {
	me := s.viewer.Current()
	if me == nil {
		return nil, ErrNotAuthenticated
	}

	s.mu.Lock()
	s.peer = peerID
	s.transcript = nil
	s.mu.Unlock()

	history, err := s.messages.Conversation(ctx, me.ID, peerID)
	if err != nil {
		log.Error().Err(err).Str("peer_id", peerID).Msg("Failed to load conversation")
	}

	s.mu.Lock()
	if s.peer == peerID {
		// pushes that landed while the history was loading are merged by id
		s.transcript = mergeMessages(history, s.transcript)
	}
	out := append([]models.Message{}, s.transcript...)
	s.mu.Unlock()

	s.notifier.Publish(EventTranscriptUpdated, Transcript{PeerID: peerID, Messages: out})
	return out, nil
}

// Close closes the open conversation
func (s *ConversationService) Close() {
	s.mu.Lock()
	s.peer = ""
	s.transcript = nil
	s.mu.Unlock()
}

// Transcript returns the open conversation
func (s *ConversationService) Transcript() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Transcript{PeerID: s.peer, Messages: append([]models.Message{}, s.transcript...)}
}

// Send delivers a message. Blank text is ignored; remote failures are logged
// and the message is dropped.
func (s *ConversationService) Send(ctx context.Context, peerID, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" || peerID == "" {
		return nil, nil
	}
	me := s.viewer.Current()
	if me == nil {
		return nil, ErrNotAuthenticated
	}

	msg, err := s.messages.Create(ctx, me.ID, peerID, text)
	if err != nil {
		log.Error().Err(err).Str("peer_id", peerID).Msg("Failed to send message")
		return nil, nil
	}

	s.mu.Lock()
	opened := s.peer == peerID
	if opened {
		s.transcript = mergeMessages(s.transcript, []models.Message{*msg})
	}
	known := s.bump(peerID)
	s.mu.Unlock()

	if opened {
		s.notifier.Publish(EventTranscriptUpdated, s.Transcript())
	}
	if known {
		s.notifier.Publish(EventConversationsUpdated, nil)
	} else {
		s.ListConversations(ctx)
	}
	return msg, nil
}

// ListConversations reloads the peers of every message touching the viewer,
// most recently active first
func (s *ConversationService) ListConversations(ctx context.Context) []models.Identity {
	me := s.viewer.Current()
	if me == nil {
		return nil
	}

	msgs, err := s.messages.ListTouching(ctx, me.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", me.ID).Msg("Failed to load conversations")
		return s.Conversations()
	}

	order := make(map[string]int)
	var ids []string
	for _, m := range msgs {
		for _, id := range []string{m.SenderID, m.ReceiverID} {
			if id == me.ID {
				continue
			}
			if _, seen := order[id]; !seen {
				order[id] = len(ids)
				ids = append(ids, id)
			}
		}
	}

	peers := []models.Identity{}
	if len(ids) > 0 {
		profiles, err := s.profiles.ListByIDs(ctx, ids)
		if err != nil {
			log.Error().Err(err).Msg("Failed to resolve conversation peers")
			return s.Conversations()
		}
		for _, p := range profiles {
			peers = append(peers, fillIdentity(p, p.Username))
		}
		sort.SliceStable(peers, func(i, j int) bool {
			return order[peers[i].ID] < order[peers[j].ID]
		})
	}

	s.mu.Lock()
	s.peers = peers
	s.mu.Unlock()

	s.notifier.Publish(EventConversationsUpdated, nil)
	return s.Conversations()
}

// Conversations returns the peer list snapshot
func (s *ConversationService) Conversations() []models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Identity{}, s.peers...)
}

// HandleIncoming routes a pushed message insert. A message from the open
// peer is appended to the transcript; any other produces one alert and a
// conversation list refresh.
func (s *ConversationService) HandleIncoming(ctx context.Context, ev models.ChangeEvent) {
	me := s.viewer.Current()
	if me == nil || ev.Type != models.ChangeInsert {
		return
	}

	var msg models.Message
	if err := json.Unmarshal(ev.Record, &msg); err != nil {
		log.Warn().Err(err).Msg("Failed to decode pushed message")
		return
	}
	if msg.ReceiverID != me.ID || msg.ID == "" {
		return
	}

	s.mu.Lock()
	if s.peer != "" && s.peer == msg.SenderID {
		s.transcript = mergeMessages(s.transcript, []models.Message{msg})
		s.bump(msg.SenderID)
		s.mu.Unlock()
		s.notifier.Publish(EventTranscriptUpdated, s.Transcript())
		return
	}
	source, known := s.peerByID(msg.SenderID)
	s.mu.Unlock()

	if !known {
		source = s.resolve(ctx, msg.SenderID)
	}
	s.alerts.Record(models.AlertMessage, source, AlertPayload{Text: msg.Text})
	s.ListConversations(ctx)
}

// Reset drops all conversation state
func (s *ConversationService) Reset() {
	s.mu.Lock()
	s.peer = ""
	s.transcript = nil
	s.peers = nil
	s.mu.Unlock()
}

// bump moves a known peer to the head of the list. Must hold mu.
func (s *ConversationService) bump(peerID string) bool {
	for i, p := range s.peers {
		if p.ID == peerID {
			copy(s.peers[1:i+1], s.peers[:i])
			s.peers[0] = p
			return true
		}
	}
	return false
}

// peerByID looks up a listed peer. Must hold mu.
func (s *ConversationService) peerByID(id string) (models.Identity, bool) {
	for _, p := range s.peers {
		if p.ID == id {
			return p, true
		}
	}
	return models.Identity{}, false
}

func (s *ConversationService) resolve(ctx context.Context, id string) models.Identity {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("user_id", id).Msg("Failed to resolve message sender")
		return fillIdentity(models.Identity{ID: id}, id)
	}
	return fillIdentity(*p, p.Username)
}

// mergeMessages unions two transcripts by id, oldest first
func mergeMessages(a, b []models.Message) []models.Message {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]models.Message, 0, len(a)+len(b))
	for _, list := range [][]models.Message{a, b} {
		for _, m := range list {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
