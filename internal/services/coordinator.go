package services

import (
	"context"
	"sync"

	"lumina/internal/models"
	"lumina/internal/realtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ChangeSubscriber is a realtime subscription
type ChangeSubscriber interface {
	On(b realtime.Binding, h realtime.Handler)
	Start(ctx context.Context) error
	SetAccessToken(token string)
}

// SubscriberFactory opens a subscription authorized by accessToken
type SubscriberFactory func(accessToken string) ChangeSubscriber

// Coordinator drives the synchronizers through the session lifecycle
type Coordinator struct {
	session       *SessionService
	feed          *FeedService
	conversations *ConversationService
	stories       *StoryService
	community     *CommunityService
	alerts        *AlertService
	newSubscriber SubscriberFactory
	notifier      Notifier

	mu      sync.Mutex
	base    context.Context
	userID  string
	sub     ChangeSubscriber
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewCoordinator creates a new coordinator. newSubscriber may be nil to run
// without realtime updates.
func NewCoordinator(
	session *SessionService,
	feed *FeedService,
	conversations *ConversationService,
	stories *StoryService,
	community *CommunityService,
	alerts *AlertService,
	newSubscriber SubscriberFactory,
	notifier Notifier,
) *Coordinator {
	return &Coordinator{
		session:       session,
		feed:          feed,
		conversations: conversations,
		stories:       stories,
		community:     community,
		alerts:        alerts,
		newSubscriber: newSubscriber,
		notifier:      orNop(notifier),
		base:          context.Background(),
	}
}

// Start attaches the coordinator to the session. Background work is bound
// to ctx.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	c.base = ctx
	c.mu.Unlock()
	c.session.OnChange(c.handleIdentity)
	c.session.OnTokenRefresh(c.handleToken)
}

// Stop cancels the realtime subscription
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel, stopped := c.cancel, c.stopped
	c.cancel, c.stopped, c.userID, c.sub = nil, nil, "", nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-stopped
	}
}

func (c *Coordinator) handleIdentity(identity *models.Identity) {
	if identity == nil {
		c.Stop()
		c.reset()
		c.notifier.Publish(EventSessionChanged, nil)
		return
	}

	c.mu.Lock()
	previous := c.userID
	base := c.base
	c.mu.Unlock()

	c.notifier.Publish(EventSessionChanged, identity)
	if previous == identity.ID {
		return
	}

	c.Stop()
	if previous != "" {
		// another identity took over without a logout
		c.reset()
	}
	c.Load(base)
	c.subscribe(base, identity.ID)
}

func (c *Coordinator) reset() {
	c.feed.Reset()
	c.conversations.Reset()
	c.stories.Reset()
	c.community.Reset()
	c.alerts.Clear()
}

// handleToken hands a renewed access token to the open subscription
func (c *Coordinator) handleToken(accessToken string) {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub != nil {
		sub.SetAccessToken(accessToken)
	}
}

// Load runs the initial loads in parallel
func (c *Coordinator) Load(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error { c.feed.Refresh(ctx); return nil })
	g.Go(func() error { c.stories.Refresh(ctx); return nil })
	g.Go(func() error { c.conversations.ListConversations(ctx); return nil })
	g.Go(func() error { c.community.Directory(ctx); return nil })
	_ = g.Wait()
}

func (c *Coordinator) subscribe(base context.Context, userID string) {
	ctx, cancel := context.WithCancel(base)
	stopped := make(chan struct{})

	c.mu.Lock()
	c.userID = userID
	c.cancel = cancel
	c.stopped = stopped
	c.mu.Unlock()

	if c.newSubscriber == nil {
		close(stopped)
		return
	}

	sub := c.newSubscriber(c.session.AccessToken())
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	sub.On(realtime.Binding{Table: "posts", Event: "*"}, c.feed.HandleChange)
	sub.On(realtime.Binding{
		Table:  "messages",
		Event:  models.ChangeInsert,
		Filter: "receiver_id=eq." + userID,
	}, c.conversations.HandleIncoming)

	go func() {
		defer close(stopped)
		if err := sub.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Realtime subscription stopped")
		}
	}()
	log.Info().Str("user_id", userID).Msg("Realtime subscription started")
}
