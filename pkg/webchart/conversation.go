package webchart

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/plotto/pkg/framesource"
	"github.com/go-go-golems/plotto/pkg/store"
	"github.com/go-go-golems/plotto/pkg/turn"
)

// Conversation bundles the per-conversation machinery: the stores, the turn
// controller that feeds them, the websocket pool and the forwarder that
// bridges state events onto the pool.
type Conversation struct {
	ID         string
	Charts     *store.ChartStore
	Messages   *store.MessageStore
	Controller *turn.Controller
	Pool       *ConnectionPool

	mu          sync.Mutex
	forwarding  bool
	stopForward context.CancelFunc

	logger zerolog.Logger
}

// ConvManager owns all live conversations and the shared in-process bus they
// publish frames and state events on.
type ConvManager struct {
	mu     sync.Mutex
	convs  map[string]*Conversation
	bus    Bus
	logger zerolog.Logger

	connIdleTimeout   time.Duration
	inactivityTimeout time.Duration
}

// Bus is the pub/sub pair conversations communicate over. The gochannel
// implementation satisfies it directly.
type Bus interface {
	message.Publisher
	message.Subscriber
}

func NewConvManager(bus Bus, connIdleTimeout, inactivityTimeout time.Duration, logger zerolog.Logger) *ConvManager {
	return &ConvManager{
		convs:             map[string]*Conversation{},
		bus:               bus,
		logger:            logger,
		connIdleTimeout:   connIdleTimeout,
		inactivityTimeout: inactivityTimeout,
	}
}

// GetOrCreate returns the conversation for convID, wiring up stores,
// controller and forwarder on first sight.
func (m *ConvManager) GetOrCreate(convID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[convID]; ok {
		return c, nil
	}

	notifier := store.NewBusNotifier(convID, m.bus, m.logger)
	charts := store.NewChartStore(convID, notifier, m.logger)
	messages := store.NewMessageStore(convID, notifier, m.logger)

	conv := &Conversation{
		ID:       convID,
		Charts:   charts,
		Messages: messages,
		Controller: turn.NewController(convID, charts, messages, notifier, m.logger,
			turn.WithInactivityTimeout(m.inactivityTimeout)),
		logger: m.logger.With().Str("component", "webchart").Str("conv_id", convID).Logger(),
	}
	conv.Pool = NewConnectionPool(convID, m.connIdleTimeout, conv.stopForwarder, m.logger)

	if err := conv.startForwarder(m.bus); err != nil {
		return nil, err
	}
	m.convs[convID] = conv
	return conv, nil
}

// Get returns an existing conversation without creating one.
func (m *ConvManager) Get(convID string) (*Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[convID]
	return c, ok
}

// Shutdown stops every conversation's turn and closes its connections.
func (m *ConvManager) Shutdown() {
	m.mu.Lock()
	convs := make([]*Conversation, 0, len(m.convs))
	for _, c := range m.convs {
		convs = append(convs, c)
	}
	m.mu.Unlock()
	for _, c := range convs {
		c.Controller.Stop()
		c.Controller.Wait()
		c.stopForwarder()
		c.Pool.CloseAll()
	}
}

// startForwarder subscribes to the conversation's state topic and broadcasts
// every event payload verbatim to the websocket pool. The payloads are
// already the wire envelopes clients expect.
func (c *Conversation) startForwarder(sub message.Subscriber) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.forwarding {
		return nil
	}
	fwdCtx, cancel := context.WithCancel(context.Background())
	ch, err := sub.Subscribe(fwdCtx, store.StateTopic(c.ID))
	if err != nil {
		cancel()
		return err
	}
	c.stopForward = cancel
	c.forwarding = true
	c.logger.Info().Msg("starting state forwarder")

	go func() {
		for msg := range ch {
			c.Pool.Broadcast(msg.Payload)
			msg.Ack()
		}
		c.mu.Lock()
		c.forwarding = false
		c.stopForward = nil
		c.mu.Unlock()
		c.logger.Info().Msg("state forwarder stopped")
	}()
	return nil
}

func (c *Conversation) stopForwarder() {
	c.mu.Lock()
	cancel := c.stopForward
	c.stopForward = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ensureForwarder restarts the forwarder after an idle stop, called when a
// websocket client reattaches.
func (c *Conversation) ensureForwarder(sub message.Subscriber) {
	c.mu.Lock()
	running := c.forwarding
	c.mu.Unlock()
	if !running {
		if err := c.startForwarder(sub); err != nil {
			c.logger.Warn().Err(err).Msg("failed to restart state forwarder")
		}
	}
}

// FrameSource builds the frame bus consumer for one turn of this
// conversation.
func (c *Conversation) FrameSource(sub message.Subscriber) framesource.Source {
	return framesource.NewBusSource(c.ID, sub, c.logger)
}
