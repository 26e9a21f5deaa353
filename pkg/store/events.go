package store

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/plotto/pkg/reconcile"
)

// Event types emitted on the per-conversation state topic. The discipline is
// one event per store per frame: observers never see a frame half-applied.
const (
	EventChartsUpdate  = "charts.update"
	EventChartsClear   = "charts.clear"
	EventMessageUpsert = "message.upsert"
	EventTurnState     = "turn.state"
)

// StateTopic computes the notification topic for a conversation.
func StateTopic(convID string) string { return "state:" + convID }

// Envelope is the JSON wire form of a state notification.
type Envelope struct {
	Event EventBody `json:"event"`
}

type EventBody struct {
	Type   string `json:"type"`
	ConvID string `json:"conv_id"`
	ID     string `json:"id,omitempty"`
	Seq    uint64 `json:"seq"`
	Data   any    `json:"data,omitempty"`
}

// ChartsUpdateData carries the full post-merge entities changed by one frame.
type ChartsUpdateData struct {
	Charts []*reconcile.ChartEntity `json:"charts"`
}

// MessageUpsertData carries the full message after create/replace/finalize.
type MessageUpsertData struct {
	Message *Message `json:"message"`
}

// TurnStateData mirrors the turn controller's flags.
type TurnStateData struct {
	Generating      bool   `json:"generating"`
	Streaming       bool   `json:"streaming"`
	ActiveMessageID string `json:"active_message_id,omitempty"`
	Title           string `json:"title,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Notifier delivers state events to subscribers. Implementations must not
// block: the caller is the single writer for a conversation and a stalled
// notification stalls ingestion of the next frame.
type Notifier interface {
	Emit(ctx context.Context, eventType string, id string, data any)
}

// BusNotifier publishes envelopes as JSON on the conversation's state topic.
// Seq is assigned per emission and is strictly increasing, so subscribers
// can order and de-duplicate deliveries.
type BusNotifier struct {
	convID    string
	publisher message.Publisher
	seq       atomic.Uint64
	logger    zerolog.Logger
}

var _ Notifier = &BusNotifier{}

func NewBusNotifier(convID string, publisher message.Publisher, logger zerolog.Logger) *BusNotifier {
	return &BusNotifier{
		convID:    convID,
		publisher: publisher,
		logger:    logger.With().Str("component", "store").Str("conv_id", convID).Logger(),
	}
}

func (n *BusNotifier) Emit(_ context.Context, eventType string, id string, data any) {
	if n == nil || n.publisher == nil {
		return
	}
	env := Envelope{Event: EventBody{
		Type:   eventType,
		ConvID: n.convID,
		ID:     id,
		Seq:    n.seq.Add(1),
		Data:   data,
	}}
	payload, err := json.Marshal(env)
	if err != nil {
		n.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal state event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := n.publisher.Publish(StateTopic(n.convID), msg); err != nil {
		n.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish state event")
	}
}

// CollectNotifier records emitted events in order; test helper.
type CollectNotifier struct {
	mu     sync.Mutex
	seq    uint64
	Events []EventBody
}

var _ Notifier = &CollectNotifier{}

func (n *CollectNotifier) Emit(_ context.Context, eventType string, id string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	n.Events = append(n.Events, EventBody{Type: eventType, ID: id, Seq: n.seq, Data: data})
}

// ByType returns the recorded events matching eventType, in emission order.
func (n *CollectNotifier) ByType(eventType string) []EventBody {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventBody, 0, len(n.Events))
	for _, ev := range n.Events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// NopNotifier discards all events.
type NopNotifier struct{}

var _ Notifier = NopNotifier{}

func (NopNotifier) Emit(context.Context, string, string, any) {}
