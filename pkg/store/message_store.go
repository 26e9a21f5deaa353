package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a committed conversation message. Assistant content is replaced
// wholesale on every update (frames carry cumulative text, not deltas), so
// its length never decreases during a turn.
type Message struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	Streaming     bool      `json:"streaming"`
	AttachmentIDs []string  `json:"attachment_ids,omitempty"`
}

func (m *Message) clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.AttachmentIDs = append([]string(nil), m.AttachmentIDs...)
	return &out
}

// MessageStore owns the ordered messages of one conversation. Like the chart
// store it is single-writer (the turn controller, plus user-message creation
// from the chat service between turns) and notifies on every visible change.
type MessageStore struct {
	mu       sync.RWMutex
	convID   string
	order    []*Message
	byID     map[string]*Message
	notifier Notifier
	logger   zerolog.Logger
}

func NewMessageStore(convID string, notifier Notifier, logger zerolog.Logger) *MessageStore {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &MessageStore{
		convID:   convID,
		byID:     map[string]*Message{},
		notifier: notifier,
		logger:   logger.With().Str("component", "message_store").Str("conv_id", convID).Logger(),
	}
}

// AddMessage appends a message and returns its clone. Attachment IDs are
// opaque references from the upload collaborator, accepted at creation time
// only. Assistant messages start out streaming.
func (s *MessageStore) AddMessage(ctx context.Context, role Role, content string, attachmentIDs []string) *Message {
	msg := &Message{
		ID:            uuid.NewString(),
		Role:          role,
		Content:       content,
		CreatedAt:     time.Now(),
		Streaming:     role == RoleAssistant,
		AttachmentIDs: append([]string(nil), attachmentIDs...),
	}
	s.mu.Lock()
	s.order = append(s.order, msg)
	s.byID[msg.ID] = msg
	out := msg.clone()
	s.mu.Unlock()

	s.notifier.Emit(ctx, EventMessageUpsert, msg.ID, MessageUpsertData{Message: out})
	return out
}

// UpdateMessage replaces the content of an existing message. Replacement
// with identical content emits nothing. Unknown identities are a no-op.
func (s *MessageStore) UpdateMessage(ctx context.Context, id string, content string) bool {
	s.mu.Lock()
	msg, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug().Str("message_id", id).Msg("update ignored, unknown identity")
		return false
	}
	if msg.Content == content {
		s.mu.Unlock()
		return false
	}
	msg.Content = content
	out := msg.clone()
	s.mu.Unlock()

	s.notifier.Emit(ctx, EventMessageUpsert, id, MessageUpsertData{Message: out})
	return true
}

// Finalize clears the streaming flag. A second call for the same message is
// a no-op, so the flag is cleared exactly once per turn.
func (s *MessageStore) Finalize(ctx context.Context, id string) bool {
	s.mu.Lock()
	msg, ok := s.byID[id]
	if !ok || !msg.Streaming {
		s.mu.Unlock()
		return false
	}
	msg.Streaming = false
	out := msg.clone()
	s.mu.Unlock()

	s.notifier.Emit(ctx, EventMessageUpsert, id, MessageUpsertData{Message: out})
	return true
}

// Clear drops all messages; used only between conversations.
func (s *MessageStore) Clear(ctx context.Context) {
	s.mu.Lock()
	s.order = nil
	s.byID = map[string]*Message{}
	s.mu.Unlock()
	s.notifier.Emit(ctx, EventMessageUpsert, "", MessageUpsertData{})
}

func (s *MessageStore) Get(id string) (*Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return msg.clone(), true
}

// Snapshot returns clones of all messages in creation order.
func (s *MessageStore) Snapshot() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Message, 0, len(s.order))
	for _, m := range s.order {
		out = append(out, m.clone())
	}
	return out
}

// Sink owns the single in-flight assistant message for one streaming turn.
// Creation is deferred until the first frame with non-empty content; later
// frames replace the content under the same identity.
type Sink struct {
	store    *MessageStore
	activeID string
}

func NewSink(store *MessageStore) *Sink {
	return &Sink{store: store}
}

// BeginOrUpdate routes one frame's cumulative content into the store and
// returns the active message identity, or "" while content is still empty.
func (k *Sink) BeginOrUpdate(ctx context.Context, content string) string {
	if k.activeID == "" {
		if content == "" {
			return ""
		}
		msg := k.store.AddMessage(ctx, RoleAssistant, content, nil)
		k.activeID = msg.ID
		return k.activeID
	}
	k.store.UpdateMessage(ctx, k.activeID, content)
	return k.activeID
}

// ActiveID returns the in-flight message identity, or "" before creation.
func (k *Sink) ActiveID() string { return k.activeID }

// Finalize clears the streaming flag on the active message exactly once and
// releases the identity. Returns the finalized id, or "" if no message was
// ever created.
func (k *Sink) Finalize(ctx context.Context) string {
	if k.activeID == "" {
		return ""
	}
	id := k.activeID
	k.activeID = ""
	k.store.Finalize(ctx, id)
	return id
}
