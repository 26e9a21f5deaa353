package webchart

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/plotto/pkg/framesource"
	"github.com/go-go-golems/plotto/pkg/reconcile"
	"github.com/go-go-golems/plotto/pkg/store"
)

// ErrConversationBusy is returned when a prompt arrives while the previous
// turn is still generating.
var ErrConversationBusy = errors.New("conversation is busy with a previous turn")

// Generator produces the frames of one turn, publishing them followed by a
// terminal event. The demo backend satisfies this; a real model backend
// would too.
type Generator interface {
	Generate(ctx context.Context, publisher *framesource.FramePublisher, prompt string) error
}

// ChatService is the application-facing API: submit prompts, stop turns,
// reset conversations, snapshot state. HTTP handlers are thin wrappers over
// this type.
type ChatService struct {
	manager   *ConvManager
	generator Generator
	baseCtx   context.Context
	logger    zerolog.Logger
}

func NewChatService(baseCtx context.Context, manager *ConvManager, generator Generator, logger zerolog.Logger) (*ChatService, error) {
	if manager == nil {
		return nil, errors.New("chat service requires a conversation manager")
	}
	if generator == nil {
		return nil, errors.New("chat service requires a generator")
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &ChatService{
		manager:   manager,
		generator: generator,
		baseCtx:   baseCtx,
		logger:    logger.With().Str("component", "chat_service").Logger(),
	}, nil
}

// SubmitPrompt records the user message and starts a new turn for convID.
// A blank convID allocates a fresh conversation. Returns the conversation id
// the turn runs under, or ErrConversationBusy while a turn is active.
func (s *ChatService) SubmitPrompt(ctx context.Context, convID string, prompt string, attachmentIDs []string) (string, error) {
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}
	if convID == "" {
		convID = uuid.NewString()
	}
	conv, err := s.manager.GetOrCreate(convID)
	if err != nil {
		return "", errors.Wrap(err, "failed to set up conversation")
	}
	if conv.Controller.Generating() {
		return convID, ErrConversationBusy
	}

	conv.Messages.AddMessage(ctx, store.RoleUser, prompt, attachmentIDs)

	// The turn outlives the HTTP request; it is bounded by the service's
	// base context and by Stop.
	if err := conv.Controller.Start(s.baseCtx, conv.FrameSource(s.manager.bus)); err != nil {
		return convID, err
	}

	pub := framesource.NewFramePublisher(convID, s.manager.bus, s.logger)
	go func() {
		if err := s.generator.Generate(s.baseCtx, pub, prompt); err != nil {
			s.logger.Warn().Err(err).Str("conv_id", convID).Msg("generation ended with error")
		}
	}()

	s.logger.Info().Str("conv_id", convID).Int("attachments", len(attachmentIDs)).Msg("turn submitted")
	return convID, nil
}

// Stop cancels the running turn for convID, keeping all committed state.
func (s *ChatService) Stop(convID string) error {
	conv, ok := s.manager.Get(convID)
	if !ok {
		return errors.Errorf("unknown conversation %q", convID)
	}
	conv.Controller.Stop()
	conv.Controller.Wait()
	return nil
}

// Reset stops any running turn and clears the conversation's stores.
func (s *ChatService) Reset(ctx context.Context, convID string) error {
	conv, ok := s.manager.Get(convID)
	if !ok {
		return errors.Errorf("unknown conversation %q", convID)
	}
	conv.Controller.Stop()
	conv.Controller.Wait()
	conv.Messages.Clear(ctx)
	conv.Charts.ClearCharts(ctx)
	return nil
}

// StateSnapshot is the full conversation state served to late joiners.
type StateSnapshot struct {
	ConvID     string                   `json:"conv_id"`
	Title      string                   `json:"title,omitempty"`
	Generating bool                     `json:"generating"`
	Error      string                   `json:"error,omitempty"`
	Messages   []*store.Message         `json:"messages"`
	Charts     []*reconcile.ChartEntity `json:"charts"`
}

// Snapshot returns the current state of convID for bootstrap rendering.
func (s *ChatService) Snapshot(convID string) (*StateSnapshot, error) {
	conv, ok := s.manager.Get(convID)
	if !ok {
		return nil, errors.Errorf("unknown conversation %q", convID)
	}
	snap := &StateSnapshot{
		ConvID:     convID,
		Title:      conv.Controller.Title(),
		Generating: conv.Controller.Generating(),
		Messages:   conv.Messages.Snapshot(),
	}
	if err := conv.Controller.LastError(); err != nil {
		snap.Error = err.Error()
	}
	snap.Charts = conv.Charts.Snapshot()
	if snap.Charts == nil {
		snap.Charts = []*reconcile.ChartEntity{}
	}
	if snap.Messages == nil {
		snap.Messages = []*store.Message{}
	}
	return snap, nil
}
