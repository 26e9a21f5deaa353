package framesource

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/plotto/pkg/frames"
)

// BusSource consumes the frame bus topic of one conversation and decodes
// each message into an Event. Generation backends publish to the same topic
// through FramePublisher.
type BusSource struct {
	convID     string
	subscriber message.Subscriber
	logger     zerolog.Logger
}

var _ Source = &BusSource{}

func NewBusSource(convID string, subscriber message.Subscriber, logger zerolog.Logger) *BusSource {
	return &BusSource{
		convID:     convID,
		subscriber: subscriber,
		logger:     logger.With().Str("component", "frame_source").Str("conv_id", convID).Logger(),
	}
}

func (s *BusSource) Events(ctx context.Context) (<-chan Event, error) {
	if s.subscriber == nil {
		return nil, errors.New("frame source has no subscriber")
	}
	msgs, err := s.subscriber.Subscribe(ctx, FrameTopic(s.convID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to frame topic")
	}

	ch := make(chan Event)
	go func() {
		defer close(ch)
		for msg := range msgs {
			ev, err := decodeWire(msg.Payload)
			msg.Ack()
			if err != nil {
				// A garbled bus message is dropped, not fatal: the next
				// cumulative frame supersedes whatever was lost.
				s.logger.Warn().Err(err).Msg("dropping undecodable frame message")
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Kind == KindDone || ev.Kind == KindError {
				return
			}
		}
	}()
	return ch, nil
}

// FramePublisher is the producer side of the frame bus. Backends publish the
// cumulative frames of one turn, then exactly one done or error event.
type FramePublisher struct {
	convID    string
	publisher message.Publisher
	seq       atomic.Uint64
	logger    zerolog.Logger
}

func NewFramePublisher(convID string, publisher message.Publisher, logger zerolog.Logger) *FramePublisher {
	return &FramePublisher{
		convID:    convID,
		publisher: publisher,
		logger:    logger.With().Str("component", "frame_publisher").Str("conv_id", convID).Logger(),
	}
}

// PublishFrame sends one cumulative snapshot frame. The payload is the raw
// frame object; decode tolerance lives on the consuming side.
func (p *FramePublisher) PublishFrame(raw json.RawMessage) error {
	return p.publish(wireEvent{Type: string(KindFrame), Data: raw})
}

// PublishFrameStruct marshals and sends an already-structured frame.
func (p *FramePublisher) PublishFrameStruct(frame *frames.Frame) error {
	raw, err := json.Marshal(frame)
	if err != nil {
		return errors.Wrap(err, "failed to marshal frame")
	}
	return p.PublishFrame(raw)
}

// PublishDone marks the turn as completed.
func (p *FramePublisher) PublishDone() error {
	return p.publish(wireEvent{Type: string(KindDone)})
}

// PublishError marks the turn as failed.
func (p *FramePublisher) PublishError(errMsg string) error {
	return p.publish(wireEvent{Type: string(KindError), Error: errMsg})
}

func (p *FramePublisher) publish(ev wireEvent) error {
	if p.publisher == nil {
		return errors.New("frame publisher has no bus")
	}
	ev.ConvID = p.convID
	ev.Seq = p.seq.Add(1)
	payload, err := json.Marshal(wireEnvelope{Event: ev})
	if err != nil {
		return errors.Wrap(err, "failed to marshal frame envelope")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(FrameTopic(p.convID), msg); err != nil {
		return errors.Wrap(err, "failed to publish frame event")
	}
	return nil
}
