package framesource

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/plotto/pkg/frames"
)

// EventKind discriminates the three things a frame stream can deliver.
type EventKind string

const (
	KindFrame EventKind = "frame"
	KindDone  EventKind = "done"
	KindError EventKind = "error"
)

// Event is one delivery from a frame source. Frame is set for KindFrame,
// Err for KindError.
type Event struct {
	Kind  EventKind
	Frame *frames.Frame
	Err   error
}

// Source delivers the cumulative snapshot frames of one streaming turn.
// The channel closes after a done or error event, or when ctx is canceled.
// A Source is single-use: one turn, one channel.
type Source interface {
	Events(ctx context.Context) (<-chan Event, error)
}

// FrameTopic computes the frame bus topic for a conversation.
func FrameTopic(convID string) string { return "turn:" + convID }

// wireEnvelope is the JSON form of one frame bus message.
type wireEnvelope struct {
	Event wireEvent `json:"event"`
}

type wireEvent struct {
	Type   string          `json:"type"`
	ConvID string          `json:"conv_id"`
	Seq    uint64          `json:"seq"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// decodeWire turns a raw bus payload into an Event. A malformed envelope is
// an error the caller reports; a malformed frame inside a well-formed
// envelope is handled by frames.Decode's own tolerance rules.
func decodeWire(payload []byte) (Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, errors.Wrap(err, "malformed frame envelope")
	}
	switch EventKind(env.Event.Type) {
	case KindFrame:
		frame, err := frames.Decode(env.Event.Data)
		if err != nil {
			return Event{}, errors.Wrap(err, "malformed frame payload")
		}
		return Event{Kind: KindFrame, Frame: frame}, nil
	case KindDone:
		return Event{Kind: KindDone}, nil
	case KindError:
		msg := env.Event.Error
		if msg == "" {
			msg = "generation failed"
		}
		return Event{Kind: KindError, Err: errors.New(msg)}, nil
	default:
		return Event{}, errors.Errorf("unknown frame event type %q", env.Event.Type)
	}
}

// ScriptedSource replays a fixed sequence of events with an optional delay
// between them. Used by tests and the offline demo path.
type ScriptedSource struct {
	Script   []Event
	Interval time.Duration
}

var _ Source = &ScriptedSource{}

func (s *ScriptedSource) Events(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		for i, ev := range s.Script {
			if i > 0 && s.Interval > 0 {
				select {
				case <-time.After(s.Interval):
				case <-ctx.Done():
					return
				}
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
