package framesource

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/plotto/pkg/frames"
)

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestBusSource_FramesThenDone(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewBusSource("conv-1", bus, zerolog.Nop())
	ch, err := src.Events(ctx)
	require.NoError(t, err)

	pub := NewFramePublisher("conv-1", bus, zerolog.Nop())
	require.NoError(t, pub.PublishFrame([]byte(`{"content":"Here is","charts":[]}`)))
	require.NoError(t, pub.PublishFrame([]byte(`{"content":"Here is the summary","charts":[{"id":"a","type":"pie"}]}`)))
	require.NoError(t, pub.PublishDone())

	events := collect(t, ch)
	require.Len(t, events, 3)
	require.Equal(t, KindFrame, events[0].Kind)
	require.Equal(t, "Here is", events[0].Frame.Content)
	require.Equal(t, KindFrame, events[1].Kind)
	require.Len(t, events[1].Frame.Charts, 1)
	require.Equal(t, KindDone, events[2].Kind)
}

func TestBusSource_ErrorEventCarriesMessage(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewBusSource("conv-1", bus, zerolog.Nop())
	ch, err := src.Events(ctx)
	require.NoError(t, err)

	pub := NewFramePublisher("conv-1", bus, zerolog.Nop())
	require.NoError(t, pub.PublishError("upstream exploded"))

	events := collect(t, ch)
	require.Len(t, events, 1)
	require.Equal(t, KindError, events[0].Kind)
	require.ErrorContains(t, events[0].Err, "upstream exploded")
}

func TestBusSource_GarbledMessageIsDropped(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewBusSource("conv-1", bus, zerolog.Nop())
	ch, err := src.Events(ctx)
	require.NoError(t, err)

	pub := NewFramePublisher("conv-1", bus, zerolog.Nop())
	require.NoError(t, pub.publish(wireEvent{Type: "mystery"}))
	require.NoError(t, pub.PublishFrame([]byte(`{"content":"still alive"}`)))
	require.NoError(t, pub.PublishDone())

	events := collect(t, ch)
	require.Len(t, events, 2)
	require.Equal(t, "still alive", events[0].Frame.Content)
	require.Equal(t, KindDone, events[1].Kind)
}

func TestScriptedSource_ReplaysScript(t *testing.T) {
	src := &ScriptedSource{Script: []Event{
		{Kind: KindFrame, Frame: &frames.Frame{Content: "a"}},
		{Kind: KindFrame, Frame: &frames.Frame{Content: "ab"}},
		{Kind: KindDone},
	}}

	ch, err := src.Events(context.Background())
	require.NoError(t, err)

	events := collect(t, ch)
	require.Len(t, events, 3)
	require.Equal(t, "ab", events[1].Frame.Content)
	require.Equal(t, KindDone, events[2].Kind)
}

func TestScriptedSource_CancelStopsReplay(t *testing.T) {
	src := &ScriptedSource{
		Script: []Event{
			{Kind: KindFrame, Frame: &frames.Frame{Content: "a"}},
			{Kind: KindFrame, Frame: &frames.Frame{Content: "ab"}},
			{Kind: KindDone},
		},
		Interval: time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Events(ctx)
	require.NoError(t, err)

	first := <-ch
	require.Equal(t, "a", first.Frame.Content)
	cancel()

	events := collect(t, ch)
	require.Empty(t, events)
}
