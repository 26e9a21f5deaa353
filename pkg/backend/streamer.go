package backend

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/plotto/pkg/framesource"
)

// DefaultFrameInterval paces the demo generator's snapshot emissions.
const DefaultFrameInterval = 150 * time.Millisecond

// Streamer plays a prompt's scripted answer onto the frame bus, pacing the
// cumulative snapshots like a live generation would. It is the demo stand-in
// for a real model backend: the consuming side cannot tell them apart.
type Streamer struct {
	publisher *framesource.FramePublisher
	interval  time.Duration
	logger    zerolog.Logger
}

func NewStreamer(publisher *framesource.FramePublisher, interval time.Duration, logger zerolog.Logger) *Streamer {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Streamer{
		publisher: publisher,
		interval:  interval,
		logger:    logger.With().Str("component", "demo_backend").Logger(),
	}
}

// Run publishes the frames for prompt, then exactly one terminal event. A
// canceled context stops the stream without a terminal event; the consumer's
// own cancellation handles the cleanup.
func (s *Streamer) Run(ctx context.Context, prompt string) error {
	script := Script(prompt)
	s.logger.Debug().Int("frames", len(script)).Msg("starting scripted generation")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i, frame := range script {
		if i > 0 {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := s.publisher.PublishFrameStruct(frame); err != nil {
			pubErr := errors.Wrap(err, "failed to publish frame")
			if perr := s.publisher.PublishError(pubErr.Error()); perr != nil {
				s.logger.Warn().Err(perr).Msg("failed to publish error event")
			}
			return pubErr
		}
	}
	if err := s.publisher.PublishDone(); err != nil {
		return errors.Wrap(err, "failed to publish done event")
	}
	return nil
}
