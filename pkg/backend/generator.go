package backend

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-go-golems/plotto/pkg/framesource"
)

// DemoGenerator runs one scripted generation per prompt. It satisfies the
// chat service's generator contract.
type DemoGenerator struct {
	Interval time.Duration
	Logger   zerolog.Logger
}

func (g DemoGenerator) Generate(ctx context.Context, publisher *framesource.FramePublisher, prompt string) error {
	return NewStreamer(publisher, g.Interval, g.Logger).Run(ctx, prompt)
}
