package turn

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/plotto/pkg/framesource"
	"github.com/go-go-golems/plotto/pkg/frames"
	"github.com/go-go-golems/plotto/pkg/reconcile"
	"github.com/go-go-golems/plotto/pkg/store"
)

// Phase is the lifecycle state of a conversation's turn machinery.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGenerating Phase = "generating"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// ErrTurnActive is returned by Start while a previous turn is still running.
var ErrTurnActive = errors.New("a turn is already active for this conversation")

// DefaultInactivityTimeout bounds the gap between consecutive frame events
// before the turn is declared failed.
const DefaultInactivityTimeout = 30 * time.Second

// Controller drives one conversation's turns: it consumes a frame source,
// routes message content into the message store and chart fragments through
// identity resolution into the chart store, and walks the
// idle -> generating -> (completed|failed) -> idle lifecycle. At most one
// turn runs at a time; Stop cancels cooperatively, freezing the stores at
// their last committed state.
type Controller struct {
	convID     string
	charts     *store.ChartStore
	messages   *store.MessageStore
	notifier   store.Notifier
	inactivity time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	phase   Phase
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
	title   string
}

// Option configures a Controller.
type Option func(*Controller)

// WithInactivityTimeout overrides the per-event inactivity bound. Zero or
// negative disables the watchdog.
func WithInactivityTimeout(d time.Duration) Option {
	return func(c *Controller) { c.inactivity = d }
}

func NewController(convID string, charts *store.ChartStore, messages *store.MessageStore, notifier store.Notifier, logger zerolog.Logger, opts ...Option) *Controller {
	if notifier == nil {
		notifier = store.NopNotifier{}
	}
	c := &Controller{
		convID:     convID,
		charts:     charts,
		messages:   messages,
		notifier:   notifier,
		inactivity: DefaultInactivityTimeout,
		phase:      PhaseIdle,
		logger:     logger.With().Str("component", "turn_controller").Str("conv_id", convID).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins consuming src on a new goroutine. It fails with ErrTurnActive
// while a previous turn is still running. ctx bounds the whole turn; Stop
// cancels it early.
func (c *Controller) Start(ctx context.Context, src framesource.Source) error {
	c.mu.Lock()
	if c.phase == PhaseGenerating {
		c.mu.Unlock()
		return ErrTurnActive
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Unlock()

	// Open the source before flipping state so no frame published after
	// Start returns can slip past the subscription.
	ch, err := src.Events(runCtx)
	if err != nil {
		cancel()
		return errors.Wrap(err, "failed to open frame source")
	}

	c.mu.Lock()
	if c.phase == PhaseGenerating {
		c.mu.Unlock()
		cancel()
		return ErrTurnActive
	}
	c.phase = PhaseGenerating
	c.cancel = cancel
	c.done = make(chan struct{})
	c.lastErr = nil
	done := c.done
	c.mu.Unlock()

	c.logger.Info().Msg("turn started")
	c.emitState(store.TurnStateData{Generating: true, Title: c.Title()})

	go func() {
		defer close(done)
		// Release the source subscription however the turn ends, not just
		// on Stop.
		defer cancel()
		c.run(runCtx, ch)
	}()
	return nil
}

// Stop requests cooperative cancellation of the running turn. The stores
// keep whatever was committed before the cancellation took effect. Stop is
// a no-op when no turn is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current turn finishes. Returns immediately when no
// turn is running.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Generating reports whether a turn is currently running.
func (c *Controller) Generating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == PhaseGenerating
}

// Phase returns the last observed lifecycle phase. After a turn finishes the
// terminal phase stays visible until the next Start.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// LastError returns the error that failed the previous turn, or nil.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Title returns the conversation title announced by the frames so far.
func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

func (c *Controller) run(ctx context.Context, ch <-chan framesource.Event) {
	resolver := reconcile.NewResolver(c.logger)
	sink := store.NewSink(c.messages)

	var watchdog *time.Timer
	var expired <-chan time.Time
	if c.inactivity > 0 {
		watchdog = time.NewTimer(c.inactivity)
		defer watchdog.Stop()
		expired = watchdog.C
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					// Stopped: freeze at the last committed frame.
					c.finish(PhaseFailed, nil, sink)
				} else {
					c.finish(PhaseFailed, errors.New("frame stream closed before completion"), sink)
				}
				return
			}
			if watchdog != nil {
				if !watchdog.Stop() {
					<-watchdog.C
				}
				watchdog.Reset(c.inactivity)
			}
			switch ev.Kind {
			case framesource.KindFrame:
				// A frame already queued when Stop fires must be ignored,
				// not applied.
				if ctx.Err() != nil {
					c.finish(PhaseFailed, nil, sink)
					return
				}
				c.applyFrame(ctx, ev.Frame, resolver, sink)
			case framesource.KindDone:
				c.finish(PhaseCompleted, nil, sink)
				return
			case framesource.KindError:
				c.finish(PhaseFailed, ev.Err, sink)
				return
			}
		case <-expired:
			c.finish(PhaseFailed, errors.Errorf("no frames for %s, giving up on turn", c.inactivity), sink)
			return
		case <-ctx.Done():
			c.finish(PhaseFailed, nil, sink)
			return
		}
	}
}

// applyFrame commits one cumulative snapshot: message content first, so the
// text a chart refers to is never behind the chart, then the chart fragments
// as a single batched update.
func (c *Controller) applyFrame(ctx context.Context, frame *frames.Frame, resolver *reconcile.Resolver, sink *store.Sink) {
	if frame == nil {
		return
	}

	hadActive := sink.ActiveID() != ""
	activeID := sink.BeginOrUpdate(ctx, frame.Content)
	titleChanged := c.noteTitle(frame.Title)

	c.charts.BeginFrame()
	for i, frag := range frame.Charts {
		if !frag.Viable() {
			continue
		}
		id := resolver.Resolve(frag, i)
		if _, ok := c.charts.Get(id); ok {
			c.charts.UpdateChart(ctx, id, frag)
		} else {
			c.charts.AddChart(ctx, reconcile.NewChartEntity(id, frag))
		}
	}
	c.charts.EndFrame(ctx)

	if (!hadActive && activeID != "") || titleChanged {
		c.emitState(store.TurnStateData{
			Generating:      true,
			Streaming:       activeID != "",
			ActiveMessageID: activeID,
			Title:           c.Title(),
		})
	}
}

// noteTitle records a non-empty frame title and reports whether it changed.
func (c *Controller) noteTitle(title *string) bool {
	if title == nil {
		return false
	}
	trimmed := strings.TrimSpace(*title)
	if trimmed == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.title == trimmed {
		return false
	}
	c.title = trimmed
	return true
}

// finish finalizes the in-flight assistant message (partial content is kept
// on failure and stop alike), records the terminal phase and announces it.
func (c *Controller) finish(phase Phase, err error, sink *store.Sink) {
	sink.Finalize(context.Background())

	c.mu.Lock()
	c.phase = phase
	c.lastErr = err
	c.cancel = nil
	title := c.title
	c.mu.Unlock()

	data := store.TurnStateData{Title: title}
	if err != nil {
		data.Error = err.Error()
		c.logger.Warn().Err(err).Msg("turn failed")
	} else {
		c.logger.Info().Str("phase", string(phase)).Msg("turn finished")
	}
	c.emitState(data)
}

func (c *Controller) emitState(data store.TurnStateData) {
	c.notifier.Emit(context.Background(), store.EventTurnState, "", data)
}
