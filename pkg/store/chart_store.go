package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/go-go-golems/plotto/pkg/frames"
	"github.com/go-go-golems/plotto/pkg/reconcile"
)

// ChartStore is the single authoritative owner of committed chart entities
// for one conversation. Entities are kept in first-seen order; identities
// never change and entities are never deleted mid-turn, only cleared
// wholesale between conversations.
//
// Writes happen on the turn controller's goroutine only; reads take clones
// so presentation code cannot alias writer state.
type ChartStore struct {
	mu       sync.RWMutex
	convID   string
	entities *orderedmap.OrderedMap[string, *reconcile.ChartEntity]
	notifier Notifier
	logger   zerolog.Logger

	// frame batching: while a frame is open, changed identities accumulate
	// and a single charts.update event is emitted on EndFrame, so observers
	// never see a frame half-applied across charts.
	batching     bool
	changed      map[string]struct{}
	changedOrder []string
}

func NewChartStore(convID string, notifier Notifier, logger zerolog.Logger) *ChartStore {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ChartStore{
		convID:   convID,
		entities: orderedmap.New[string, *reconcile.ChartEntity](),
		notifier: notifier,
		logger:   logger.With().Str("component", "chart_store").Str("conv_id", convID).Logger(),
		changed:  map[string]struct{}{},
	}
}

// BeginFrame opens a per-frame batch. Updates between BeginFrame and
// EndFrame coalesce into one notification.
func (s *ChartStore) BeginFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batching = true
}

// EndFrame closes the batch and emits a single charts.update event carrying
// the post-merge entities changed during the frame. No event is emitted for
// a frame that changed nothing.
func (s *ChartStore) EndFrame(ctx context.Context) {
	s.mu.Lock()
	s.batching = false
	if len(s.changedOrder) == 0 {
		s.mu.Unlock()
		return
	}
	charts := make([]*reconcile.ChartEntity, 0, len(s.changedOrder))
	for _, id := range s.changedOrder {
		if e, ok := s.entities.Get(id); ok {
			charts = append(charts, e.Clone())
		}
	}
	s.changed = map[string]struct{}{}
	s.changedOrder = nil
	s.mu.Unlock()

	s.notifier.Emit(ctx, EventChartsUpdate, "", ChartsUpdateData{Charts: charts})
}

// AddChart appends a new entity. Adding an identity that is already present
// is a no-op; callers must route such fragments through UpdateChart.
func (s *ChartStore) AddChart(ctx context.Context, entity *reconcile.ChartEntity) {
	if entity == nil || entity.ID == "" {
		return
	}
	s.mu.Lock()
	if _, ok := s.entities.Get(entity.ID); ok {
		s.mu.Unlock()
		s.logger.Debug().Str("chart_id", entity.ID).Msg("add ignored, identity already present")
		return
	}
	s.entities.Set(entity.ID, entity.Clone())
	flush := s.markChangedLocked(entity.ID)
	s.mu.Unlock()
	s.flushSingle(ctx, flush)
}

// UpdateChart merges a fragment into the stored entity and reports whether
// anything changed. Unknown identities are a no-op, not an error; callers
// must create first.
func (s *ChartStore) UpdateChart(ctx context.Context, id string, frag frames.ChartFragment) bool {
	s.mu.Lock()
	stored, ok := s.entities.Get(id)
	if !ok {
		s.mu.Unlock()
		s.logger.Debug().Str("chart_id", id).Msg("update ignored, unknown identity")
		return false
	}
	merged, changed := reconcile.Merge(stored, frag)
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.entities.Set(id, merged)
	flush := s.markChangedLocked(id)
	s.mu.Unlock()
	s.flushSingle(ctx, flush)
	return true
}

// ClearCharts empties the store. Used only between conversations, never
// mid-turn.
func (s *ChartStore) ClearCharts(ctx context.Context) {
	s.mu.Lock()
	s.entities = orderedmap.New[string, *reconcile.ChartEntity]()
	s.changed = map[string]struct{}{}
	s.changedOrder = nil
	s.mu.Unlock()
	s.notifier.Emit(ctx, EventChartsClear, "", nil)
}

// Get returns a clone of the entity for id.
func (s *ChartStore) Get(id string) (*reconcile.ChartEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities.Get(id)
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Snapshot returns clones of all entities in first-seen order.
func (s *ChartStore) Snapshot() []*reconcile.ChartEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*reconcile.ChartEntity, 0, s.entities.Len())
	for pair := s.entities.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Clone())
	}
	return out
}

func (s *ChartStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities.Len()
}

// markChangedLocked records id as changed in the open batch. When no batch
// is open it returns the entity to emit immediately.
func (s *ChartStore) markChangedLocked(id string) *reconcile.ChartEntity {
	if s.batching {
		if _, ok := s.changed[id]; !ok {
			s.changed[id] = struct{}{}
			s.changedOrder = append(s.changedOrder, id)
		}
		return nil
	}
	if e, ok := s.entities.Get(id); ok {
		return e.Clone()
	}
	return nil
}

func (s *ChartStore) flushSingle(ctx context.Context, entity *reconcile.ChartEntity) {
	if entity == nil {
		return
	}
	s.notifier.Emit(ctx, EventChartsUpdate, entity.ID, ChartsUpdateData{Charts: []*reconcile.ChartEntity{entity}})
}
