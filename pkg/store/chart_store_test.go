package store

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/plotto/pkg/frames"
	"github.com/go-go-golems/plotto/pkg/reconcile"
)

func strptr(s string) *string { return &s }

func newTestChartStore() (*ChartStore, *CollectNotifier) {
	n := &CollectNotifier{}
	return NewChartStore("conv-1", n, zerolog.Nop()), n
}

func lineEntity(id, title string) *reconcile.ChartEntity {
	return reconcile.NewChartEntity(id, frames.ChartFragment{
		Kind:  strptr("line"),
		Title: strptr(title),
	})
}

func TestChartStore_SnapshotKeepsFirstSeenOrder(t *testing.T) {
	s, _ := newTestChartStore()
	ctx := context.Background()

	s.AddChart(ctx, lineEntity("c", "third"))
	s.AddChart(ctx, lineEntity("a", "first"))
	s.AddChart(ctx, lineEntity("b", "second"))

	// Updating an early entity must not move it.
	s.UpdateChart(ctx, "c", frames.ChartFragment{Title: strptr("third updated")})

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "c", snap[0].ID)
	require.Equal(t, "a", snap[1].ID)
	require.Equal(t, "b", snap[2].ID)
	require.Equal(t, "third updated", snap[0].Title)
}

func TestChartStore_FrameBatchEmitsOneEvent(t *testing.T) {
	s, n := newTestChartStore()
	ctx := context.Background()

	s.BeginFrame()
	s.AddChart(ctx, lineEntity("a", "one"))
	s.AddChart(ctx, lineEntity("b", "two"))
	s.UpdateChart(ctx, "a", frames.ChartFragment{Title: strptr("one updated")})
	s.EndFrame(ctx)

	events := n.ByType(EventChartsUpdate)
	require.Len(t, events, 1)
	data, ok := events[0].Data.(ChartsUpdateData)
	require.True(t, ok)
	require.Len(t, data.Charts, 2)
	require.Equal(t, "a", data.Charts[0].ID)
	require.Equal(t, "one updated", data.Charts[0].Title)
	require.Equal(t, "b", data.Charts[1].ID)
}

func TestChartStore_EmptyFrameEmitsNothing(t *testing.T) {
	s, n := newTestChartStore()
	ctx := context.Background()

	s.AddChart(ctx, lineEntity("a", "one"))
	require.Len(t, n.ByType(EventChartsUpdate), 1)

	// A frame that re-delivers identical state is silent.
	s.BeginFrame()
	s.UpdateChart(ctx, "a", frames.ChartFragment{Kind: strptr("line"), Title: strptr("one")})
	s.EndFrame(ctx)
	require.Len(t, n.ByType(EventChartsUpdate), 1)
}

func TestChartStore_AddDuplicateIsNoOp(t *testing.T) {
	s, n := newTestChartStore()
	ctx := context.Background()

	s.AddChart(ctx, lineEntity("a", "one"))
	s.AddChart(ctx, lineEntity("a", "someone else"))

	got, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "one", got.Title)
	require.Len(t, n.ByType(EventChartsUpdate), 1)
}

func TestChartStore_UpdateUnknownIsNoOp(t *testing.T) {
	s, n := newTestChartStore()
	changed := s.UpdateChart(context.Background(), "ghost", frames.ChartFragment{Title: strptr("x")})
	require.False(t, changed)
	require.Empty(t, n.Events)
	require.Zero(t, s.Len())
}

func TestChartStore_ClearEmptiesAndNotifies(t *testing.T) {
	s, n := newTestChartStore()
	ctx := context.Background()

	s.AddChart(ctx, lineEntity("a", "one"))
	s.ClearCharts(ctx)

	require.Zero(t, s.Len())
	require.Len(t, n.ByType(EventChartsClear), 1)
}

func TestChartStore_SnapshotReturnsClones(t *testing.T) {
	s, _ := newTestChartStore()
	ctx := context.Background()

	s.AddChart(ctx, reconcile.NewChartEntity("a", frames.ChartFragment{
		Kind: strptr("bar"),
		Data: []frames.DataPoint{{"q": "Q1", "value": 10.0}},
	}))

	snap := s.Snapshot()
	snap[0].Title = "mutated"
	snap[0].Data[0]["value"] = 999.0

	got, ok := s.Get("a")
	require.True(t, ok)
	require.Empty(t, got.Title)
	require.Equal(t, 10.0, got.Data[0]["value"])
}
