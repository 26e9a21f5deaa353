package reconcile

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/plotto/pkg/frames"
)

func newTestResolver() *Resolver {
	return NewResolver(zerolog.Nop())
}

func TestResolve_ExplicitIDWins(t *testing.T) {
	r := newTestResolver()
	id := r.Resolve(frames.ChartFragment{
		ID:    strptr("market-share"),
		Title: strptr("Market Share Distribution"),
	}, 0)
	require.Equal(t, "market-share", id)
}

func TestResolve_TitleStableAcrossFragments(t *testing.T) {
	r := newTestResolver()

	first := r.Resolve(frames.ChartFragment{Title: strptr("Revenue")}, 0)
	second := r.Resolve(frames.ChartFragment{Title: strptr("Revenue"), Kind: strptr("bar")}, 0)
	third := r.Resolve(frames.ChartFragment{
		Title: strptr("Revenue"),
		Kind:  strptr("bar"),
		Data:  []frames.DataPoint{{"q": "Q1", "value": 10.0}},
	}, 0)

	require.Equal(t, first, second)
	require.Equal(t, second, third)
}

func TestResolve_TitleFallsBackToCachedID(t *testing.T) {
	r := newTestResolver()

	// Fragment k carries the id; fragment k+1 only repeats the title.
	withID := r.Resolve(frames.ChartFragment{
		ID:    strptr("multi-company-trend"),
		Title: strptr("Performance Over Time"),
	}, 0)
	titleOnly := r.Resolve(frames.ChartFragment{Title: strptr("Performance Over Time")}, 0)

	require.Equal(t, "multi-company-trend", withID)
	require.Equal(t, withID, titleOnly)
}

func TestResolve_OrdinalFallbackStableAcrossFrames(t *testing.T) {
	r := newTestResolver()

	frame1 := r.Resolve(frames.ChartFragment{Kind: strptr("line")}, 1)
	frame2 := r.Resolve(frames.ChartFragment{Kind: strptr("line")}, 1)
	other := r.Resolve(frames.ChartFragment{Kind: strptr("line")}, 2)

	require.Equal(t, frame1, frame2)
	require.NotEqual(t, frame1, other)
}

func TestResolve_CollisionLastWriteWins(t *testing.T) {
	r := newTestResolver()

	r.Resolve(frames.ChartFragment{ID: strptr("a"), Title: strptr("Trend")}, 0)
	// A second logical chart reuses the title with a different id.
	id := r.Resolve(frames.ChartFragment{ID: strptr("b"), Title: strptr("Trend")}, 1)
	require.Equal(t, "b", id)

	// The cache now points at the latest writer.
	titleOnly := r.Resolve(frames.ChartFragment{Title: strptr("Trend")}, 2)
	require.Equal(t, "b", titleOnly)
}

func TestResolver_ResetClearsCaches(t *testing.T) {
	r := newTestResolver()
	withID := r.Resolve(frames.ChartFragment{ID: strptr("x"), Title: strptr("T")}, 0)
	require.Equal(t, "x", withID)

	r.Reset()
	titleOnly := r.Resolve(frames.ChartFragment{Title: strptr("T")}, 0)
	require.Equal(t, "T", titleOnly)
}
