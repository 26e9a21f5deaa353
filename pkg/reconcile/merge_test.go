package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/plotto/pkg/frames"
)

func strptr(s string) *string { return &s }

func points(vals ...float64) []frames.DataPoint {
	out := make([]frames.DataPoint, 0, len(vals))
	for i, v := range vals {
		out = append(out, frames.DataPoint{"date": i, "value": v})
	}
	return out
}

func TestMerge_PresentDataReplacesWholesale(t *testing.T) {
	stored := &ChartEntity{ID: "a", Kind: frames.KindLine, Data: points(1, 2)}

	merged, changed := Merge(stored, frames.ChartFragment{Data: points(1, 2, 3)})
	require.True(t, changed)
	require.Len(t, merged.Data, 3)
	// stored is untouched
	require.Len(t, stored.Data, 2)

	// A follow-up fragment that omits data keeps the merged sequence.
	merged2, changed2 := Merge(merged, frames.ChartFragment{ID: strptr("a")})
	require.False(t, changed2)
	require.Len(t, merged2.Data, 3)
}

func TestMerge_OmittedFieldsNeverRegress(t *testing.T) {
	stored := &ChartEntity{
		ID:       "trend",
		Kind:     frames.KindLine,
		Title:    "Performance Over Time",
		XKey:     "date",
		DataKeys: []string{"AAPL", "MSFT"},
		Colors:   []string{"#8884d8", "#82ca9d"},
	}

	merged, changed := Merge(stored, frames.ChartFragment{Title: strptr("Performance Over Time")})
	require.False(t, changed)
	require.Equal(t, "date", merged.XKey)
	require.Equal(t, []string{"AAPL", "MSFT"}, merged.DataKeys)
	require.Equal(t, []string{"#8884d8", "#82ca9d"}, merged.Colors)
}

func TestMerge_IdenticalFragmentIsUnchanged(t *testing.T) {
	frag := frames.ChartFragment{
		Kind:      strptr("pie"),
		Title:     strptr("Market Share Distribution"),
		Data:      []frames.DataPoint{{"company": "^GSPC", "share": 41.2}},
		DataKeys:  []string{"share"},
		Colors:    []string{"#0088FE"},
		TimeRange: strptr("3mo"),
	}
	entity := NewChartEntity("market-share", frag)

	merged, changed := Merge(entity, frag)
	require.False(t, changed)
	require.Equal(t, entity, merged)
}

func TestMerge_NumericEqualityAcrossDecodeTypes(t *testing.T) {
	stored := &ChartEntity{
		ID:   "a",
		Kind: frames.KindBar,
		Data: []frames.DataPoint{{"value": float64(3)}},
	}
	_, changed := Merge(stored, frames.ChartFragment{
		Data: []frames.DataPoint{{"value": 3}},
	})
	require.False(t, changed)
}

func TestMerge_ScalarChangeFlagsChanged(t *testing.T) {
	stored := &ChartEntity{ID: "a", Kind: frames.KindLine, TimeRange: "3mo"}

	merged, changed := Merge(stored, frames.ChartFragment{TimeRange: strptr("1y")})
	require.True(t, changed)
	require.Equal(t, "1y", merged.TimeRange)

	_, changed = Merge(merged, frames.ChartFragment{TimeRange: strptr("1y")})
	require.False(t, changed)
}

func TestMerge_InvalidKindIgnored(t *testing.T) {
	stored := &ChartEntity{ID: "a", Kind: frames.KindLine}
	merged, changed := Merge(stored, frames.ChartFragment{Kind: strptr("sparkline")})
	require.False(t, changed)
	require.Equal(t, frames.KindLine, merged.Kind)
}

func TestMerge_NullScalarInDataPoint(t *testing.T) {
	stored := &ChartEntity{
		ID:   "a",
		Kind: frames.KindLine,
		Data: []frames.DataPoint{{"value": nil}},
	}
	_, changed := Merge(stored, frames.ChartFragment{
		Data: []frames.DataPoint{{"value": nil}},
	})
	require.False(t, changed)

	_, changed = Merge(stored, frames.ChartFragment{
		Data: []frames.DataPoint{{"value": 4.5}},
	})
	require.True(t, changed)
}
