package frames

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestDecode_FullFrame(t *testing.T) {
	raw := []byte(`{
		"content": "Market summary so far",
		"title": "Market Summary",
		"charts": [
			{
				"id": "market-share",
				"type": "pie",
				"title": "Market Share Distribution",
				"data": [{"company": "^GSPC", "share": 41.2}],
				"dataKeys": ["share"],
				"colors": ["#0088FE"]
			}
		]
	}`)

	f, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "Market summary so far", f.Content)
	require.NotNil(t, f.Title)
	require.Equal(t, "Market Summary", *f.Title)
	require.Len(t, f.Charts, 1)

	frag := f.Charts[0]
	require.NotNil(t, frag.ID)
	require.Equal(t, "market-share", *frag.ID)
	require.NotNil(t, frag.Kind)
	require.Equal(t, "pie", *frag.Kind)
	require.Len(t, frag.Data, 1)
	require.Equal(t, 41.2, frag.Data[0]["share"])
	require.True(t, frag.Viable())
}

func TestDecode_NullChartsAndMissingContent(t *testing.T) {
	f, err := Decode([]byte(`{"title": null, "charts": null}`))
	require.NoError(t, err)
	require.Empty(t, f.Content)
	require.Nil(t, f.Title)
	require.Nil(t, f.Charts)
}

func TestDecode_RejectsNonObjectFrame(t *testing.T) {
	_, err := Decode([]byte(`["not", "a", "frame"]`))
	require.Error(t, err)
}

func TestDecode_RejectsChartsNotASequence(t *testing.T) {
	_, err := Decode([]byte(`{"content": "x", "charts": {"id": "a"}}`))
	require.Error(t, err)
}

func TestDecode_RejectsNonStringContent(t *testing.T) {
	_, err := Decode([]byte(`{"content": 42}`))
	require.Error(t, err)
}

func TestDecode_MalformedFragmentKeptAsEmpty(t *testing.T) {
	f, err := Decode([]byte(`{"content": "x", "charts": ["oops", {"type": "line", "title": "T"}]}`))
	require.NoError(t, err)
	require.Len(t, f.Charts, 2)
	require.False(t, f.Charts[0].Viable())
	require.True(t, f.Charts[1].Viable())
}

func TestViable(t *testing.T) {
	require.False(t, ChartFragment{}.Viable())
	require.False(t, ChartFragment{Title: strptr("Revenue")}.Viable())
	require.False(t, ChartFragment{Kind: strptr("sparkline"), Title: strptr("Revenue")}.Viable())
	require.False(t, ChartFragment{Kind: strptr("bar"), Title: strptr("  ")}.Viable())
	require.True(t, ChartFragment{Kind: strptr("bar"), Title: strptr("Revenue")}.Viable())
	require.True(t, ChartFragment{Kind: strptr("line"), ID: strptr("c1")}.Viable())
	require.True(t, ChartFragment{Kind: strptr("line"), Data: []DataPoint{{"v": 1.0}}}.Viable())
}
