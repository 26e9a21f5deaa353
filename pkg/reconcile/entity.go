package reconcile

import (
	"strings"

	"github.com/go-go-golems/plotto/pkg/frames"
)

// ChartEntity is a committed chart. ID is assigned once at promotion time
// and never changes; every other field holds the last-merged value.
type ChartEntity struct {
	ID        string             `json:"id"`
	Kind      frames.ChartKind   `json:"type"`
	Title     string             `json:"title,omitempty"`
	Data      []frames.DataPoint `json:"data,omitempty"`
	XKey      string             `json:"xKey,omitempty"`
	YKey      string             `json:"yKey,omitempty"`
	DataKeys  []string           `json:"dataKeys,omitempty"`
	Colors    []string           `json:"colors,omitempty"`
	TimeRange string             `json:"timeRange,omitempty"`
}

// NewChartEntity promotes a viable fragment to a committed entity under the
// resolved identity. The caller is expected to have checked Viable().
func NewChartEntity(id string, frag frames.ChartFragment) *ChartEntity {
	e := &ChartEntity{ID: id}
	if frag.Kind != nil {
		e.Kind = frames.ChartKind(strings.TrimSpace(*frag.Kind))
	}
	if frag.Title != nil {
		e.Title = *frag.Title
	}
	if frag.Data != nil {
		e.Data = cloneData(frag.Data)
	}
	if frag.XKey != nil {
		e.XKey = *frag.XKey
	}
	if frag.YKey != nil {
		e.YKey = *frag.YKey
	}
	if frag.DataKeys != nil {
		e.DataKeys = append([]string(nil), frag.DataKeys...)
	}
	if frag.Colors != nil {
		e.Colors = append([]string(nil), frag.Colors...)
	}
	if frag.TimeRange != nil {
		e.TimeRange = *frag.TimeRange
	}
	return e
}

// Clone returns a deep copy so store snapshots cannot alias writer state.
func (e *ChartEntity) Clone() *ChartEntity {
	if e == nil {
		return nil
	}
	out := *e
	out.Data = cloneData(e.Data)
	out.DataKeys = append([]string(nil), e.DataKeys...)
	out.Colors = append([]string(nil), e.Colors...)
	return &out
}

func cloneData(data []frames.DataPoint) []frames.DataPoint {
	if data == nil {
		return nil
	}
	out := make([]frames.DataPoint, len(data))
	for i, p := range data {
		cp := make(frames.DataPoint, len(p))
		for k, v := range p {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}
