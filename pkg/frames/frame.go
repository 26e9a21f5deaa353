package frames

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ChartKind tags the renderer family a chart belongs to.
type ChartKind string

const (
	KindLine    ChartKind = "line"
	KindBar     ChartKind = "bar"
	KindPie     ChartKind = "pie"
	KindArea    ChartKind = "area"
	KindScatter ChartKind = "scatter"
)

// ValidKind reports whether s is one of the known chart kinds.
func ValidKind(s string) bool {
	switch ChartKind(s) {
	case KindLine, KindBar, KindPie, KindArea, KindScatter:
		return true
	}
	return false
}

// DataPoint maps a field name to a scalar value (string, number, bool or nil)
// as decoded from JSON.
type DataPoint map[string]any

// ChartFragment is the chart-specific portion of a frame. Every field is
// optional; scalars are pointer-typed so that an omitted field can be told
// apart from an empty one. Field names follow the backend wire contract.
type ChartFragment struct {
	ID        *string     `json:"id,omitempty"`
	Kind      *string     `json:"type,omitempty"`
	Title     *string     `json:"title,omitempty"`
	Data      []DataPoint `json:"data,omitempty"`
	XKey      *string     `json:"xKey,omitempty"`
	YKey      *string     `json:"yKey,omitempty"`
	DataKeys  []string    `json:"dataKeys,omitempty"`
	Colors    []string    `json:"colors,omitempty"`
	TimeRange *string     `json:"timeRange,omitempty"`
}

// Viable reports whether the fragment has reached the minimum viable shape
// for promotion to a committed chart entity: a valid kind tag plus an
// explicit id, a non-empty title, or data points. A data-only chart
// resolves through its position in the chart list.
func (f ChartFragment) Viable() bool {
	if f.Kind == nil || !ValidKind(strings.TrimSpace(*f.Kind)) {
		return false
	}
	if f.ID != nil && strings.TrimSpace(*f.ID) != "" {
		return true
	}
	if f.Title != nil && strings.TrimSpace(*f.Title) != "" {
		return true
	}
	return len(f.Data) > 0
}

// Frame is one cumulative snapshot of the in-progress response. Content
// carries the full accumulated text so far, not a delta; Charts carries the
// accumulated chart fragments in a stable order.
type Frame struct {
	Content string          `json:"content"`
	Title   *string         `json:"title,omitempty"`
	Charts  []ChartFragment `json:"charts,omitempty"`
}

// Decode parses raw JSON into a Frame, enforcing the basic shape contract:
// the payload must be an object, content must be a string when present, and
// charts must be an array (or null) of objects. A violation yields an error
// so callers can drop the frame and keep consuming.
func Decode(raw []byte) (*Frame, error) {
	var shape struct {
		Content json.RawMessage `json:"content"`
		Title   *string         `json:"title"`
		Charts  json.RawMessage `json:"charts"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, errors.Wrap(err, "frame is not an object")
	}

	f := &Frame{Title: shape.Title}
	if len(shape.Content) > 0 && string(shape.Content) != "null" {
		if err := json.Unmarshal(shape.Content, &f.Content); err != nil {
			return nil, errors.Wrap(err, "content is not a string")
		}
	}
	if len(shape.Charts) > 0 && string(shape.Charts) != "null" {
		var entries []json.RawMessage
		if err := json.Unmarshal(shape.Charts, &entries); err != nil {
			return nil, errors.Wrap(err, "charts is not a sequence")
		}
		f.Charts = make([]ChartFragment, 0, len(entries))
		for _, entry := range entries {
			var frag ChartFragment
			if err := json.Unmarshal(entry, &frag); err != nil {
				// A single malformed fragment never reaches viability; the
				// rest of the frame stays usable.
				f.Charts = append(f.Charts, ChartFragment{})
				continue
			}
			f.Charts = append(f.Charts, frag)
		}
	}
	return f, nil
}
