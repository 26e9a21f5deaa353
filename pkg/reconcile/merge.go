package reconcile

import (
	"strings"

	"github.com/go-go-golems/plotto/pkg/frames"
)

// Merge folds an incoming fragment into a stored entity and reports whether
// anything changed. Field rules:
//
//   - omitted fields keep the stored value, so a sparse late fragment never
//     regresses previously known data;
//   - present fields are compared structurally and replace the stored value
//     when different;
//   - a present data sequence always replaces the stored one in full, since
//     successive frames carry cumulative supersets rather than deltas.
//
// The stored entity is not mutated; the merged result is a fresh value.
// Merging an already-applied fragment yields changed=false, which is what
// lets the store suppress duplicate notifications.
func Merge(stored *ChartEntity, frag frames.ChartFragment) (*ChartEntity, bool) {
	merged := stored.Clone()
	changed := false

	if frag.Kind != nil {
		kind := frames.ChartKind(strings.TrimSpace(*frag.Kind))
		if frames.ValidKind(string(kind)) && kind != merged.Kind {
			merged.Kind = kind
			changed = true
		}
	}
	if frag.Title != nil && *frag.Title != merged.Title {
		merged.Title = *frag.Title
		changed = true
	}
	if frag.Data != nil && !dataEqual(merged.Data, frag.Data) {
		merged.Data = cloneData(frag.Data)
		changed = true
	}
	if frag.XKey != nil && *frag.XKey != merged.XKey {
		merged.XKey = *frag.XKey
		changed = true
	}
	if frag.YKey != nil && *frag.YKey != merged.YKey {
		merged.YKey = *frag.YKey
		changed = true
	}
	if frag.DataKeys != nil && !stringsEqual(merged.DataKeys, frag.DataKeys) {
		merged.DataKeys = append([]string(nil), frag.DataKeys...)
		changed = true
	}
	if frag.Colors != nil && !stringsEqual(merged.Colors, frag.Colors) {
		merged.Colors = append([]string(nil), frag.Colors...)
		changed = true
	}
	if frag.TimeRange != nil && *frag.TimeRange != merged.TimeRange {
		merged.TimeRange = *frag.TimeRange
		changed = true
	}

	return merged, changed
}

func dataEqual(a, b []frames.DataPoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pointEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func pointEqual(a, b frames.DataPoint) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valueEqual(av, bv) {
			return false
		}
	}
	return true
}

// valueEqual is recursive structural equality over the JSON value domain.
// Numbers compare by value so that int-built test fixtures and float64
// JSON decodes of the same payload are equal.
func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !valueEqual(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
