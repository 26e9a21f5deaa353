package reconcile

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/go-go-golems/plotto/pkg/frames"
)

// Resolver maps partial chart fragments to stable logical identities for the
// duration of one turn. Resolution order: explicit id, then title (backed by
// a "last known identity for this title" cache so a chart that stops sending
// its id keeps resolving to the same entity), then a position-based fallback
// keyed by the fragment's ordinal within the frame's chart list. The ordinal
// fallback is cached too, so id-less, title-less charts stay stable across
// frames; deriving a fallback from wall-clock time would mint a fresh
// identity per frame and is exactly what this type exists to avoid.
type Resolver struct {
	byTitle   map[string]string
	byOrdinal map[int]string
	logger    zerolog.Logger
}

func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{
		byTitle:   map[string]string{},
		byOrdinal: map[int]string{},
		logger:    logger,
	}
}

// Resolve returns the stable identity for the fragment at the given ordinal
// position within the current frame's chart list.
func (r *Resolver) Resolve(frag frames.ChartFragment, ordinal int) string {
	title := ""
	if frag.Title != nil {
		title = strings.TrimSpace(*frag.Title)
	}

	if frag.ID != nil && strings.TrimSpace(*frag.ID) != "" {
		id := strings.TrimSpace(*frag.ID)
		if title != "" {
			if prev, ok := r.byTitle[title]; ok && prev != id {
				// Two distinct logical charts resolved through the same
				// title. Last write wins; true de-duplication needs a
				// stable upstream id.
				r.logger.Warn().
					Str("component", "reconcile").
					Str("title", title).
					Str("prev_id", prev).
					Str("id", id).
					Msg("chart identity collision, last write wins")
			}
			r.byTitle[title] = id
		}
		return id
	}

	if title != "" {
		if id, ok := r.byTitle[title]; ok {
			return id
		}
		r.byTitle[title] = title
		return title
	}

	if id, ok := r.byOrdinal[ordinal]; ok {
		return id
	}
	id := fmt.Sprintf("chart-%d", ordinal+1)
	r.byOrdinal[ordinal] = id
	return id
}

// Reset clears all caches; called between turns so one turn's titles cannot
// bleed into the next turn's resolution.
func (r *Resolver) Reset() {
	r.byTitle = map[string]string{}
	r.byOrdinal = map[int]string{}
}
