package store

import (
	"time"

	"github.com/vanshika/tunetraits/internal/domain"
)

// document is the in-process form of a record, shared by the backends that
// manage the document shape themselves (memory, badger).
type document struct {
	ID        domain.Identity `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Sections  map[string]any  `json:"sections"`
}

func newDocument(id domain.Identity, now time.Time) *document {
	return &document{ID: id, CreatedAt: now, Sections: map[string]any{}}
}

// set replaces the value at path, leaving sibling paths untouched.
func (d *document) set(path domain.SectionPath, payload any) {
	if d.Sections == nil {
		d.Sections = map[string]any{}
	}
	segments := path.Segments()
	if len(segments) == 1 {
		d.Sections[segments[0]] = cloneValue(payload)
		return
	}
	nested, ok := d.Sections[segments[0]].(map[string]any)
	if !ok {
		nested = map[string]any{}
	} else {
		nested = cloneMap(nested)
	}
	nested[segments[1]] = cloneValue(payload)
	d.Sections[segments[0]] = nested
}

func (d *document) record() domain.UnifiedUserRecord {
	return domain.UnifiedUserRecord{
		ID:        d.ID,
		CreatedAt: d.CreatedAt,
		Sections:  cloneMap(d.Sections),
	}
}

// cloneValue deep-copies JSON-shaped values so stored data never aliases
// caller-owned maps or slices.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}
