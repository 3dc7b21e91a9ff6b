package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnifiedUserRecord is the single document holding every section for one identity.
type UnifiedUserRecord struct {
	ID        Identity
	CreatedAt time.Time
	// Sections holds top-level sections by name. The spotify section is itself
	// a map keyed by subtype.
	Sections map[string]any
}

// Section returns the value stored at path.
func (r UnifiedUserRecord) Section(path SectionPath) (any, bool) {
	segments := path.Segments()
	value, ok := r.Sections[segments[0]]
	if !ok || len(segments) == 1 {
		return value, ok
	}
	nested, isMap := value.(map[string]any)
	if !isMap {
		return nil, false
	}
	value, ok = nested[segments[1]]
	return value, ok
}

// DecodeSection converts the section at path into dst.
func (r UnifiedUserRecord) DecodeSection(path SectionPath, dst any) (bool, error) {
	value, ok := r.Section(path)
	if !ok {
		return false, nil
	}
	if err := Convert(value, dst); err != nil {
		return true, fmt.Errorf("decode section %s: %w", path, err)
	}
	return true, nil
}

// SectionNames lists the section paths present in the record, expanding the
// spotify namespace into its subtypes.
func (r UnifiedUserRecord) SectionNames() []SectionPath {
	var names []SectionPath
	for name, value := range r.Sections {
		if SectionPath(name) == SectionSpotify {
			if nested, ok := value.(map[string]any); ok {
				for sub := range nested {
					names = append(names, SectionSpotify+"."+SectionPath(sub))
				}
				continue
			}
		}
		names = append(names, SectionPath(name))
	}
	return names
}

// MarshalJSON renders the record in its persisted document shape.
func (r UnifiedUserRecord) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Sections)+2)
	for k, v := range r.Sections {
		doc[k] = v
	}
	doc[FieldID] = r.ID
	doc[FieldCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(doc)
}

// Normalize converts an arbitrary payload into plain JSON values (maps,
// slices, strings, float64, bool, nil) so every store sees the same shape.
func Normalize(payload any) (any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

// Convert re-encodes src into dst through JSON.
func Convert(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
