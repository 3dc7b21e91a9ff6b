package service

import "github.com/vanshika/tunetraits/internal/domain"

// RespondentInput is one recorded session replayed by the bulk ingestor. Nil
// or empty parts are skipped, so partial sessions replay as partial records.
type RespondentInput struct {
	Identity     domain.Identity `json:"id" yaml:"id"`
	Demographics map[string]any  `json:"demographics,omitempty" yaml:"demographics,omitempty"`
	Answers      domain.Answers  `json:"answers,omitempty" yaml:"answers,omitempty"`
	// Snapshots maps raw data types to already flattened payloads.
	Snapshots map[string]any `json:"snapshots,omitempty" yaml:"snapshots,omitempty"`
}
