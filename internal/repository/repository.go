package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vanshika/tunetraits/internal/domain"
	"github.com/vanshika/tunetraits/internal/store"
)

// Repository encapsulates unified record persistence on top of a store client.
type Repository struct {
	client store.Client
	logger *slog.Logger
	nowFn  func() time.Time
}

// New instantiates a Repository backed by the supplied store client. Retries
// are the client's concern; wrap it with store.WithRetry to get them.
func New(client store.Client, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		client: client,
		logger: logger.With("component", "repository"),
		nowFn:  time.Now,
	}
}

// WithClock overrides the clock used to stamp created_at. Intended for tests.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	if now != nil {
		r.nowFn = now
	}
	return r
}

// MergeSection overwrites one section of the record for id, creating the
// record when it does not exist yet. Every other section is left untouched.
func (r *Repository) MergeSection(ctx context.Context, id domain.Identity, path domain.SectionPath, payload any) error {
	id, err := domain.ParseIdentity(id.String())
	if err != nil {
		return err
	}
	if err := path.Validate(); err != nil {
		return err
	}

	normalized, err := domain.Normalize(payload)
	if err != nil {
		return fmt.Errorf("merge %s for %s: %w", path, id, err)
	}

	// Mongo keeps millisecond precision; truncate so every backend agrees.
	now := r.nowFn().UTC().Truncate(time.Millisecond)
	if err := r.client.UpsertSection(ctx, id, path, normalized, now); err != nil {
		r.logger.Error("merge section failed",
			"identity", id.String(),
			"section", path.String(),
			"error", err,
		)
		return fmt.Errorf("merge %s for %s: %w", path, id, err)
	}

	r.logger.Debug("section merged", "identity", id.String(), "section", path.String())
	return nil
}

// MergeDataType resolves a raw data type through the lookup table and merges
// payload into the resulting section.
func (r *Repository) MergeDataType(ctx context.Context, id domain.Identity, dataType string, payload any) (domain.SectionPath, error) {
	path := domain.ResolveSection(dataType)
	return path, r.MergeSection(ctx, id, path, payload)
}

// GetUnifiedRecord returns the full record for id. found is false when no
// record exists; that case is not an error.
func (r *Repository) GetUnifiedRecord(ctx context.Context, id domain.Identity) (domain.UnifiedUserRecord, bool, error) {
	id, err := domain.ParseIdentity(id.String())
	if err != nil {
		return domain.UnifiedUserRecord{}, false, err
	}

	rec, err := r.client.FindRecord(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.UnifiedUserRecord{}, false, nil
	}
	if err != nil {
		return domain.UnifiedUserRecord{}, false, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, true, nil
}
