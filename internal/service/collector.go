package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanshika/tunetraits/internal/domain"
	"github.com/vanshika/tunetraits/internal/scoring"
)

// RecordRepository is the storage contract required by the collector.
type RecordRepository interface {
	MergeSection(ctx context.Context, id domain.Identity, path domain.SectionPath, payload any) error
	MergeDataType(ctx context.Context, id domain.Identity, dataType string, payload any) (domain.SectionPath, error)
	GetUnifiedRecord(ctx context.Context, id domain.Identity) (domain.UnifiedUserRecord, bool, error)
}

// StreamingProvider fetches the listening snapshots of one authorised user.
type StreamingProvider interface {
	TopTracks(ctx context.Context, r domain.TimeRange) ([]domain.TrackRecord, error)
	TopArtists(ctx context.Context, r domain.TimeRange) ([]domain.ArtistRecord, error)
	RecentlyPlayed(ctx context.Context) ([]domain.PlayedRecord, error)
	Playlists(ctx context.Context) ([]domain.PlaylistRecord, error)
	FollowedArtists(ctx context.Context) ([]domain.ArtistRecord, error)
}

// ProviderFactory builds a provider for a credential. It must reject an
// expired credential without contacting the provider.
type ProviderFactory func(ctx context.Context, cred domain.StreamingCredential) (StreamingProvider, error)

const (
	defaultFetchConcurrency = 3
	submissionTimestampKey  = "submission_timestamp"
)

var (
	// ErrNoProvider is returned when streaming collection is requested without a provider factory.
	ErrNoProvider = errors.New("streaming provider not configured")
	// ErrPartialCollection is returned when at least one snapshot was not saved.
	ErrPartialCollection = errors.New("streaming collection incomplete")
)

// Collector drives the three collection stages and persists each result as a
// section of the unified record.
type Collector struct {
	repo        RecordRepository
	logger      *slog.Logger
	nowFn       func() time.Time
	concurrency int
	newProvider ProviderFactory
}

// NewCollector constructs a Collector.
func NewCollector(repo RecordRepository, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		repo:        repo,
		logger:      logger.With("component", "collector"),
		nowFn:       time.Now,
		concurrency: defaultFetchConcurrency,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (c *Collector) WithClock(nowFn func() time.Time) *Collector {
	if nowFn != nil {
		c.nowFn = nowFn
	}
	return c
}

// WithConcurrency bounds how many snapshots are fetched at once.
func (c *Collector) WithConcurrency(n int) *Collector {
	if n > 0 {
		c.concurrency = n
	}
	return c
}

// WithProviderFactory sets how providers are built from credentials.
func (c *Collector) WithProviderFactory(f ProviderFactory) *Collector {
	c.newProvider = f
	return c
}

// SubmitSurvey scores a complete answer set and stores scores and responses
// in the big5 section.
func (c *Collector) SubmitSurvey(ctx context.Context, s *Session, answers domain.Answers) (scoring.Result, error) {
	if err := answers.Validate(); err != nil {
		return scoring.Result{}, err
	}
	if missing := answers.Missing(); len(missing) > 0 {
		return scoring.Result{}, fmt.Errorf("%w: %d questions unanswered, first is %d", domain.ErrIncompleteSurvey, len(missing), missing[0])
	}

	res := scoring.Evaluate(answers)
	payload := domain.SurveyResult{
		Scores:    res.Scores,
		Responses: scoring.ResponsesByText(answers),
	}
	if err := c.repo.MergeSection(ctx, s.Identity(), domain.SectionBig5, payload); err != nil {
		return res, fmt.Errorf("save survey: %w", err)
	}

	s.MarkCompleted(StageSurvey, c.nowFn())
	c.logger.Info("survey saved", "identity", s.Identity().String())
	return res, nil
}

// SubmitDemographics stores the form fields in the demographics section,
// stamped with the submission time.
func (c *Collector) SubmitDemographics(ctx context.Context, s *Session, fields map[string]any) error {
	if err := domain.ValidateFields(fields); err != nil {
		return err
	}

	now := c.nowFn().UTC()
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload[submissionTimestampKey] = now.Format(time.RFC3339)

	if err := c.repo.MergeSection(ctx, s.Identity(), domain.SectionDemographics, payload); err != nil {
		return fmt.Errorf("save demographics: %w", err)
	}

	s.MarkCompleted(StageDemographics, now)
	c.logger.Info("demographics saved", "identity", s.Identity().String(), "fields", len(fields))
	return nil
}

// SnapshotResult is the outcome of one streaming snapshot.
type SnapshotResult struct {
	DataType domain.DataType    `json:"dataType"`
	Section  domain.SectionPath `json:"section"`
	Items    int                `json:"items"`
	Saved    bool               `json:"saved"`
	// Skipped is set for empty snapshots, which are not written.
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`

	err error
}

// Err returns the fetch or save error of the snapshot.
func (r SnapshotResult) Err() error {
	return r.err
}

// StreamingReport lists snapshot outcomes in collection order.
type StreamingReport struct {
	Results []SnapshotResult `json:"results"`
}

// Failed returns the snapshots that were neither saved nor skipped.
func (r StreamingReport) Failed() []SnapshotResult {
	var out []SnapshotResult
	for _, res := range r.Results {
		if res.err != nil {
			out = append(out, res)
		}
	}
	return out
}

type snapshotFetch struct {
	dataType domain.DataType
	fetch    func(ctx context.Context) (any, int, error)
}

func snapshotPlan(p StreamingProvider) []snapshotFetch {
	plan := make([]snapshotFetch, 0, len(domain.StreamingDataTypes))
	for _, r := range domain.TimeRanges {
		r := r
		plan = append(plan, snapshotFetch{domain.TopTracksDataType(r), func(ctx context.Context) (any, int, error) {
			items, err := p.TopTracks(ctx, r)
			return items, len(items), err
		}})
	}
	for _, r := range domain.TimeRanges {
		r := r
		plan = append(plan, snapshotFetch{domain.TopArtistsDataType(r), func(ctx context.Context) (any, int, error) {
			items, err := p.TopArtists(ctx, r)
			return items, len(items), err
		}})
	}
	plan = append(plan,
		snapshotFetch{domain.DataRecentlyPlayed, func(ctx context.Context) (any, int, error) {
			items, err := p.RecentlyPlayed(ctx)
			return items, len(items), err
		}},
		snapshotFetch{domain.DataPlaylists, func(ctx context.Context) (any, int, error) {
			items, err := p.Playlists(ctx)
			return items, len(items), err
		}},
		snapshotFetch{domain.DataFollowing, func(ctx context.Context) (any, int, error) {
			items, err := p.FollowedArtists(ctx)
			return items, len(items), err
		}},
	)
	return plan
}

// CollectStreaming fetches every listening snapshot and merges each into its
// own spotify subsection. Snapshots are independent: one failing never stops
// the others. Provider calls are not retried.
func (c *Collector) CollectStreaming(ctx context.Context, s *Session, provider StreamingProvider) (StreamingReport, error) {
	plan := snapshotPlan(provider)
	report := StreamingReport{Results: make([]SnapshotResult, len(plan))}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, step := range plan {
		i, step := i, step
		g.Go(func() error {
			report.Results[i] = c.collectSnapshot(ctx, s.Identity(), step)
			return nil
		})
	}
	_ = g.Wait()

	failed := report.Failed()
	if len(failed) > 0 {
		c.logger.Warn("streaming collection incomplete",
			"identity", s.Identity().String(),
			"failed", len(failed),
			"total", len(plan),
		)
		return report, fmt.Errorf("%w: %d of %d snapshots failed", ErrPartialCollection, len(failed), len(plan))
	}

	s.MarkCompleted(StageStreaming, c.nowFn())
	c.logger.Info("streaming data saved", "identity", s.Identity().String(), "snapshots", len(plan))
	return report, nil
}

func (c *Collector) collectSnapshot(ctx context.Context, id domain.Identity, step snapshotFetch) SnapshotResult {
	res := SnapshotResult{DataType: step.dataType, Section: domain.SpotifySection(step.dataType)}

	items, n, err := step.fetch(ctx)
	if err != nil {
		res.err = fmt.Errorf("fetch %s: %w", step.dataType, err)
		res.Error = res.err.Error()
		return res
	}
	res.Items = n
	if n == 0 {
		res.Skipped = true
		return res
	}

	if err := c.repo.MergeSection(ctx, id, res.Section, items); err != nil {
		res.err = err
		res.Error = err.Error()
		return res
	}
	res.Saved = true
	return res
}

// CollectStreamingWithCredential builds a provider for cred, caches the
// credential on the session and collects every snapshot.
func (c *Collector) CollectStreamingWithCredential(ctx context.Context, s *Session, cred domain.StreamingCredential) (StreamingReport, error) {
	if c.newProvider == nil {
		return StreamingReport{}, ErrNoProvider
	}
	if err := cred.Check(c.nowFn()); err != nil {
		return StreamingReport{}, err
	}
	s.SetCredential(cred)

	provider, err := c.newProvider(ctx, cred)
	if err != nil {
		return StreamingReport{}, fmt.Errorf("connect streaming provider: %w", err)
	}
	return c.CollectStreaming(ctx, s, provider)
}

// MergeSnapshot stores an already collected payload under the section its raw
// data type resolves to.
func (c *Collector) MergeSnapshot(ctx context.Context, s *Session, dataType string, payload any) (domain.SectionPath, error) {
	path, err := c.repo.MergeDataType(ctx, s.Identity(), dataType, payload)
	if err != nil {
		return path, fmt.Errorf("save %s: %w", dataType, err)
	}
	return path, nil
}
