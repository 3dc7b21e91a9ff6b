package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vanshika/tunetraits/internal/domain"
	"github.com/vanshika/tunetraits/internal/repository"
	"github.com/vanshika/tunetraits/internal/scoring"
	"github.com/vanshika/tunetraits/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu       sync.Mutex
	calls    map[domain.DataType]int
	failOn   map[domain.DataType]error
	empty    map[domain.DataType]bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:  map[domain.DataType]int{},
		failOn: map[domain.DataType]error{},
		empty:  map[domain.DataType]bool{},
	}
}

func (f *fakeProvider) enter(dt domain.DataType) error {
	n := f.inFlight.Add(1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	f.inFlight.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[dt]++
	return f.failOn[dt]
}

func (f *fakeProvider) isEmpty(dt domain.DataType) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.empty[dt]
}

func (f *fakeProvider) TopTracks(_ context.Context, r domain.TimeRange) ([]domain.TrackRecord, error) {
	dt := domain.TopTracksDataType(r)
	if err := f.enter(dt); err != nil {
		return nil, err
	}
	if f.isEmpty(dt) {
		return nil, nil
	}
	return []domain.TrackRecord{
		{Rank: 1, Track: "Hyperballad", Artists: "Björk", TrackID: "t1", TimeRange: r},
		{Rank: 2, Track: "Teardrop", Artists: "Massive Attack", TrackID: "t2", TimeRange: r},
	}, nil
}

func (f *fakeProvider) TopArtists(_ context.Context, r domain.TimeRange) ([]domain.ArtistRecord, error) {
	dt := domain.TopArtistsDataType(r)
	if err := f.enter(dt); err != nil {
		return nil, err
	}
	if f.isEmpty(dt) {
		return nil, nil
	}
	return []domain.ArtistRecord{
		{Rank: 1, Artist: "Björk", Genres: []string{"art pop", "electronica"}, ArtistID: "a1", TimeRange: r},
		{Rank: 2, Artist: "Massive Attack", Genres: []string{"trip hop", "electronica"}, ArtistID: "a2", TimeRange: r},
	}, nil
}

func (f *fakeProvider) RecentlyPlayed(context.Context) ([]domain.PlayedRecord, error) {
	if err := f.enter(domain.DataRecentlyPlayed); err != nil {
		return nil, err
	}
	if f.isEmpty(domain.DataRecentlyPlayed) {
		return nil, nil
	}
	return []domain.PlayedRecord{{TrackName: "Windowlicker", TrackID: "t9", PlayedAt: testNow}}, nil
}

func (f *fakeProvider) Playlists(context.Context) ([]domain.PlaylistRecord, error) {
	if err := f.enter(domain.DataPlaylists); err != nil {
		return nil, err
	}
	if f.isEmpty(domain.DataPlaylists) {
		return nil, nil
	}
	return []domain.PlaylistRecord{{Rank: 1, Name: "Focus", Owner: "You", Tracks: 42}}, nil
}

func (f *fakeProvider) FollowedArtists(context.Context) ([]domain.ArtistRecord, error) {
	if err := f.enter(domain.DataFollowing); err != nil {
		return nil, err
	}
	if f.isEmpty(domain.DataFollowing) {
		return nil, nil
	}
	return []domain.ArtistRecord{{Rank: 1, Artist: "Aphex Twin", ArtistID: "a9", Genres: []string{}}}, nil
}

func newTestCollector(client store.Client) (*Collector, *repository.Repository) {
	repo := repository.New(client, nil).WithClock(func() time.Time { return testNow })
	return NewCollector(repo, nil).WithClock(func() time.Time { return testNow }), repo
}

func fullAnswers(v int) domain.Answers {
	answers := domain.Answers{}
	for q := 1; q <= domain.QuestionCount; q++ {
		answers[q] = v
	}
	return answers
}

func TestSubmitSurvey(t *testing.T) {
	c, repo := newTestCollector(store.NewMemoryStore())
	s := NewSession("u1", testNow)

	res, err := c.SubmitSurvey(context.Background(), s, fullAnswers(4))
	require.NoError(t, err)
	// Reverse-coded items turn 4 into 2.
	assert.InDelta(t, (5*4.0+3*2.0)/8, res.Scores[domain.Extraversion], 1e-9)
	assert.True(t, s.Completed(StageSurvey))

	rec, found, err := repo.GetUnifiedRecord(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, found)

	var stored domain.SurveyResult
	ok, err := rec.DecodeSection(domain.SectionBig5, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, stored.Responses, domain.QuestionCount)
	assert.Equal(t, res.Scores, stored.Scores)
	assert.Equal(t, fullAnswers(4), scoring.AnswersFromResponses(stored.Responses))
}

func TestSubmitSurveyRejectsBadInput(t *testing.T) {
	mem := store.NewMemoryStore()
	c, _ := newTestCollector(mem)
	s := NewSession("u1", testNow)

	partial := fullAnswers(3)
	delete(partial, 17)
	_, err := c.SubmitSurvey(context.Background(), s, partial)
	assert.ErrorIs(t, err, domain.ErrIncompleteSurvey)

	bad := fullAnswers(3)
	bad[5] = 6
	_, err = c.SubmitSurvey(context.Background(), s, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidAnswer)

	assert.Empty(t, mem.Upserts())
	assert.False(t, s.Completed(StageSurvey))
}

func TestSubmitSurveyReportsStoreFailure(t *testing.T) {
	mem := store.NewMemoryStore().FailNext(errors.New("write concern"))
	c, _ := newTestCollector(mem)
	s := NewSession("u1", testNow)

	res, err := c.SubmitSurvey(context.Background(), s, fullAnswers(3))
	require.Error(t, err)
	assert.Equal(t, 3.0, res.Scores[domain.Openness], "scores are still returned")
	assert.False(t, s.Completed(StageSurvey))
}

func TestSubmitDemographics(t *testing.T) {
	c, repo := newTestCollector(store.NewMemoryStore())
	s := NewSession("u1", testNow)

	fields := map[string]any{"age_range": "18-26", "listening_moments": []string{"Studying"}}
	require.NoError(t, c.SubmitDemographics(context.Background(), s, fields))
	assert.NotContains(t, fields, submissionTimestampKey, "caller map untouched")

	rec, _, err := repo.GetUnifiedRecord(context.Background(), "u1")
	require.NoError(t, err)
	demo, _ := rec.Section(domain.SectionDemographics)
	assert.Equal(t, map[string]any{
		"age_range":            "18-26",
		"listening_moments":    []any{"Studying"},
		submissionTimestampKey: "2025-04-02T10:00:00Z",
	}, demo)

	err = c.SubmitDemographics(context.Background(), s, map[string]any{"$where": 1})
	assert.ErrorIs(t, err, domain.ErrInvalidField)
}

func TestCollectStreaming(t *testing.T) {
	mem := store.NewMemoryStore()
	c, repo := newTestCollector(mem)
	c.WithConcurrency(2)
	s := NewSession("u1", testNow)
	p := newFakeProvider()

	report, err := c.CollectStreaming(context.Background(), s, p)
	require.NoError(t, err)
	require.Len(t, report.Results, len(domain.StreamingDataTypes))
	for i, res := range report.Results {
		assert.Equal(t, domain.StreamingDataTypes[i], res.DataType)
		assert.True(t, res.Saved, res.DataType)
	}
	assert.LessOrEqual(t, p.peak.Load(), int32(2))
	assert.True(t, s.Completed(StageStreaming))

	rec, _, err := repo.GetUnifiedRecord(context.Background(), "u1")
	require.NoError(t, err)
	for _, dt := range domain.StreamingDataTypes {
		_, ok := rec.Section(domain.SpotifySection(dt))
		assert.True(t, ok, dt)
	}
}

func TestCollectStreamingIsolatesFailures(t *testing.T) {
	mem := store.NewMemoryStore()
	c, repo := newTestCollector(mem)
	s := NewSession("u1", testNow)
	p := newFakeProvider()
	p.failOn[domain.DataPlaylists] = errors.New("403 insufficient scope")
	p.empty[domain.DataRecentlyPlayed] = true

	report, err := c.CollectStreaming(context.Background(), s, p)
	require.ErrorIs(t, err, ErrPartialCollection)
	assert.False(t, s.Completed(StageStreaming))

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, domain.DataPlaylists, failed[0].DataType)
	assert.Contains(t, failed[0].Error, "insufficient scope")

	saved, skipped := 0, 0
	for _, res := range report.Results {
		if res.Saved {
			saved++
		}
		if res.Skipped {
			skipped++
		}
	}
	assert.Equal(t, 7, saved)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, p.calls[domain.DataPlaylists], "provider calls are not retried")

	rec, _, _ := repo.GetUnifiedRecord(context.Background(), "u1")
	_, ok := rec.Section(domain.SpotifySection(domain.DataRecentlyPlayed))
	assert.False(t, ok, "empty snapshot is not written")
	_, ok = rec.Section(domain.SpotifySection(domain.DataFollowing))
	assert.True(t, ok)
}

func TestCollectStreamingWithCredential(t *testing.T) {
	c, _ := newTestCollector(store.NewMemoryStore())
	s := NewSession("u1", testNow)

	_, err := c.CollectStreamingWithCredential(context.Background(), s, domain.StreamingCredential{AccessToken: "tok"})
	assert.ErrorIs(t, err, ErrNoProvider)

	built := 0
	c.WithProviderFactory(func(context.Context, domain.StreamingCredential) (StreamingProvider, error) {
		built++
		return newFakeProvider(), nil
	})

	expired := domain.StreamingCredential{AccessToken: "tok", ExpiresAt: testNow.Add(-time.Second)}
	_, err = c.CollectStreamingWithCredential(context.Background(), s, expired)
	assert.ErrorIs(t, err, domain.ErrCredentialExpired)
	assert.Zero(t, built)

	valid := domain.StreamingCredential{AccessToken: "tok", ExpiresAt: testNow.Add(time.Hour)}
	_, err = c.CollectStreamingWithCredential(context.Background(), s, valid)
	require.NoError(t, err)
	assert.Equal(t, 1, built)
	cached, ok := s.Credential()
	assert.True(t, ok)
	assert.Equal(t, valid, cached)
}

// Scenario C: stages in any order accumulate into one record.
func TestStagesInAnyOrder(t *testing.T) {
	c, repo := newTestCollector(store.NewMemoryStore())
	s := NewSession("u1", testNow)
	ctx := context.Background()

	_, err := c.CollectStreaming(ctx, s, newFakeProvider())
	require.NoError(t, err)
	_, err = c.SubmitSurvey(ctx, s, fullAnswers(5))
	require.NoError(t, err)
	require.NoError(t, c.SubmitDemographics(ctx, s, map[string]any{"gender": "Female"}))

	rec, _, err := repo.GetUnifiedRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rec.SectionNames(), 2+len(domain.StreamingDataTypes))
	assert.Equal(t, []Stage{StageDemographics, StageStreaming, StageSurvey}, s.CompletedStages())
}

func TestMergeSnapshot(t *testing.T) {
	c, _ := newTestCollector(store.NewMemoryStore())
	s := NewSession("u1", testNow)

	path, err := c.MergeSnapshot(context.Background(), s, "following", []any{})
	require.NoError(t, err)
	assert.Equal(t, domain.SectionPath("spotify.following"), path)

	_, err = c.MergeSnapshot(context.Background(), s, "created_at", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidSection)
}
