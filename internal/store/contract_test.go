package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/tunetraits/internal/domain"
)

// runContractTests exercises the behaviour every backend must share.
func runContractTests(t *testing.T, newClient func(t *testing.T) Client) {
	t.Run("not found", func(t *testing.T) {
		c := newClient(t)
		_, err := c.FindRecord(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("sections are isolated and created_at is insert only", func(t *testing.T) {
		c := newClient(t)
		ctx := context.Background()
		first := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		later := first.Add(time.Hour)

		require.NoError(t, c.UpsertSection(ctx, "u1", domain.SectionDemographics, map[string]any{"age_range": "18-26"}, first))
		require.NoError(t, c.UpsertSection(ctx, "u1", domain.SectionBig5, map[string]any{"scores": map[string]any{"Openness": 4.5}}, later))
		require.NoError(t, c.UpsertSection(ctx, "u1", "spotify.playlists", []any{map[string]any{"name": "Focus"}}, later))
		require.NoError(t, c.UpsertSection(ctx, "u1", "spotify.following", []any{}, later))

		rec, err := c.FindRecord(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, domain.Identity("u1"), rec.ID)
		assert.True(t, first.Equal(rec.CreatedAt), "created_at %v", rec.CreatedAt)

		demo, _ := rec.Section(domain.SectionDemographics)
		assert.Equal(t, map[string]any{"age_range": "18-26"}, demo)
		big5, _ := rec.Section(domain.SectionBig5)
		assert.Equal(t, map[string]any{"scores": map[string]any{"Openness": 4.5}}, big5)
		playlists, _ := rec.Section("spotify.playlists")
		assert.Equal(t, []any{map[string]any{"name": "Focus"}}, playlists)
		following, ok := rec.Section("spotify.following")
		assert.True(t, ok)
		assert.Equal(t, []any{}, following)
	})

	t.Run("same section is replaced not merged", func(t *testing.T) {
		c := newClient(t)
		ctx := context.Background()
		now := time.Now().UTC()

		require.NoError(t, c.UpsertSection(ctx, "u1", "spotify.top_tracks_short_term", []any{"a", "b", "c"}, now))
		require.NoError(t, c.UpsertSection(ctx, "u1", "spotify.top_tracks_short_term", []any{"d"}, now))

		rec, err := c.FindRecord(ctx, "u1")
		require.NoError(t, err)
		got, _ := rec.Section("spotify.top_tracks_short_term")
		assert.Equal(t, []any{"d"}, got)
	})

	t.Run("records are keyed by identity", func(t *testing.T) {
		c := newClient(t)
		ctx := context.Background()
		now := time.Now().UTC()

		require.NoError(t, c.UpsertSection(ctx, "u1", domain.SectionBig5, "one", now))
		require.NoError(t, c.UpsertSection(ctx, "u2", domain.SectionBig5, "two", now))

		r1, err := c.FindRecord(ctx, "u1")
		require.NoError(t, err)
		r2, err := c.FindRecord(ctx, "u2")
		require.NoError(t, err)
		v1, _ := r1.Section(domain.SectionBig5)
		v2, _ := r2.Section(domain.SectionBig5)
		assert.Equal(t, "one", v1)
		assert.Equal(t, "two", v2)
	})

	t.Run("concurrent writes to different sections are all kept", func(t *testing.T) {
		c := WithRetry(newClient(t), RetryPolicy{Attempts: DefaultRetryPolicy().Attempts}, nil)
		ctx := context.Background()
		now := time.Now().UTC()

		var wg sync.WaitGroup
		for _, dt := range domain.StreamingDataTypes {
			wg.Add(1)
			go func(dt domain.DataType) {
				defer wg.Done()
				assert.NoError(t, c.UpsertSection(ctx, "u1", domain.SpotifySection(dt), string(dt), now))
			}(dt)
		}
		wg.Wait()

		rec, err := c.FindRecord(ctx, "u1")
		require.NoError(t, err)
		for _, dt := range domain.StreamingDataTypes {
			got, ok := rec.Section(domain.SpotifySection(dt))
			assert.True(t, ok, dt)
			assert.Equal(t, string(dt), got)
		}
	})

	t.Run("stored values do not alias the payload", func(t *testing.T) {
		c := newClient(t)
		ctx := context.Background()
		payload := map[string]any{"k": "v"}

		require.NoError(t, c.UpsertSection(ctx, "u1", domain.SectionDemographics, payload, time.Now()))
		payload["k"] = "changed"

		rec, err := c.FindRecord(ctx, "u1")
		require.NoError(t, err)
		got, _ := rec.Section(domain.SectionDemographics)
		assert.Equal(t, map[string]any{"k": "v"}, got)
	})
}

func TestMemoryStoreContract(t *testing.T) {
	runContractTests(t, func(t *testing.T) Client {
		return NewMemoryStore()
	})
}

func TestBadgerStoreContract(t *testing.T) {
	runContractTests(t, func(t *testing.T) Client {
		c, err := NewBadgerClient(Options{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close(context.Background()) })
		return c
	})
}

func TestBadgerConcurrentSectionsWithoutRetry(t *testing.T) {
	c, err := NewBadgerClient(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	ctx := context.Background()
	now := time.Now().UTC()
	for round := 0; round < 5; round++ {
		id := domain.Identity(fmt.Sprintf("u%d", round))
		var wg sync.WaitGroup
		for _, dt := range domain.StreamingDataTypes {
			dt := dt
			for j := 0; j < 3; j++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, c.UpsertSection(ctx, id, domain.SpotifySection(dt), string(dt), now))
				}()
			}
		}
		wg.Wait()

		rec, err := c.FindRecord(ctx, id)
		require.NoError(t, err)
		for _, dt := range domain.StreamingDataTypes {
			got, ok := rec.Section(domain.SpotifySection(dt))
			assert.True(t, ok, dt)
			assert.Equal(t, string(dt), got)
		}
	}
}

func TestMemoryStoreInjectedFailures(t *testing.T) {
	m := NewMemoryStore().FailNext(Unavailable(fmt.Errorf("dial tcp: refused")))

	err := m.UpsertSection(context.Background(), "u1", domain.SectionBig5, "x", time.Now())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Zero(t, m.Len())

	require.NoError(t, m.UpsertSection(context.Background(), "u1", domain.SectionBig5, "x", time.Now()))
	assert.Equal(t, []UpsertCall{{ID: "u1", Path: domain.SectionBig5}}, m.Upserts())
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "cassandra"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(context.Background(), Options{Backend: BackendMongo})
	assert.ErrorIs(t, err, ErrMissingURI)

	c, err := Open(context.Background(), Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, c)
}
