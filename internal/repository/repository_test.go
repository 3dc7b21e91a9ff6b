package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vanshika/tunetraits/internal/domain"
	"github.com/vanshika/tunetraits/internal/store"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC)

func newTestRepo(client store.Client) *Repository {
	return New(client, nil).WithClock(func() time.Time { return fixedNow })
}

func TestRepository_MergeSectionCreatesRecord(t *testing.T) {
	mem := store.NewMemoryStore()
	repo := newTestRepo(mem)
	ctx := context.Background()

	payload := domain.SurveyResult{
		Scores:    domain.TraitScoreSet{domain.Openness: 4.2},
		Responses: map[string]int{"1": 5},
	}
	if err := repo.MergeSection(ctx, "u1", domain.SectionBig5, payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	rec, found, err := repo.GetUnifiedRecord(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("expected record, found=%v err=%v", found, err)
	}
	if want := fixedNow.Truncate(time.Millisecond); !rec.CreatedAt.Equal(want) {
		t.Errorf("created_at: want %v got %v", want, rec.CreatedAt)
	}

	var got domain.SurveyResult
	if ok, err := rec.DecodeSection(domain.SectionBig5, &got); !ok || err != nil {
		t.Fatalf("decode big5: ok=%v err=%v", ok, err)
	}
	if got.Scores[domain.Openness] != 4.2 || got.Responses["1"] != 5 {
		t.Errorf("unexpected big5 section %+v", got)
	}
}

// Scenario C: sections written in any order end up side by side and
// created_at keeps the first write's time.
func TestRepository_SectionsAccumulate(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	first := fixedNow
	clock := first
	repo := New(mem, nil).WithClock(func() time.Time { return clock })

	if err := repo.MergeSection(ctx, "u1", domain.SectionDemographics, map[string]any{"age_range": "18-26"}); err != nil {
		t.Fatal(err)
	}
	clock = first.Add(time.Hour)
	if err := repo.MergeSection(ctx, "u1", domain.SectionBig5, map[string]any{"scores": map[string]any{}}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.MergeDataType(ctx, "u1", "playlists", []any{map[string]any{"name": "Focus"}}); err != nil {
		t.Fatal(err)
	}

	rec, found, err := repo.GetUnifiedRecord(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("expected record, found=%v err=%v", found, err)
	}
	for _, path := range []domain.SectionPath{domain.SectionDemographics, domain.SectionBig5, "spotify.playlists"} {
		if _, ok := rec.Section(path); !ok {
			t.Errorf("expected section %s", path)
		}
	}
	if !rec.CreatedAt.Equal(first.Truncate(time.Millisecond)) {
		t.Errorf("created_at moved: %v", rec.CreatedAt)
	}
	if mem.Len() != 1 {
		t.Errorf("expected a single record, got %d", mem.Len())
	}
}

// Scenario D: resubmitting a section replaces it wholesale.
func TestRepository_ResubmissionReplacesSection(t *testing.T) {
	repo := newTestRepo(store.NewMemoryStore())
	ctx := context.Background()

	if err := repo.MergeSection(ctx, "u1", domain.SectionDemographics, map[string]any{"age_range": "18-26", "gender": "Female"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.MergeSection(ctx, "u1", domain.SectionDemographics, map[string]any{"age_range": "27-36"}); err != nil {
		t.Fatal(err)
	}

	rec, _, err := repo.GetUnifiedRecord(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	var demo map[string]any
	if _, err := rec.DecodeSection(domain.SectionDemographics, &demo); err != nil {
		t.Fatal(err)
	}
	if len(demo) != 1 || demo["age_range"] != "27-36" {
		t.Errorf("expected replaced section, got %v", demo)
	}
}

func TestRepository_MergeIsIdempotent(t *testing.T) {
	mem := store.NewMemoryStore()
	repo := newTestRepo(mem)
	ctx := context.Background()
	payload := map[string]any{"device": "Smartphone"}

	for i := 0; i < 3; i++ {
		if err := repo.MergeSection(ctx, "u1", domain.SectionDemographics, payload); err != nil {
			t.Fatal(err)
		}
	}
	rec, _, _ := repo.GetUnifiedRecord(ctx, "u1")
	if len(rec.Sections) != 1 {
		t.Errorf("expected one section, got %v", rec.SectionNames())
	}
}

func TestRepository_GetMissingRecord(t *testing.T) {
	repo := newTestRepo(store.NewMemoryStore())

	_, found, err := repo.GetUnifiedRecord(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if found {
		t.Fatal("expected found=false")
	}
}

func TestRepository_IdentityIsStoredCanonical(t *testing.T) {
	mem := store.NewMemoryStore()
	repo := newTestRepo(mem)
	ctx := context.Background()

	if err := repo.MergeSection(ctx, " u1 ", domain.SectionBig5, "x"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	calls := mem.Upserts()
	if len(calls) != 1 || calls[0].ID != "u1" {
		t.Fatalf("expected one upsert keyed u1, got %v", calls)
	}

	rec, found, err := repo.GetUnifiedRecord(ctx, "u1 ")
	if err != nil || !found {
		t.Fatalf("expected record, found=%v err=%v", found, err)
	}
	if rec.ID != "u1" {
		t.Errorf("expected id u1, got %q", rec.ID)
	}
}

func TestRepository_InvalidInputNeverReachesStore(t *testing.T) {
	mem := store.NewMemoryStore()
	repo := newTestRepo(mem)
	ctx := context.Background()

	cases := []struct {
		name string
		id   domain.Identity
		path domain.SectionPath
		want error
	}{
		{"empty identity", "", domain.SectionBig5, domain.ErrInvalidIdentity},
		{"reserved id", "u1", "id", domain.ErrInvalidSection},
		{"reserved created_at", "u1", "created_at", domain.ErrInvalidSection},
		{"unknown spotify subtype", "u1", "spotify.podcasts", domain.ErrInvalidSection},
		{"bare spotify", "u1", "spotify", domain.ErrInvalidSection},
		{"too deep", "u1", "spotify.playlists.0", domain.ErrInvalidSection},
		{"operator", "u1", "$set", domain.ErrInvalidSection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.MergeSection(ctx, tc.id, tc.path, "x")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if len(mem.Upserts()) != 0 {
		t.Fatalf("expected no store calls, got %v", mem.Upserts())
	}
}

func TestRepository_UnknownDataTypePassesThrough(t *testing.T) {
	repo := newTestRepo(store.NewMemoryStore())
	ctx := context.Background()

	path, err := repo.MergeDataType(ctx, "u1", "listening_diary", map[string]any{"note": "rainy day"})
	if err != nil {
		t.Fatal(err)
	}
	if path != "listening_diary" {
		t.Fatalf("expected passthrough section, got %s", path)
	}
	rec, _, _ := repo.GetUnifiedRecord(ctx, "u1")
	if _, ok := rec.Section("listening_diary"); !ok {
		t.Fatal("expected passthrough section stored")
	}
}

func TestRepository_RetryExhaustionReportsFailure(t *testing.T) {
	down := store.Unavailable(errors.New("no reachable servers"))
	mem := store.NewMemoryStore().FailNext(down, down, down)
	repo := newTestRepo(store.WithRetry(mem, store.RetryPolicy{Attempts: 3}, nil))

	err := repo.MergeSection(context.Background(), "u1", domain.SectionBig5, map[string]any{})
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if mem.Len() != 0 {
		t.Fatal("expected no partial write")
	}
}

func TestRepository_RetryRecovers(t *testing.T) {
	down := store.Unavailable(errors.New("connection reset"))
	mem := store.NewMemoryStore().FailNext(down)
	repo := newTestRepo(store.WithRetry(mem, store.RetryPolicy{Attempts: 3}, nil))

	if err := repo.MergeSection(context.Background(), "u1", domain.SectionBig5, map[string]any{}); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if mem.Len() != 1 {
		t.Fatal("expected record written")
	}
}
