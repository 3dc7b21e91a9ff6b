package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vanshika/tunetraits/internal/domain"
	"github.com/vanshika/tunetraits/internal/service"
)

// Dataset contains the generated respondents.
type Dataset struct {
	Respondents []service.RespondentInput `json:"respondents" yaml:"respondents"`
}

// Generator produces synthetic respondent sessions shaped like real submissions.
type Generator struct {
	cfg     Config
	rand    *rand.Rand
	catalog catalog
	now     time.Time
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.NumRespondents <= 0 {
		cfg.NumRespondents = def.NumRespondents
	}
	if cfg.PartialChance < 0 {
		cfg.PartialChance = 0
	}
	if cfg.SnapshotChance < 0 {
		cfg.SnapshotChance = 0
	}
	if cfg.SnapshotSize <= 0 {
		cfg.SnapshotSize = def.SnapshotSize
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:     cfg,
		rand:    rand.New(rand.NewSource(cfg.Seed)),
		catalog: defaultCatalog(),
		now:     time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// WithReferenceTime sets the instant snapshots and play times are generated around.
func (g *Generator) WithReferenceTime(t time.Time) *Generator {
	g.now = t.UTC()
	return g
}

// Generate synthesises respondents. It respects context cancellation. The same
// seed and reference time always yield the same dataset.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	respondents := make([]service.RespondentInput, g.cfg.NumRespondents)

	for i := range respondents {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		id, err := uuid.NewRandomFromReader(g.rand)
		if err != nil {
			return Dataset{}, fmt.Errorf("generate identity: %w", err)
		}
		in := service.RespondentInput{Identity: domain.Identity(id.String())}

		if !g.chance(g.cfg.PartialChance) {
			in.Demographics = g.demographics()
		}
		if !g.chance(g.cfg.PartialChance) {
			in.Answers = g.answers()
		}
		if g.chance(g.cfg.SnapshotChance) {
			snapshots, err := g.snapshots()
			if err != nil {
				return Dataset{}, err
			}
			in.Snapshots = snapshots
		}
		respondents[i] = in
	}

	return Dataset{Respondents: respondents}, nil
}

func (g *Generator) chance(p float64) bool {
	return g.rand.Float64() < p
}

func (g *Generator) pick(options []string) string {
	return options[g.rand.Intn(len(options))]
}

func (g *Generator) demographics() map[string]any {
	fields := make(map[string]any, len(domain.DemographicOptions)+len(domain.DemographicMultiOptions)+1)
	for _, key := range sortedKeys(domain.DemographicOptions) {
		fields[key] = g.pick(domain.DemographicOptions[key])
	}
	for _, key := range sortedKeys(domain.DemographicMultiOptions) {
		var chosen []string
		for _, opt := range domain.DemographicMultiOptions[key] {
			if g.chance(0.3) {
				chosen = append(chosen, opt)
			}
		}
		if chosen == nil {
			chosen = []string{}
		}
		fields[key] = chosen
	}
	fields["daily_listening_hours"] = g.rand.Intn(domain.MaxListeningHours + 1)
	return fields
}

// answers draws a latent level per trait and scatters item answers around it,
// so generated scores spread out the way real ones do.
func (g *Generator) answers() domain.Answers {
	answers := make(domain.Answers, domain.QuestionCount)
	for q := 1; q <= domain.QuestionCount; q++ {
		latent := 1 + g.rand.Intn(domain.LikertMax)
		v := latent + g.rand.Intn(3) - 1
		if v < domain.LikertMin {
			v = domain.LikertMin
		}
		if v > domain.LikertMax {
			v = domain.LikertMax
		}
		answers[q] = v
	}
	return answers
}

func (g *Generator) snapshots() (map[string]any, error) {
	snapshotDate := g.now.Truncate(time.Second)
	raw := make(map[string]any, len(domain.StreamingDataTypes))

	for _, r := range domain.TimeRanges {
		raw[string(domain.TopTracksDataType(r))] = g.tracks(r, snapshotDate)
		raw[string(domain.TopArtistsDataType(r))] = g.artists(r, snapshotDate)
	}
	raw[string(domain.DataRecentlyPlayed)] = g.played(snapshotDate)
	raw[string(domain.DataPlaylists)] = g.playlists(snapshotDate)
	raw[string(domain.DataFollowing)] = g.artists("", snapshotDate)

	// Store plain JSON values so the dataset reads the same from JSON and YAML.
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		normalized, err := domain.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("normalize %s: %w", k, err)
		}
		out[k] = normalized
	}
	return out, nil
}

func (g *Generator) tracks(r domain.TimeRange, snapshot time.Time) []domain.TrackRecord {
	out := make([]domain.TrackRecord, g.cfg.SnapshotSize)
	for i := range out {
		artist := g.pick(g.catalog.artists)
		out[i] = domain.TrackRecord{
			Rank:         i + 1,
			Track:        g.trackName(),
			Artists:      artist,
			Album:        g.pick(g.catalog.words) + " " + g.pick(g.catalog.albumSuffix),
			TrackID:      g.spotifyID(),
			TimeRange:    r,
			SnapshotDate: snapshot,
		}
	}
	return out
}

func (g *Generator) artists(r domain.TimeRange, snapshot time.Time) []domain.ArtistRecord {
	out := make([]domain.ArtistRecord, g.cfg.SnapshotSize)
	for i := range out {
		genres := []string{g.pick(g.catalog.genres)}
		if g.chance(0.6) {
			if second := g.pick(g.catalog.genres); second != genres[0] {
				genres = append(genres, second)
			}
		}
		out[i] = domain.ArtistRecord{
			Rank:         i + 1,
			Artist:       g.pick(g.catalog.artists),
			Genres:       genres,
			Popularity:   g.rand.Intn(101),
			Followers:    g.rand.Intn(5_000_000),
			ArtistID:     g.spotifyID(),
			TimeRange:    r,
			SnapshotDate: snapshot,
		}
	}
	return out
}

func (g *Generator) played(snapshot time.Time) []domain.PlayedRecord {
	out := make([]domain.PlayedRecord, g.cfg.SnapshotSize)
	at := snapshot
	for i := range out {
		at = at.Add(-time.Duration(2+g.rand.Intn(40)) * time.Minute)
		out[i] = domain.PlayedRecord{
			TrackName:     g.trackName(),
			TrackID:       g.spotifyID(),
			ArtistName:    g.pick(g.catalog.artists),
			ArtistID:      g.spotifyID(),
			PlayedAt:      at,
			PlayedAtLocal: at.Format("2006-01-02 15:04:05"),
			SnapshotDate:  snapshot,
		}
	}
	return out
}

func (g *Generator) playlists(snapshot time.Time) []domain.PlaylistRecord {
	n := 1 + g.rand.Intn(g.cfg.SnapshotSize)
	out := make([]domain.PlaylistRecord, n)
	for i := range out {
		owner := "You"
		if g.chance(0.4) {
			owner = "Spotify"
		}
		out[i] = domain.PlaylistRecord{
			Rank:          i + 1,
			Name:          g.pick(g.catalog.playlistMoods) + " " + g.pick(g.catalog.words),
			Tracks:        5 + g.rand.Intn(200),
			Owner:         owner,
			Public:        g.chance(0.5),
			Collaborative: g.chance(0.1),
			PlaylistID:    g.spotifyID(),
			SnapshotDate:  snapshot,
		}
	}
	return out
}

func (g *Generator) trackName() string {
	return g.pick(g.catalog.words) + " " + g.pick(g.catalog.words)
}

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// spotifyID mimics the 22 character base62 ids of the Web API.
func (g *Generator) spotifyID() string {
	var b strings.Builder
	b.Grow(22)
	for i := 0; i < 22; i++ {
		b.WriteByte(idAlphabet[g.rand.Intn(len(idAlphabet))])
	}
	return b.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type catalog struct {
	artists       []string
	genres        []string
	words         []string
	albumSuffix   []string
	playlistMoods []string
}

func defaultCatalog() catalog {
	return catalog{
		artists:       []string{"Aurora Lane", "The Velvet Static", "Nico Marr", "Lumen Drive", "Satellite Choir", "Mara Okafor", "Low Tide Club", "Fenna Rose", "Kaito Sun", "Glass Harbor", "Ruben Ortiz", "Echo Park Kids"},
		genres:        []string{"indie pop", "art pop", "trip hop", "electronica", "italian indie", "neo soul", "dream pop", "lo-fi beats", "alt rock", "jazz rap", "ambient", "synthwave"},
		words:         []string{"Midnight", "Paper", "Golden", "Static", "River", "Neon", "Quiet", "Ocean", "Fever", "Satellite", "Velvet", "Echo", "Summer", "Hollow", "Signal"},
		albumSuffix:   []string{"Sessions", "Tapes", "Deluxe", "EP", "Live", "Diaries"},
		playlistMoods: []string{"Focus", "Chill", "Workout", "Late Night", "Road Trip", "Rainy Day", "Study"},
	}
}
