package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vanshika/tunetraits/internal/domain"
	"github.com/vanshika/tunetraits/internal/scoring"
)

const (
	profileTopTracks  = 10
	profileTopArtists = 10
	profileTopGenres  = 8
)

// TraitProfile is the reading of one trait.
type TraitProfile struct {
	Trait    domain.Trait     `json:"trait"`
	Score    float64          `json:"score"`
	Level    scoring.Level    `json:"level"`
	Coverage scoring.Coverage `json:"coverage"`
}

// GenreCount is how many top artists carry a genre.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// Profile summarises a record the way the results page presents it.
type Profile struct {
	Identity   domain.Identity       `json:"id"`
	CreatedAt  time.Time             `json:"createdAt"`
	Sections   []domain.SectionPath  `json:"sections"`
	Traits     []TraitProfile        `json:"traits,omitempty"`
	TopTracks  []domain.TrackRecord  `json:"topTracks,omitempty"`
	TopArtists []domain.ArtistRecord `json:"topArtists,omitempty"`
	TopGenres  []GenreCount          `json:"topGenres,omitempty"`
	// Unreadable lists sections whose stored shape could not be read.
	Unreadable []domain.SectionPath  `json:"unreadable,omitempty"`
}

// Profile builds the summary for id. found is false when no record exists.
func (c *Collector) Profile(ctx context.Context, id domain.Identity) (Profile, bool, error) {
	rec, found, err := c.repo.GetUnifiedRecord(ctx, id)
	if err != nil || !found {
		return Profile{}, found, err
	}
	p := BuildProfile(rec)
	if len(p.Unreadable) > 0 {
		c.logger.Warn("profile skipped unreadable sections",
			"identity", id.String(),
			"sections", p.Unreadable,
		)
	}
	return p, true, nil
}

// BuildProfile derives the summary from a stored record. Missing sections
// leave their part of the profile empty; sections that do not decode are
// listed in Unreadable and skipped.
func BuildProfile(rec domain.UnifiedUserRecord) Profile {
	sections := rec.SectionNames()
	sort.Slice(sections, func(i, j int) bool { return sections[i] < sections[j] })
	p := Profile{Identity: rec.ID, CreatedAt: rec.CreatedAt, Sections: sections}

	var survey domain.SurveyResult
	ok, err := rec.DecodeSection(domain.SectionBig5, &survey)
	if err != nil {
		p.Unreadable = append(p.Unreadable, domain.SectionBig5)
		// Responses are free-form; the scores alone may still be usable.
		var scoresOnly struct {
			Scores domain.TraitScoreSet `json:"scores"`
		}
		if _, err := rec.DecodeSection(domain.SectionBig5, &scoresOnly); err == nil && len(scoresOnly.Scores) > 0 {
			p.Traits = traitProfiles(domain.SurveyResult{Scores: scoresOnly.Scores})
		}
	} else if ok {
		p.Traits = traitProfiles(survey)
	}

	tracksPath := domain.SpotifySection(domain.DataTopTracksMediumTerm)
	var tracks []domain.TrackRecord
	if _, err := rec.DecodeSection(tracksPath, &tracks); err != nil {
		p.Unreadable = append(p.Unreadable, tracksPath)
	} else {
		p.TopTracks = firstN(tracks, profileTopTracks)
	}

	artistsPath := domain.SpotifySection(domain.DataTopArtistsMedium)
	var artists []domain.ArtistRecord
	if _, err := rec.DecodeSection(artistsPath, &artists); err != nil {
		p.Unreadable = append(p.Unreadable, artistsPath)
	} else {
		p.TopArtists = firstN(artists, profileTopArtists)
		p.TopGenres = topGenres(artists, profileTopGenres)
	}
	return p
}

func traitProfiles(survey domain.SurveyResult) []TraitProfile {
	// Coverage is not stored; recover it from the saved responses.
	coverage := scoring.Evaluate(scoring.AnswersFromResponses(survey.Responses)).Coverage

	out := make([]TraitProfile, 0, len(domain.Traits))
	for _, trait := range domain.Traits {
		score, scored := survey.Scores[trait]
		cov := coverage[trait]
		if len(survey.Responses) == 0 && scored && score > 0 {
			cov = scoring.Coverage{Answered: len(scoring.Key(trait)), Total: len(scoring.Key(trait))}
		}
		out = append(out, TraitProfile{
			Trait:    trait,
			Score:    score,
			Level:    scoring.Interpret(score, cov),
			Coverage: cov,
		})
	}
	return out
}

func topGenres(artists []domain.ArtistRecord, n int) []GenreCount {
	counts := map[string]int{}
	for _, a := range artists {
		for _, g := range a.Genres {
			counts[g]++
		}
	}
	out := make([]GenreCount, 0, len(counts))
	for g, count := range counts {
		out = append(out, GenreCount{Genre: g, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Genre < out[j].Genre
	})
	return firstN(out, n)
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// String renders a one-line summary, used by the CLI.
func (p Profile) String() string {
	return fmt.Sprintf("%s: %d sections, %d traits, %d top tracks, %d genres",
		p.Identity, len(p.Sections), len(p.Traits), len(p.TopTracks), len(p.TopGenres))
}
