package domain

import (
	"errors"
	"fmt"
	"strings"
)

// SectionPath addresses an independently overwritable region of a user record:
// a top-level section name or "spotify.<subtype>".
type SectionPath string

// Top-level sections with a fixed meaning.
const (
	SectionDemographics SectionPath = "demographics"
	SectionBig5         SectionPath = "big5"
	SectionSpotify      SectionPath = "spotify"
)

// Document fields owned by the store, never writable as sections.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
)

// DataType is a raw data-type identifier emitted by a collection stage.
type DataType string

// The closed set of raw data types the lookup table knows about.
const (
	DataSurveyResults       DataType = "survey_results"
	DataTopTracksShortTerm  DataType = "top_tracks_short_term"
	DataTopTracksMediumTerm DataType = "top_tracks_medium_term"
	DataTopTracksLongTerm   DataType = "top_tracks_long_term"
	DataTopArtistsShortTerm DataType = "top_artists_short_term"
	DataTopArtistsMedium    DataType = "top_artists_medium_term"
	DataTopArtistsLongTerm  DataType = "top_artists_long_term"
	DataRecentlyPlayed      DataType = "recently_played"
	DataPlaylists           DataType = "playlists"
	DataFollowing           DataType = "following"
)

// StreamingDataTypes lists every spotify subtype in collection order.
var StreamingDataTypes = []DataType{
	DataTopTracksShortTerm,
	DataTopTracksMediumTerm,
	DataTopTracksLongTerm,
	DataTopArtistsShortTerm,
	DataTopArtistsMedium,
	DataTopArtistsLongTerm,
	DataRecentlyPlayed,
	DataPlaylists,
	DataFollowing,
}

var sectionByDataType = func() map[DataType]SectionPath {
	m := map[DataType]SectionPath{
		DataSurveyResults: SectionBig5,
	}
	for _, dt := range StreamingDataTypes {
		m[dt] = SpotifySection(dt)
	}
	return m
}()

// ErrInvalidSection reports a section path that cannot be written.
var ErrInvalidSection = errors.New("invalid section path")

// ResolveSection maps a raw data type to its canonical section path. Unknown
// data types pass through unchanged as a top-level section name.
func ResolveSection(raw string) SectionPath {
	if path, ok := sectionByDataType[DataType(raw)]; ok {
		return path
	}
	return SectionPath(raw)
}

// SpotifySection builds the section path for a streaming subtype.
func SpotifySection(dt DataType) SectionPath {
	return SectionSpotify + "." + SectionPath(dt)
}

// IsStreamingDataType reports whether name is one of the known spotify subtypes.
func IsStreamingDataType(name string) bool {
	for _, dt := range StreamingDataTypes {
		if string(dt) == name {
			return true
		}
	}
	return false
}

// Segments splits the path on dots.
func (p SectionPath) Segments() []string {
	return strings.Split(string(p), ".")
}

// Top returns the top-level section name.
func (p SectionPath) Top() string {
	return p.Segments()[0]
}

func (p SectionPath) String() string {
	return string(p)
}

// Validate enforces the write rules: at most two levels, the second level only
// under spotify and only for a known subtype, and no store-owned or
// operator-looking names.
func (p SectionPath) Validate() error {
	if p == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidSection)
	}
	segments := p.Segments()
	if len(segments) > 2 {
		return fmt.Errorf("%w: %q has more than two levels", ErrInvalidSection, p)
	}
	for _, seg := range segments {
		if seg == "" || strings.HasPrefix(seg, "$") || strings.ContainsRune(seg, 0) {
			return fmt.Errorf("%w: %q", ErrInvalidSection, p)
		}
	}

	switch segments[0] {
	case FieldID, FieldCreatedAt, "_id":
		return fmt.Errorf("%w: %q is reserved", ErrInvalidSection, segments[0])
	}

	if len(segments) == 1 {
		if p == SectionSpotify {
			return fmt.Errorf("%w: spotify requires a subtype", ErrInvalidSection)
		}
		return nil
	}

	if SectionPath(segments[0]) != SectionSpotify {
		return fmt.Errorf("%w: nested paths are only allowed under spotify", ErrInvalidSection)
	}
	if !IsStreamingDataType(segments[1]) {
		return fmt.Errorf("%w: unknown spotify subtype %q", ErrInvalidSection, segments[1])
	}
	return nil
}
