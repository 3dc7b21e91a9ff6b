package domain

import (
	"errors"
	"time"
)

// TimeRange is the affinity window used by the top tracks and top artists endpoints.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// TimeRanges lists the three affinity windows.
var TimeRanges = []TimeRange{ShortTerm, MediumTerm, LongTerm}

// TopTracksDataType returns the raw data type for top tracks over r.
func TopTracksDataType(r TimeRange) DataType {
	return DataType("top_tracks_" + string(r))
}

// TopArtistsDataType returns the raw data type for top artists over r.
func TopArtistsDataType(r TimeRange) DataType {
	return DataType("top_artists_" + string(r))
}

// TrackRecord is one flattened top-track entry.
type TrackRecord struct {
	Rank         int       `json:"rank"`
	Track        string    `json:"track"`
	Artists      string    `json:"artists"`
	Album        string    `json:"album"`
	PreviewURL   string    `json:"preview_url,omitempty"`
	SpotifyURL   string    `json:"spotify_url,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	TrackID      string    `json:"track_id"`
	TimeRange    TimeRange `json:"time_range"`
	SnapshotDate time.Time `json:"snapshot_date"`
}

// ArtistRecord is one flattened top or followed artist entry.
type ArtistRecord struct {
	Rank         int       `json:"rank"`
	Artist       string    `json:"artist"`
	Genres       []string  `json:"genres"`
	Popularity   int       `json:"popularity"`
	Followers    int       `json:"followers"`
	SpotifyURL   string    `json:"spotify_url,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	ArtistID     string    `json:"artist_id"`
	TimeRange    TimeRange `json:"time_range,omitempty"`
	SnapshotDate time.Time `json:"snapshot_date"`
}

// PlaylistRecord is one flattened playlist entry.
type PlaylistRecord struct {
	Rank          int       `json:"rank"`
	Name          string    `json:"name"`
	Tracks        int       `json:"tracks"`
	Owner         string    `json:"owner"`
	Public        bool      `json:"public"`
	Collaborative bool      `json:"collaborative"`
	SpotifyURL    string    `json:"spotify_url,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	PlaylistID    string    `json:"playlist_id"`
	SnapshotDate  time.Time `json:"snapshot_date"`
}

// PlayedRecord is one recently played track.
type PlayedRecord struct {
	TrackName     string    `json:"track_name"`
	TrackID       string    `json:"track_id"`
	ArtistName    string    `json:"artist_name"`
	ArtistID      string    `json:"artist_id"`
	PlayedAt      time.Time `json:"played_at"`
	PlayedAtLocal string    `json:"played_at_local"`
	ExternalURL   string    `json:"external_url,omitempty"`
	SnapshotDate  time.Time `json:"snapshot_date"`
}

// StreamingCredential is the opaque access token for the streaming provider.
type StreamingCredential struct {
	AccessToken string
	ExpiresAt   time.Time
}

var (
	// ErrMissingCredential is returned when no access token was supplied.
	ErrMissingCredential = errors.New("streaming credential is required")
	// ErrCredentialExpired is returned when the access token is past its expiry.
	ErrCredentialExpired = errors.New("streaming credential expired")
)

// Check reports whether the credential can be used at now.
func (c StreamingCredential) Check(now time.Time) error {
	if c.AccessToken == "" {
		return ErrMissingCredential
	}
	if !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt) {
		return ErrCredentialExpired
	}
	return nil
}
