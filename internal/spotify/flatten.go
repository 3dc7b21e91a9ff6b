package spotify

import (
	"strings"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/vanshika/tunetraits/internal/domain"
)

const (
	ownerSelf       = "You"
	localTimeLayout = "2006-01-02 15:04:05"
)

func flattenTracks(tracks []spotifyapi.FullTrack, r domain.TimeRange, snapshot time.Time) []domain.TrackRecord {
	out := make([]domain.TrackRecord, 0, len(tracks))
	for i, t := range tracks {
		out = append(out, domain.TrackRecord{
			Rank:         i + 1,
			Track:        t.Name,
			Artists:      joinArtists(t.Artists),
			Album:        t.Album.Name,
			PreviewURL:   t.PreviewURL,
			SpotifyURL:   t.ExternalURLs["spotify"],
			ImageURL:     firstImage(t.Album.Images),
			TrackID:      string(t.ID),
			TimeRange:    r,
			SnapshotDate: snapshot,
		})
	}
	return out
}

func flattenArtists(artists []spotifyapi.FullArtist, r domain.TimeRange, snapshot time.Time) []domain.ArtistRecord {
	out := make([]domain.ArtistRecord, 0, len(artists))
	for i, a := range artists {
		genres := a.Genres
		if genres == nil {
			genres = []string{}
		}
		out = append(out, domain.ArtistRecord{
			Rank:         i + 1,
			Artist:       a.Name,
			Genres:       genres,
			Popularity:   int(a.Popularity),
			Followers:    int(a.Followers.Count),
			SpotifyURL:   a.ExternalURLs["spotify"],
			ImageURL:     firstImage(a.Images),
			ArtistID:     string(a.ID),
			TimeRange:    r,
			SnapshotDate: snapshot,
		})
	}
	return out
}

func flattenPlayed(items []spotifyapi.RecentlyPlayedItem, loc *time.Location, snapshot time.Time) []domain.PlayedRecord {
	out := make([]domain.PlayedRecord, 0, len(items))
	for _, item := range items {
		rec := domain.PlayedRecord{
			TrackName:     item.Track.Name,
			TrackID:       string(item.Track.ID),
			PlayedAt:      item.PlayedAt.UTC(),
			PlayedAtLocal: item.PlayedAt.In(loc).Format(localTimeLayout),
			ExternalURL:   item.Track.ExternalURLs["spotify"],
			SnapshotDate:  snapshot,
		}
		if len(item.Track.Artists) > 0 {
			rec.ArtistName = item.Track.Artists[0].Name
			rec.ArtistID = string(item.Track.Artists[0].ID)
		}
		out = append(out, rec)
	}
	return out
}

func flattenPlaylists(playlists []spotifyapi.SimplePlaylist, self string, snapshot time.Time) []domain.PlaylistRecord {
	out := make([]domain.PlaylistRecord, 0, len(playlists))
	for i, p := range playlists {
		owner := p.Owner.DisplayName
		if owner == "" {
			owner = p.Owner.ID
		}
		if self != "" && p.Owner.ID == self {
			owner = ownerSelf
		}
		out = append(out, domain.PlaylistRecord{
			Rank:          i + 1,
			Name:          p.Name,
			Tracks:        int(p.Tracks.Total),
			Owner:         owner,
			Public:        p.IsPublic,
			Collaborative: p.Collaborative,
			SpotifyURL:    p.ExternalURLs["spotify"],
			ImageURL:      firstImage(p.Images),
			PlaylistID:    string(p.ID),
			SnapshotDate:  snapshot,
		})
	}
	return out
}

func joinArtists(artists []spotifyapi.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func firstImage(images []spotifyapi.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
