// Package spotify adapts the Spotify Web API to the flattened listening
// snapshots stored under the spotify section of a user record.
package spotify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/vanshika/tunetraits/internal/domain"
)

// DefaultLimit is the page size requested for every snapshot, the API maximum.
const DefaultLimit = 50

// DefaultLocation is the zone used for played_at_local.
const DefaultLocation = "Europe/Rome"

// api is the part of the Web API client the adapter calls.
type api interface {
	CurrentUser(ctx context.Context) (*spotifyapi.PrivateUser, error)
	CurrentUsersTopTracks(ctx context.Context, opts ...spotifyapi.RequestOption) (*spotifyapi.FullTrackPage, error)
	CurrentUsersTopArtists(ctx context.Context, opts ...spotifyapi.RequestOption) (*spotifyapi.FullArtistPage, error)
	PlayerRecentlyPlayedOpt(ctx context.Context, opt *spotifyapi.RecentlyPlayedOptions) ([]spotifyapi.RecentlyPlayedItem, error)
	CurrentUsersPlaylists(ctx context.Context, opts ...spotifyapi.RequestOption) (*spotifyapi.SimplePlaylistPage, error)
	CurrentUsersFollowedArtists(ctx context.Context, opts ...spotifyapi.RequestOption) (*spotifyapi.FullArtistCursorPage, error)
}

// Options tunes the adapter.
type Options struct {
	Limit    int
	Location *time.Location
	Logger   *slog.Logger
	// Now stamps snapshot_date; defaults to time.Now.
	Now func() time.Time
}

// Client fetches listening snapshots for one authorised user.
type Client struct {
	api      api
	limit    int
	location *time.Location
	logger   *slog.Logger
	nowFn    func() time.Time
}

// New builds a client for cred. The credential is checked first so an expired
// token never reaches the API.
func New(ctx context.Context, cred domain.StreamingCredential, opts Options) (*Client, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	if err := cred.Check(now()); err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
		Expiry:      cred.ExpiresAt,
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	return newClient(spotifyapi.New(httpClient), opts), nil
}

func newClient(a api, opts Options) *Client {
	c := &Client{
		api:      a,
		limit:    opts.Limit,
		location: opts.Location,
		logger:   opts.Logger,
		nowFn:    opts.Now,
	}
	if c.limit <= 0 || c.limit > DefaultLimit {
		c.limit = DefaultLimit
	}
	if c.location == nil {
		c.location = time.UTC
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.nowFn == nil {
		c.nowFn = time.Now
	}
	return c
}

// LoadLocation resolves a zone name, falling back to UTC for an empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

// TopTracks returns the user's top tracks over r.
func (c *Client) TopTracks(ctx context.Context, r domain.TimeRange) ([]domain.TrackRecord, error) {
	page, err := c.api.CurrentUsersTopTracks(ctx, spotifyapi.Limit(c.limit), spotifyapi.Timerange(spotifyapi.Range(r)))
	if err != nil {
		return nil, fmt.Errorf("fetch top tracks %s: %w", r, err)
	}
	c.fetched(domain.TopTracksDataType(r), len(page.Tracks))
	return flattenTracks(page.Tracks, r, c.snapshotDate()), nil
}

// TopArtists returns the user's top artists over r.
func (c *Client) TopArtists(ctx context.Context, r domain.TimeRange) ([]domain.ArtistRecord, error) {
	page, err := c.api.CurrentUsersTopArtists(ctx, spotifyapi.Limit(c.limit), spotifyapi.Timerange(spotifyapi.Range(r)))
	if err != nil {
		return nil, fmt.Errorf("fetch top artists %s: %w", r, err)
	}
	c.fetched(domain.TopArtistsDataType(r), len(page.Artists))
	return flattenArtists(page.Artists, r, c.snapshotDate()), nil
}

// RecentlyPlayed returns the most recent plays, newest first.
func (c *Client) RecentlyPlayed(ctx context.Context) ([]domain.PlayedRecord, error) {
	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotifyapi.RecentlyPlayedOptions{Limit: spotifyapi.Numeric(c.limit)})
	if err != nil {
		return nil, fmt.Errorf("fetch recently played: %w", err)
	}
	c.fetched(domain.DataRecentlyPlayed, len(items))
	return flattenPlayed(items, c.location, c.snapshotDate()), nil
}

// Playlists returns the user's playlists. Playlists owned by the user report
// "You" as owner.
func (c *Client) Playlists(ctx context.Context) ([]domain.PlaylistRecord, error) {
	me, err := c.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	page, err := c.api.CurrentUsersPlaylists(ctx, spotifyapi.Limit(c.limit))
	if err != nil {
		return nil, fmt.Errorf("fetch playlists: %w", err)
	}
	c.fetched(domain.DataPlaylists, len(page.Playlists))
	return flattenPlaylists(page.Playlists, me.ID, c.snapshotDate()), nil
}

// FollowedArtists returns the artists the user follows.
func (c *Client) FollowedArtists(ctx context.Context) ([]domain.ArtistRecord, error) {
	page, err := c.api.CurrentUsersFollowedArtists(ctx, spotifyapi.Limit(c.limit))
	if err != nil {
		return nil, fmt.Errorf("fetch followed artists: %w", err)
	}
	c.fetched(domain.DataFollowing, len(page.Artists))
	return flattenArtists(page.Artists, "", c.snapshotDate()), nil
}

func (c *Client) fetched(dt domain.DataType, n int) {
	c.logger.Debug("snapshot fetched", "dataType", string(dt), "items", n)
}

func (c *Client) snapshotDate() time.Time {
	return c.nowFn().UTC().Truncate(time.Second)
}
