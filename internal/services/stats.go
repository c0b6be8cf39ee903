package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/shared"
)

var anchorHref = regexp.MustCompile(`<a href="([^"]+)"`)

// StatsService reads listening statistics and manages the Spotify connection.
type StatsService struct {
	api    *APIService
	reader *APIService
}

// NewStatsService creates a StatsService. Read-only calls go through reader (typically backed by
// [NewRetryingClient]); nil falls back to api.
func NewStatsService(api, reader *APIService) *StatsService {
	if reader == nil {
		reader = api
	}
	return &StatsService{api: api, reader: reader}
}

// Search queries songs and artists.
func (s *StatsService) Search(ctx context.Context, q string) (*models.SearchResults, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: search query is empty", shared.ErrInvalidInput)
	}

	var out models.SearchResults
	if err := s.getJSON(ctx, "/api/search", url.Values{"q": {q}}, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	return &out, nil
}

// TopSongs returns the top songs for the query window.
func (s *StatsService) TopSongs(ctx context.Context, q models.ListQuery) ([]models.Song, error) {
	var out struct {
		Songs []models.Song `json:"songs"`
	}
	if err := s.getJSON(ctx, "/api/lists/songs", listValues(q), &out); err != nil {
		return nil, err
	}
	return out.Songs, nil
}

// TopArtists returns the top artists for the query window.
func (s *StatsService) TopArtists(ctx context.Context, q models.ListQuery) ([]models.Artist, error) {
	var out struct {
		Artists []models.Artist `json:"artists"`
	}
	if err := s.getJSON(ctx, "/api/lists/artists", listValues(q), &out); err != nil {
		return nil, err
	}
	return out.Artists, nil
}

// Song returns details for one song.
func (s *StatsService) Song(ctx context.Context, id string) (*models.SongDetails, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: song id", shared.ErrMissingArgument)
	}
	var out models.SongDetails
	if err := s.getJSON(ctx, "/api/song/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Artist returns details for one artist.
func (s *StatsService) Artist(ctx context.Context, id string) (*models.ArtistDetails, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}
	var out models.ArtistDetails
	if err := s.getJSON(ctx, "/api/artist/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LatestSnapshot returns the most recent lifetime snapshot, or [shared.ErrSnapshotNotReady] while the server
// answers 202.
func (s *StatsService) LatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	return s.latestSnapshot(ctx, s.reader)
}

// PollLatestSnapshot is [StatsService.LatestSnapshot] without retries, for callers that poll on their own
// schedule.
func (s *StatsService) PollLatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	return s.latestSnapshot(ctx, s.api)
}

func (s *StatsService) latestSnapshot(ctx context.Context, client *APIService) (*models.Snapshot, error) {
	resp, err := client.Get(ctx, "/api/snapshots/lifetime/latest", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusAccepted {
		return nil, shared.ErrSnapshotNotReady
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var out models.Snapshot
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Period == "" {
		out.Period = "lifetime"
	}
	return &out, nil
}

// Status reports the API's database health.
func (s *StatsService) Status(ctx context.Context) (*models.APIStatus, error) {
	resp, err := s.reader.Get(ctx, "/api/status", nil)
	if err != nil {
		return nil, err
	}

	var out models.APIStatus
	if resp.IsJSON {
		if derr := resp.Decode(&out); derr != nil && resp.OK() {
			return nil, derr
		}
	}
	if err := resp.Err(); err != nil {
		return &out, err
	}
	return &out, nil
}

// SpotifyLoginURL returns the Spotify authorization URL the API redirects to.
//
// The Location header of a 3xx response is preferred; an HTML body is searched for the first anchor.
func (s *StatsService) SpotifyLoginURL(ctx context.Context) (string, error) {
	resp, err := s.api.GetNoRedirect(ctx, "/api/spotify/login")
	if err != nil {
		return "", err
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc := resp.Headers.Get("Location"); loc != "" {
			return loc, nil
		}
		return "", fmt.Errorf("%w: redirect without Location header", shared.ErrUnexpectedResponse)
	}
	if err := resp.Err(); err != nil {
		return "", err
	}

	if strings.Contains(resp.Headers.Get("Content-Type"), "text/html") || !resp.IsJSON {
		if m := anchorHref.FindSubmatch(resp.Body); m != nil {
			return string(m[1]), nil
		}
	}
	return "", fmt.Errorf("%w: could not find redirect URL (status %d)", shared.ErrUnexpectedResponse, resp.StatusCode)
}

// FetchRecent asks the API to import recently played tracks from the connected Spotify account.
func (s *StatsService) FetchRecent(ctx context.Context) (*models.APIStatus, error) {
	resp, err := s.api.Post(ctx, "/api/spotify/fetch-recent", []byte("{}"))
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	out := models.APIStatus{Status: strconv.Itoa(resp.StatusCode)}
	if resp.IsJSON {
		if err := resp.Decode(&out); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// SyncUser posts the user profile to /api/users/sync.
func (s *StatsService) SyncUser(ctx context.Context, user models.User) error {
	if user.Auth0ID == "" || user.Email == "" {
		return fmt.Errorf("%w: auth0_id and email are required", shared.ErrInvalidInput)
	}
	resp, err := s.api.PostJSON(ctx, "/api/users/sync", user)
	if err != nil {
		return err
	}
	return resp.Err()
}

func (s *StatsService) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	resp, err := s.reader.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(v)
}

func listValues(q models.ListQuery) url.Values {
	v := url.Values{}
	if !q.Start.IsZero() {
		v.Set("start", q.Start.Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		v.Set("end", q.End.Format(time.RFC3339))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}
