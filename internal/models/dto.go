package models

import "time"

// Song is one entry of a top-N list or search result.
type Song struct {
	SongID     int    `json:"song_id"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	AlbumName  string `json:"album_name,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	PlayCount  int    `json:"play_count,omitempty"`
	MsPlayed   int64  `json:"ms_played,omitempty"`
}

// Artist is one entry of a top-N list or search result.
type Artist struct {
	ArtistID     int    `json:"artist_id"`
	Name         string `json:"name"`
	ImageURL     string `json:"image_url,omitempty"`
	TotalStreams int    `json:"total_streams,omitempty"`
}

// SongDetails is the response of /api/song/:id.
type SongDetails struct {
	Song
	FirstPlayed  string `json:"first_played,omitempty"`
	LastPlayed   string `json:"last_played,omitempty"`
	LongestBinge int    `json:"longest_binge,omitempty"`
}

// ArtistDetails is the response of /api/artist/:id.
type ArtistDetails struct {
	Artist
	SpotifyURI string   `json:"spotify_uri,omitempty"`
	Followers  *int     `json:"artist_followers,omitempty"`
	Popularity *int     `json:"artist_popularity,omitempty"`
	Genres     []string `json:"artist_genres,omitempty"`
}

// SearchResults is the response of /api/search.
//
// Older deployments return songs under "results"; the client folds them into Songs.
type SearchResults struct {
	Songs   []Song   `json:"songs"`
	Artists []Artist `json:"artists"`
	Results []Song   `json:"results,omitempty"`
}

// Normalize moves legacy "results" entries into Songs.
func (r *SearchResults) Normalize() {
	if len(r.Songs) == 0 && len(r.Results) > 0 {
		r.Songs = r.Results
	}
	r.Results = nil
}

// ListQuery holds the optional window and limit of a top-N list request.
type ListQuery struct {
	Start time.Time
	End   time.Time
	Limit int
}

// Snapshot is precomputed listening statistics for one period.
type Snapshot struct {
	ID           int      `json:"snapshot_id,omitempty"`
	Period       string   `json:"period"`
	Start        string   `json:"start,omitempty"`
	End          string   `json:"end,omitempty"`
	GeneratedAt  string   `json:"generated_at,omitempty"`
	TotalStreams int      `json:"total_streams,omitempty"`
	TotalMs      int64    `json:"total_ms_played,omitempty"`
	TopSongs     []Song   `json:"top_songs,omitempty"`
	TopArtists   []Artist `json:"top_artists,omitempty"`
}

// SnapshotJob is one entry of a batch snapshot submission.
type SnapshotJob struct {
	Period string `json:"period"`
	JobID  string `json:"job_id"`
}

// Snapshot periods accepted by the generate endpoint.
var SnapshotPeriods = []string{"day", "week", "month", "year", "lifetime"}

// IsSnapshotPeriod reports whether p is an accepted period name.
func IsSnapshotPeriod(p string) bool {
	for _, v := range SnapshotPeriods {
		if v == p {
			return true
		}
	}
	return false
}

// User is the payload for /api/users/sync.
type User struct {
	Auth0ID      string `json:"auth0_id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	ShowExplicit int    `json:"show_explicit"`
	DarkMode     int    `json:"dark_mode"`
}

// StreamRecord is one entry of a Spotify extended streaming history export.
type StreamRecord struct {
	Timestamp       string `json:"ts"`
	Platform        string `json:"platform,omitempty"`
	MsPlayed        int64  `json:"ms_played"`
	ConnCountry     string `json:"conn_country,omitempty"`
	TrackName       string `json:"master_metadata_track_name,omitempty"`
	ArtistName      string `json:"master_metadata_album_artist_name,omitempty"`
	AlbumName       string `json:"master_metadata_album_album_name,omitempty"`
	SpotifyTrackURI string `json:"spotify_track_uri,omitempty"`
}

// APIStatus is the response of /api/status and the generic {status, message} envelope.
type APIStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
