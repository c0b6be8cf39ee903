package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/server"
	"github.com/desertthunder/yomi/internal/shared"
)

// Options configures a fake API [Server].
type Options struct {
	StepsToFinish int  // status polls before a job finishes (default: 3)
	RequireAuth   bool // require a bearer token whose subject has been synced
	Logger        *log.Logger
}

// Server is the in-memory API. It implements [http.Handler].
type Server struct {
	opts   Options
	router chi.Router
	logger *log.Logger

	mu        sync.Mutex
	jobs      map[string]*job
	users     map[string]models.User
	songs     map[string]*songStats
	artists   map[string]*models.Artist
	seen      map[string]bool // stream timestamps already imported
	snapshots map[string]*models.Snapshot
	failNext  string
	nextSong  int
	nextArt   int
}

type songStats struct {
	models.SongDetails
	uri string
}

// New creates a fake API server.
func New(opts Options) *Server {
	if opts.StepsToFinish <= 0 {
		opts.StepsToFinish = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Server{
		opts:      opts,
		logger:    logger,
		jobs:      map[string]*job{},
		users:     map[string]models.User{},
		songs:     map[string]*songStats{},
		artists:   map[string]*models.Artist{},
		seen:      map[string]bool{},
		snapshots: map[string]*models.Snapshot{},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(server.RequestLogger(s.logger))

	r.Get("/api/status", s.status)
	r.Get("/api/job-status/{id}", s.jobStatus)
	r.Get("/api/task-status/{id}", s.taskStatus)
	r.Post("/api/users/sync", s.syncUser)

	r.Get("/api/search", s.search)
	r.Get("/api/lists/songs", s.topSongs)
	r.Get("/api/lists/artists", s.topArtists)
	r.Get("/api/song/{id}", s.song)
	r.Get("/api/artist/{id}", s.artist)
	r.Get("/api/snapshots/lifetime/latest", s.latestSnapshot)

	r.Get("/api/spotify/login", s.spotifyLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/api/upload-spotify-json", s.upload)
		r.Post("/api/snapshots/generate", s.generateSnapshots)
		r.Post("/api/snapshots/generate/custom", s.generateCustom)
		r.Post("/api/spotify/fetch-recent", s.fetchRecent)
	})

	return r
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// FailNext makes the next submitted job fail with msg when it finishes.
func (s *Server) FailNext(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = msg
}

// AddUser registers a user as if it had been synced.
func (s *Server) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Auth0ID] = u
}

// User returns the synced user for auth0ID.
func (s *Server) User(auth0ID string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[auth0ID]
	return u, ok
}

// Import aggregates stream records directly, skipping the upload job. It returns the number inserted.
func (s *Server) Import(records []models.StreamRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.importLocked(records)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.opts.RequireAuth {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Missing Authorization Header"})
			return
		}
		claims, err := shared.ParseTokenClaims(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Invalid token"})
			return
		}
		if _, ok := s.User(claims.Subject); !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.APIStatus{Status: "OK", Message: "Database connected"})
}

func (s *Server) syncUser(w http.ResponseWriter, r *http.Request) {
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil || u.Auth0ID == "" || u.Email == "" {
		writeJSON(w, http.StatusBadRequest, models.APIStatus{Status: "ERROR", Message: "Missing required fields"})
		return
	}
	s.AddUser(u)
	writeJSON(w, http.StatusOK, models.APIStatus{Status: "OK", Message: "User synced successfully"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	out := models.SearchResults{Songs: []models.Song{}, Artists: []models.Artist{}}
	if q == "" {
		writeJSON(w, http.StatusOK, out)
		return
	}

	s.mu.Lock()
	for _, song := range s.sortedSongsLocked() {
		if strings.Contains(strings.ToLower(song.TrackName), q) || strings.Contains(strings.ToLower(song.ArtistName), q) {
			out.Songs = append(out.Songs, song)
		}
	}
	for _, a := range s.sortedArtistsLocked() {
		if strings.Contains(strings.ToLower(a.Name), q) {
			out.Artists = append(out.Artists, a)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) topSongs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	songs := limit(s.sortedSongsLocked(), r)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

func (s *Server) topArtists(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	artists := limit(s.sortedArtistsLocked(), r)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"artists": artists})
}

func (s *Server) song(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, song := range s.songs {
		if song.SongID == id {
			writeJSON(w, http.StatusOK, song.SongDetails)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Song not found"})
}

func (s *Server) artist(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artists {
		if a.ArtistID == id {
			writeJSON(w, http.StatusOK, models.ArtistDetails{Artist: *a, Genres: []string{}})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Artist not found"})
}

func (s *Server) spotifyLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "https://accounts.spotify.com/authorize?client_id=fake&response_type=code", http.StatusFound)
}

func (s *Server) fetchRecent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.APIStatus{Status: "OK", Message: "Fetched 0 recent tracks"})
}

// importLocked mirrors the server-side import: records without ts or track uri are skipped, as are timestamps
// already imported.
func (s *Server) importLocked(records []models.StreamRecord) int {
	inserted := 0
	for _, rec := range records {
		if rec.Timestamp == "" || rec.SpotifyTrackURI == "" || s.seen[rec.Timestamp] {
			continue
		}
		s.seen[rec.Timestamp] = true

		song, ok := s.songs[rec.SpotifyTrackURI]
		if !ok {
			s.nextSong++
			song = &songStats{uri: rec.SpotifyTrackURI}
			song.SongID = s.nextSong
			song.TrackName = rec.TrackName
			song.ArtistName = rec.ArtistName
			song.AlbumName = rec.AlbumName
			song.FirstPlayed = rec.Timestamp
			s.songs[rec.SpotifyTrackURI] = song
		}
		song.PlayCount++
		song.MsPlayed += rec.MsPlayed
		if rec.Timestamp < song.FirstPlayed {
			song.FirstPlayed = rec.Timestamp
		}
		if rec.Timestamp > song.LastPlayed {
			song.LastPlayed = rec.Timestamp
		}

		if rec.ArtistName != "" {
			a, ok := s.artists[rec.ArtistName]
			if !ok {
				s.nextArt++
				a = &models.Artist{ArtistID: s.nextArt, Name: rec.ArtistName}
				s.artists[rec.ArtistName] = a
			}
			a.TotalStreams++
		}
		inserted++
	}
	return inserted
}

func (s *Server) sortedSongsLocked() []models.Song {
	out := make([]models.Song, 0, len(s.songs))
	for _, song := range s.songs {
		out = append(out, song.Song)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlayCount != out[j].PlayCount {
			return out[i].PlayCount > out[j].PlayCount
		}
		return out[i].SongID < out[j].SongID
	})
	return out
}

func (s *Server) sortedArtistsLocked() []models.Artist {
	out := make([]models.Artist, 0, len(s.artists))
	for _, a := range s.artists {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalStreams != out[j].TotalStreams {
			return out[i].TotalStreams > out[j].TotalStreams
		}
		return out[i].ArtistID < out[j].ArtistID
	})
	return out
}

func limit[T any](items []T, r *http.Request) []T {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(w, `{"error":%q}`, err.Error())
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
