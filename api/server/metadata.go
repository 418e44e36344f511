package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/watchlist-kata/moviepicker/internal/tmdb"
)

const (
	defaultLanguage  = "en"
	defaultSortBy    = "popularity.desc"
	defaultMinRating = 5.0
)

// parseBool разбирает флаг без учета регистра; нераспознанное значение - false
func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.Metadata.Genres(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		s.failUpstream(w, r, "tmdbRequestFailed", err)
		return
	}
	writeJSON(w, http.StatusOK, genres)
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	langs, err := s.Metadata.Languages(r.Context())
	if err != nil {
		s.failUpstream(w, r, "tmdbRequestFailed", err)
		return
	}
	writeJSON(w, http.StatusOK, langs)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := tmdb.DiscoverParams{
		Type:      q.Get("type"),
		Genres:    q.Get("genres"),
		Language:  q.Get("language"),
		Adult:     parseBool(q.Get("adult")),
		SortBy:    q.Get("sortBy"),
		Page:      1,
		MinRating: defaultMinRating,
	}
	if p.Language == "" {
		p.Language = defaultLanguage
	}
	if p.SortBy == "" {
		p.SortBy = defaultSortBy
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "Invalid page parameter")
			return
		}
		p.Page = page
	}
	if rating, err := strconv.ParseFloat(q.Get("rating"), 64); err == nil {
		p.MinRating = rating
	}

	page, err := s.Metadata.Discover(r.Context(), p)
	if err != nil {
		s.failUpstream(w, r, "tmdbRequestFailed", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type trailerResponse struct {
	Trailer tmdb.Video `json:"trailer"`
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing id parameter")
		return
	}

	trailer, err := s.Metadata.Trailer(r.Context(), id, r.URL.Query().Get("type"))
	if err != nil {
		s.failUpstream(w, r, "Failed to fetch videos", err)
		return
	}
	writeJSON(w, http.StatusOK, trailerResponse{Trailer: trailer})
}
