package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/watchlist-kata/moviepicker/internal/repository"
	"github.com/watchlist-kata/moviepicker/internal/service"
)

type addRequest struct {
	MovieID     *int64   `json:"movieId" validate:"required"`
	MovieType   string   `json:"movieType"`
	Title       string   `json:"title" validate:"required"`
	PosterPath  *string  `json:"posterPath"`
	VoteAverage *float64 `json:"voteAverage"`
	ReleaseDate *string  `json:"releaseDate"`
}

type removeRequest struct {
	MovieID   *int64 `json:"movieId" validate:"required"`
	MovieType string `json:"movieType"`
}

type listResponse struct {
	Watchlist []repository.GormWatchlist `json:"watchlist"`
}

type checkResponse struct {
	InWatchlist bool `json:"inWatchlist"`
}

// requireSession отвечает 401 до разбора тела запроса
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) bool {
	if me := s.Accounts.WhoAmI(r.Context()); !me.Authenticated {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return false
	}
	return true
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req addRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	_, err := s.Watchlist.Add(r.Context(), service.AddInput{
		MovieID:     req.MovieID,
		MovieType:   req.MovieType,
		Title:       req.Title,
		PosterPath:  req.PosterPath,
		VoteAverage: req.VoteAverage,
		ReleaseDate: req.ReleaseDate,
	})
	if err != nil {
		if errors.Is(err, service.ErrConflict) {
			writeError(w, http.StatusConflict, "Already in watchlist")
			return
		}
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Added to watchlist")
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req removeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.Watchlist.Remove(r.Context(), req.MovieID, req.MovieType); err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Removed from watchlist")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Watchlist.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Watchlist: entries})
}

// handleCheck без сессии отвечает false, а не 401
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var movieID *int64
	if raw := strings.TrimSpace(q.Get("movieId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Нечисловой id проверяется сервисом как неположительный
			id = 0
		}
		movieID = &id
	}

	ok, err := s.Watchlist.Check(r.Context(), movieID, q.Get("movieType"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{InWatchlist: ok})
}
