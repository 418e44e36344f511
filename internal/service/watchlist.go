package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/watchlist-kata/moviepicker/internal/repository"
	"github.com/watchlist-kata/moviepicker/internal/session"
)

// AddInput содержит поля добавляемой записи
type AddInput struct {
	MovieID     *int64
	MovieType   string
	Title       string
	PosterPath  *string
	VoteAverage *float64
	ReleaseDate *string
}

// WatchlistService реализует операции со списком просмотра текущего пользователя
type WatchlistService struct {
	repo   repository.WatchlistRepository
	logger *slog.Logger
}

// NewWatchlistService создает новый экземпляр WatchlistService
func NewWatchlistService(repo repository.WatchlistRepository, logger *slog.Logger) *WatchlistService {
	return &WatchlistService{repo: repo, logger: logger}
}

// currentUser возвращает личность запроса или ErrUnauthorized
func currentUser(ctx context.Context) (session.Identity, error) {
	id, ok := session.FromContext(ctx)
	if !ok {
		return session.Identity{}, ErrUnauthorized
	}
	return id, nil
}

// normalizeItem проверяет id и тип; пустой тип означает movie
func normalizeItem(movieID *int64, movieType string) (int64, string, error) {
	if movieID == nil {
		return 0, "", ErrMissingField
	}
	if *movieID <= 0 {
		return 0, "", ErrInvalidItemID
	}
	switch movieType = strings.ToLower(strings.TrimSpace(movieType)); movieType {
	case "":
		movieType = repository.MediaTypeMovie
	case repository.MediaTypeMovie, repository.MediaTypeTV:
	default:
		return 0, "", ErrInvalidMediaType
	}
	return *movieID, movieType, nil
}

// Add добавляет медиа в список просмотра пользователя
func (s *WatchlistService) Add(ctx context.Context, in AddInput) (*repository.GormWatchlist, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrMissingField
	}
	movieID, movieType, err := normalizeItem(in.MovieID, in.MovieType)
	if err != nil {
		return nil, err
	}

	entry := &repository.GormWatchlist{
		UserID:      user.UserID,
		MovieID:     movieID,
		MovieType:   movieType,
		Title:       title,
		PosterPath:  in.PosterPath,
		VoteAverage: in.VoteAverage,
		ReleaseDate: in.ReleaseDate,
	}
	if err := s.repo.AddEntry(ctx, entry); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEntry):
			return nil, fmt.Errorf("%w: already in watchlist", ErrConflict)
		case errors.Is(err, repository.ErrRecordNotFound):
			// Пользователь из сессии больше не существует
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("add to watchlist: %w", err)
	}
	return entry, nil
}

// Remove удаляет медиа из списка просмотра; отсутствие записи не ошибка
func (s *WatchlistService) Remove(ctx context.Context, movieID *int64, movieType string) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	id, typ, err := normalizeItem(movieID, movieType)
	if err != nil {
		return err
	}

	n, err := s.repo.RemoveEntry(ctx, user.UserID, id, typ)
	if err != nil {
		return fmt.Errorf("remove from watchlist: %w", err)
	}
	if n == 0 {
		s.logger.DebugContext(ctx, fmt.Sprintf("nothing to remove for media ID: %d and user ID: %d", id, user.UserID))
	}
	return nil
}

// List возвращает список просмотра, начиная с последних добавленных
func (s *WatchlistService) List(ctx context.Context) ([]repository.GormWatchlist, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	if entries == nil {
		entries = []repository.GormWatchlist{}
	}
	return entries, nil
}

// Check сообщает, есть ли медиа в списке. Без сессии возвращает false, а не ошибку.
func (s *WatchlistService) Check(ctx context.Context, movieID *int64, movieType string) (bool, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return false, nil
	}
	id, typ, err := normalizeItem(movieID, movieType)
	if err != nil {
		return false, err
	}

	ok, err := s.repo.EntryExists(ctx, user.UserID, id, typ)
	if err != nil {
		return false, fmt.Errorf("check watchlist: %w", err)
	}
	return ok, nil
}
