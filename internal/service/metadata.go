package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/watchlist-kata/moviepicker/internal/tmdb"
)

// MetadataSource - внешний источник метаданных
type MetadataSource interface {
	Genres(ctx context.Context, mediaType string) (map[string]int, error)
	Languages(ctx context.Context) (json.RawMessage, error)
	Discover(ctx context.Context, p tmdb.DiscoverParams) (*tmdb.DiscoverPage, error)
	Videos(ctx context.Context, id, mediaType string) ([]tmdb.Video, error)
}

// MetadataService проксирует запросы к TMDB, переводя сбои в ErrGateway
type MetadataService struct {
	source MetadataSource
	logger *slog.Logger
}

// NewMetadataService создает новый экземпляр MetadataService
func NewMetadataService(source MetadataSource, logger *slog.Logger) *MetadataService {
	return &MetadataService{source: source, logger: logger}
}

func (s *MetadataService) gateway(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, fmt.Sprintf("metadata %s failed", op), slog.Any("error", err))
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrGateway, err)
}

// Genres возвращает жанры фильмов или сериалов
func (s *MetadataService) Genres(ctx context.Context, mediaType string) (map[string]int, error) {
	genres, err := s.source.Genres(ctx, mediaType)
	if err != nil {
		return nil, s.gateway(ctx, "genres", err)
	}
	return genres, nil
}

// Languages возвращает список языков как есть
func (s *MetadataService) Languages(ctx context.Context) (json.RawMessage, error) {
	langs, err := s.source.Languages(ctx)
	if err != nil {
		return nil, s.gateway(ctx, "languages", err)
	}
	return langs, nil
}

// Discover ищет фильмы или сериалы по фильтрам
func (s *MetadataService) Discover(ctx context.Context, p tmdb.DiscoverParams) (*tmdb.DiscoverPage, error) {
	page, err := s.source.Discover(ctx, p)
	if err != nil {
		return nil, s.gateway(ctx, "discover", err)
	}
	return page, nil
}

// Trailer возвращает трейлер или nil, если видео нет
func (s *MetadataService) Trailer(ctx context.Context, id, mediaType string) (tmdb.Video, error) {
	if id == "" {
		return nil, ErrMissingField
	}
	videos, err := s.source.Videos(ctx, id, mediaType)
	if err != nil {
		return nil, s.gateway(ctx, "videos", err)
	}
	return tmdb.PickTrailer(videos), nil
}
