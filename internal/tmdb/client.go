package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL - публичный адрес TMDB v3
const DefaultBaseURL = "https://api.themoviedb.org/3"

// minVoteCount отсекает тайтлы с малым числом оценок
const minVoteCount = 50

// ErrUpstream оборачивает любой сбой обращения к TMDB
var ErrUpstream = errors.New("tmdb request failed")

// Client обращается к TMDB с bearer-токеном
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient создает клиента; пустой baseURL означает DefaultBaseURL
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// NormalizeType сводит любой тип, кроме "tv", к "movie"
func NormalizeType(t string) string {
	if t == "tv" {
		return "tv"
	}
	return "movie"
}

// GenreType выбирает список жанров: movie только для "movie" или пустого типа, иначе tv
func GenreType(t string) string {
	if t == "" || t == "movie" {
		return "movie"
	}
	return "tv"
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: TMDB returned %d for %s", ErrUpstream, resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return nil
}

// Genres возвращает соответствие имя жанра -> id
func (c *Client) Genres(ctx context.Context, mediaType string) (map[string]int, error) {
	var res struct {
		Genres []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"genres"`
	}
	q := url.Values{"language": {"en"}}
	if err := c.get(ctx, "/genre/"+GenreType(mediaType)+"/list", q, &res); err != nil {
		return nil, err
	}

	genres := make(map[string]int, len(res.Genres))
	for _, g := range res.Genres {
		genres[g.Name] = g.ID
	}
	return genres, nil
}

// Languages отдает configuration/languages без изменений
func (c *Client) Languages(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/configuration/languages", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DiscoverParams - фильтры поиска
type DiscoverParams struct {
	Type      string
	Genres    string // comma separated ids
	Language  string
	Adult     bool
	SortBy    string
	Page      int
	MinRating float64
}

type DiscoverPage struct {
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
	Results    []json.RawMessage `json:"results"`
}

// Discover ищет через /discover/{movie,tv}
func (c *Client) Discover(ctx context.Context, p DiscoverParams) (*DiscoverPage, error) {
	mediaType := NormalizeType(p.Type)
	if p.Page <= 0 {
		p.Page = 1
	}

	q := url.Values{}
	q.Set("include_adult", strconv.FormatBool(p.Adult))
	if mediaType == "movie" {
		q.Set("include_video", "false")
	}
	q.Set("sort_by", p.SortBy)
	q.Set("vote_average.gte", strconv.FormatFloat(p.MinRating, 'f', -1, 64))
	q.Set("vote_count.gte", strconv.Itoa(minVoteCount))
	q.Set("page", strconv.Itoa(p.Page))
	if p.Language != "" {
		q.Set("language", p.Language)
		q.Set("with_original_language", p.Language)
	}
	if p.Genres != "" {
		q.Set("with_genres", p.Genres)
	}

	var res struct {
		Page       *int              `json:"page"`
		TotalPages *int              `json:"total_pages"`
		Results    []json.RawMessage `json:"results"`
	}
	if err := c.get(ctx, "/discover/"+mediaType, q, &res); err != nil {
		return nil, err
	}

	page := &DiscoverPage{Page: p.Page, TotalPages: 1, Results: res.Results}
	if res.Page != nil {
		page.Page = *res.Page
	}
	if res.TotalPages != nil {
		page.TotalPages = *res.TotalPages
	}
	if page.Results == nil {
		page.Results = []json.RawMessage{}
	}
	return page, nil
}

// Video - элемент ответа /videos как есть
type Video map[string]any

func (c *Client) Videos(ctx context.Context, id, mediaType string) ([]Video, error) {
	var res struct {
		Results []Video `json:"results"`
	}
	path := fmt.Sprintf("/%s/%s/videos", NormalizeType(mediaType), url.PathEscape(id))
	if err := c.get(ctx, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Results, nil
}

// PickTrailer выбирает трейлер с YouTube, иначе первое видео
func PickTrailer(videos []Video) Video {
	for _, v := range videos {
		if v["type"] == "Trailer" && v["site"] == "YouTube" {
			return v
		}
	}
	if len(videos) > 0 {
		return videos[0]
	}
	return nil
}
