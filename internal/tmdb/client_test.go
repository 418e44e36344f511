package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "token", 2*time.Second)
}

func TestClient_Genres(t *testing.T) {
	var gotPath, gotAuth string
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth = r.URL.Path, r.Header.Get("Authorization")
		w.Write([]byte(`{"genres":[{"id":28,"name":"Action"},{"id":35,"name":"Comedy"}]}`))
	})

	genres, err := c.Genres(context.Background(), "tv")
	if err != nil {
		t.Fatalf("Genres() error = %v", err)
	}
	if gotPath != "/genre/tv/list" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if genres["Action"] != 28 || genres["Comedy"] != 35 {
		t.Errorf("genres = %v", genres)
	}
}

func TestClient_Discover(t *testing.T) {
	tests := []struct {
		name       string
		params     DiscoverParams
		body       string
		wantPath   string
		check      func(t *testing.T, q url.Values)
		wantPage   int
		wantTotal  int
		wantResult int
	}{
		{
			name:     "movie with filters",
			params:   DiscoverParams{Type: "movie", Genres: "28,35", Language: "en", SortBy: "popularity.desc", Page: 2, MinRating: 7.5},
			body:     `{"page":2,"total_pages":9,"results":[{"id":1},{"id":2}]}`,
			wantPath: "/discover/movie",
			check: func(t *testing.T, q url.Values) {
				want := map[string]string{
					"include_adult":          "false",
					"include_video":          "false",
					"with_genres":            "28,35",
					"language":               "en",
					"with_original_language": "en",
					"vote_average.gte":       "7.5",
					"vote_count.gte":         "50",
					"page":                   "2",
					"sort_by":                "popularity.desc",
				}
				for k, v := range want {
					if q.Get(k) != v {
						t.Errorf("%s = %q, want %q", k, q.Get(k), v)
					}
				}
			},
			wantPage: 2, wantTotal: 9, wantResult: 2,
		},
		{
			name:     "tv omits include_video and defaults totals",
			params:   DiscoverParams{Type: "tv", Adult: true, SortBy: "vote_average.desc"},
			body:     `{"results":[]}`,
			wantPath: "/discover/tv",
			check: func(t *testing.T, q url.Values) {
				if q.Has("include_video") {
					t.Error("include_video set for tv")
				}
				if q.Get("include_adult") != "true" {
					t.Errorf("include_adult = %q", q.Get("include_adult"))
				}
				if q.Has("with_genres") {
					t.Error("with_genres set without genres")
				}
			},
			wantPage: 1, wantTotal: 1, wantResult: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *http.Request
			c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				got = r
				w.Write([]byte(tt.body))
			})

			page, err := c.Discover(context.Background(), tt.params)
			if err != nil {
				t.Fatalf("Discover() error = %v", err)
			}
			if got.URL.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", got.URL.Path, tt.wantPath)
			}
			tt.check(t, got.URL.Query())
			if page.Page != tt.wantPage || page.TotalPages != tt.wantTotal || len(page.Results) != tt.wantResult {
				t.Errorf("page = %d/%d/%d", page.Page, page.TotalPages, len(page.Results))
			}
		})
	}
}

func TestClient_UpstreamFailure(t *testing.T) {
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})
	if _, err := c.Languages(context.Background()); !errors.Is(err, ErrUpstream) {
		t.Fatalf("Languages() error = %v, want %v", err, ErrUpstream)
	}

	bad := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	if _, err := bad.Genres(context.Background(), "movie"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("Genres() error = %v, want %v", err, ErrUpstream)
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token", 50*time.Millisecond)
	if _, err := c.Videos(context.Background(), "1", "movie"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("Videos() error = %v, want %v", err, ErrUpstream)
	}
}

func TestPickTrailer(t *testing.T) {
	teaser := Video{"type": "Teaser", "site": "YouTube", "key": "a"}
	vimeo := Video{"type": "Trailer", "site": "Vimeo", "key": "b"}
	yt := Video{"type": "Trailer", "site": "YouTube", "key": "c"}

	if got := PickTrailer([]Video{teaser, vimeo, yt}); got["key"] != "c" {
		t.Errorf("PickTrailer() = %v, want youtube trailer", got)
	}
	if got := PickTrailer([]Video{teaser, vimeo}); got["key"] != "a" {
		t.Errorf("PickTrailer() = %v, want first video", got)
	}
	if got := PickTrailer(nil); got != nil {
		t.Errorf("PickTrailer(nil) = %v, want nil", got)
	}
}

func TestNormalizeType(t *testing.T) {
	for in, want := range map[string]string{"tv": "tv", "movie": "movie", "": "movie", "TV": "movie", "anime": "movie"} {
		if got := NormalizeType(in); got != want {
			t.Errorf("NormalizeType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenreType(t *testing.T) {
	for in, want := range map[string]string{"movie": "movie", "": "movie", "tv": "tv", "foo": "tv", "MOVIE": "tv"} {
		if got := GenreType(in); got != want {
			t.Errorf("GenreType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClient_GenresUnknownTypeUsesTV(t *testing.T) {
	var gotPath string
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"genres":[]}`))
	})
	if _, err := c.Genres(context.Background(), "foo"); err != nil {
		t.Fatalf("Genres() error = %v", err)
	}
	if gotPath != "/genre/tv/list" {
		t.Errorf("path = %q, want /genre/tv/list", gotPath)
	}
}
