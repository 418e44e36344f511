package session

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(blockKey []byte) *Manager {
	return NewManager(testKey, blockKey, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// roundTrip copies cookies set on rec onto a new request.
func roundTrip(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return req
}

func TestManager_StartCurrentEnd(t *testing.T) {
	for _, tc := range []struct {
		name     string
		blockKey []byte
	}{
		{"signed", nil},
		{"encrypted", []byte("fedcba9876543210")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(tc.blockKey)

			rec := httptest.NewRecorder()
			if err := m.Start(rec, Identity{UserID: 3, Email: "a@b.com"}); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			c := rec.Result().Cookies()[0]
			if !c.HttpOnly || c.Name != DefaultCookieName || c.MaxAge <= 0 {
				t.Errorf("cookie = %+v", c)
			}

			id, ok := m.Current(roundTrip(rec))
			if !ok || id.UserID != 3 || id.Email != "a@b.com" {
				t.Fatalf("Current() = %+v, %v", id, ok)
			}

			end := httptest.NewRecorder()
			m.End(end)
			cleared := end.Result().Cookies()[0]
			if cleared.MaxAge >= 0 || cleared.Value != "" {
				t.Errorf("End() cookie = %+v, want expired", cleared)
			}
		})
	}
}

func TestManager_StartOverwrites(t *testing.T) {
	m := newTestManager(nil)
	rec := httptest.NewRecorder()
	_ = m.Start(rec, Identity{UserID: 1, Email: "first@b.com"})
	rec = httptest.NewRecorder()
	_ = m.Start(rec, Identity{UserID: 2, Email: "second@b.com"})

	id, ok := m.Current(roundTrip(rec))
	if !ok || id.UserID != 2 {
		t.Fatalf("Current() = %+v, %v; want user 2", id, ok)
	}
}

func TestManager_RejectsTamperedCookie(t *testing.T) {
	m := newTestManager(nil)
	rec := httptest.NewRecorder()
	_ = m.Start(rec, Identity{UserID: 1, Email: "a@b.com"})
	c := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value + "x"})
	if _, ok := m.Current(req); ok {
		t.Fatal("Current() accepted a tampered cookie")
	}

	other := NewManager([]byte("another-secret-another-secret-00"), nil, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	if _, ok := other.Current(req); ok {
		t.Fatal("Current() accepted a cookie signed with a different key")
	}
}

func TestManager_Middleware(t *testing.T) {
	m := newTestManager(nil)
	var got Identity
	var present bool
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, present = FromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if present {
		t.Fatal("identity present without a cookie")
	}

	rec := httptest.NewRecorder()
	_ = m.Start(rec, Identity{UserID: 9, Email: "z@b.com"})
	h.ServeHTTP(httptest.NewRecorder(), roundTrip(rec))
	if !present || got.UserID != 9 {
		t.Fatalf("FromContext() = %+v, %v", got, present)
	}
}

func TestManager_OAuthState(t *testing.T) {
	m := newTestManager(nil)
	rec := httptest.NewRecorder()
	if err := m.SetOAuthState(rec, "state-1"); err != nil {
		t.Fatalf("SetOAuthState() error = %v", err)
	}

	out := httptest.NewRecorder()
	state, ok := m.ConsumeOAuthState(out, roundTrip(rec))
	if !ok || state != "state-1" {
		t.Fatalf("ConsumeOAuthState() = %q, %v", state, ok)
	}
	if c := out.Result().Cookies()[0]; c.MaxAge >= 0 {
		t.Errorf("state cookie not cleared: %+v", c)
	}

	if _, ok := m.ConsumeOAuthState(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Error("ConsumeOAuthState() ok without cookie")
	}
}

func TestHandle_BindsResponse(t *testing.T) {
	m := newTestManager(nil)

	rec := httptest.NewRecorder()
	h := m.Bind(rec)
	if err := h.Start(Identity{UserID: 9, Email: "h@b.com"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if id, ok := m.Current(roundTrip(rec)); !ok || id.UserID != 9 {
		t.Fatalf("Current() = %+v, %v", id, ok)
	}

	rec = httptest.NewRecorder()
	m.Bind(rec).End()
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 || cookies[0].Value != "" {
		t.Errorf("End() cookies = %+v", cookies)
	}
}
