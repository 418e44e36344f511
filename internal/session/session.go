package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	DefaultCookieName = "session"
	stateCookieName   = "oauth_state"
	stateMaxAge       = 10 * 60
)

// Identity - пользователь активной сессии
type Identity struct {
	UserID uint   `json:"uid"`
	Email  string `json:"email"`
}

type contextKey struct{}

// NewContext возвращает копию ctx с личностью id
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext возвращает личность, определенную для запроса
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Options задает атрибуты cookie
type Options struct {
	CookieName string
	MaxAge     int // seconds
	Secure     bool
}

// Manager выдает, читает и удаляет cookie сессии
type Manager struct {
	codec  *securecookie.SecureCookie
	state  *securecookie.SecureCookie
	opts   Options
	logger *slog.Logger
}

// NewManager создает Manager. hashKey подписывает cookie, непустой blockKey
// (16, 24 или 32 байта) дополнительно шифрует ее.
func NewManager(hashKey, blockKey []byte, opts Options, logger *slog.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7 * 24 * 60 * 60
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(opts.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	state := securecookie.New(hashKey, blockKey)
	state.MaxAge(stateMaxAge)

	return &Manager{codec: codec, state: state, opts: opts, logger: logger}
}

func (m *Manager) cookie(name, value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
	if maxAge > 0 {
		c.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	return c
}

// Start открывает сессию для id, заменяя предыдущую
func (m *Manager) Start(w http.ResponseWriter, id Identity) error {
	value, err := m.codec.Encode(m.opts.CookieName, id)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(m.opts.CookieName, value, m.opts.MaxAge))
	return nil
}

// End удаляет cookie сессии; без активной сессии тоже безопасен
func (m *Manager) End(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(m.opts.CookieName, "", -1))
}

// Current декодирует личность из cookie запроса.
// Отсутствующая, просроченная или подделанная cookie дает пустой результат.
func (m *Manager) Current(r *http.Request) (Identity, bool) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return Identity{}, false
	}

	var id Identity
	if err := m.codec.Decode(m.opts.CookieName, c.Value, &id); err != nil {
		m.logger.DebugContext(r.Context(), "discarding invalid session cookie", slog.Any("error", err))
		return Identity{}, false
	}
	if id.UserID == 0 || id.Email == "" {
		return Identity{}, false
	}
	return id, true
}

// Middleware определяет сессию один раз на запрос и кладет личность в контекст.
// Запросы без сессии проходят без изменений.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := m.Current(r); ok {
			r = r.WithContext(NewContext(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// SetOAuthState сохраняет state OAuth в короткоживущей подписанной cookie
func (m *Manager) SetOAuthState(w http.ResponseWriter, state string) error {
	value, err := m.state.Encode(stateCookieName, state)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(stateCookieName, value, stateMaxAge))
	return nil
}

// ConsumeOAuthState возвращает сохраненный state и удаляет cookie
func (m *Manager) ConsumeOAuthState(w http.ResponseWriter, r *http.Request) (string, bool) {
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return "", false
	}
	http.SetCookie(w, m.cookie(stateCookieName, "", -1))

	var state string
	if err := m.state.Decode(stateCookieName, c.Value, &state); err != nil {
		m.logger.DebugContext(r.Context(), "discarding invalid oauth state cookie", slog.Any("error", err))
		return "", false
	}
	return state, state != ""
}

// Handle привязывает Manager к ответу одного запроса
type Handle struct {
	m *Manager
	w http.ResponseWriter
}

// Bind возвращает Handle для текущего ответа
func (m *Manager) Bind(w http.ResponseWriter) *Handle {
	return &Handle{m: m, w: w}
}

func (h *Handle) Start(id Identity) error {
	return h.m.Start(h.w, id)
}

func (h *Handle) End() {
	h.m.End(h.w)
}
