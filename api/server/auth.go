package server

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/watchlist-kata/moviepicker/internal/service"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if _, err := s.Accounts.Signup(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, service.ErrConflict) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Account created")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if _, err := s.Accounts.Login(r.Context(), s.Sessions.Bind(w), req.Email, req.Password); err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Logged in")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Accounts.Logout(r.Context(), s.Sessions.Bind(w))
	writeSuccess(w, http.StatusOK, "Logged out")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Accounts.WhoAmI(r.Context()))
}

// handleOAuthStart сохраняет state в cookie и перенаправляет к провайдеру
func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if !s.Accounts.OAuthEnabled() {
		s.fail(w, r, service.ErrOAuthDisabled)
		return
	}

	state := uuid.NewString()
	if err := s.Sessions.SetOAuthState(w, state); err != nil {
		s.fail(w, r, err)
		return
	}
	url, err := s.Accounts.OAuthURL(state)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// oauthDoneTemplate сообщает окну-родителю об успешном входе и закрывает попап
var oauthDoneTemplate = template.Must(template.New("oauth").Parse(`<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body>
<p>Signed in as {{.}}. You can close this window.</p>
<script>
if (window.opener) {
  window.opener.postMessage({type: "oauth_success"}, window.location.origin);
}
window.close();
</script>
</body>
</html>
`))

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if !s.Accounts.OAuthEnabled() {
		s.fail(w, r, service.ErrOAuthDisabled)
		return
	}

	if msg := r.URL.Query().Get("error"); msg != "" {
		s.Logger.WarnContext(r.Context(), "oauth provider returned error", slog.String("error", msg))
		writeError(w, http.StatusBadRequest, "OAuth login was cancelled")
		return
	}

	state, ok := s.Sessions.ConsumeOAuthState(w, r)
	if !ok || state != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	user, err := s.Accounts.OAuthLogin(r.Context(), s.Sessions.Bind(w), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := oauthDoneTemplate.Execute(w, user.Email); err != nil {
		s.Logger.ErrorContext(r.Context(), "failed to render oauth page", slog.Any("error", err))
	}
}
