package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/watchlist-kata/moviepicker/internal/service"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeSuccess(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, successResponse{Success: true, Message: msg})
}

// decodeJSON читает тело запроса в dst и проверяет теги validate.
// Ошибки возвращаются как service.ErrValidation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", service.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "required" {
					return service.ErrMissingField
				}
			}
		}
		return fmt.Errorf("%w: %v", service.ErrValidation, err)
	}
	return nil
}

// statusFor отображает таксономию ошибок сервисов в HTTP-статус
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrOAuth), errors.Is(err, service.ErrGateway):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrOAuthDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor возвращает текст ошибки для клиента. Внутренние детали не раскрываются.
func messageFor(err error) string {
	switch {
	case errors.Is(err, service.ErrMissingField):
		return "Missing required fields"
	case errors.Is(err, service.ErrPasswordTooShort):
		return fmt.Sprintf("Password must be at least %d characters", service.MinPasswordLength)
	case errors.Is(err, service.ErrPasswordTooLong):
		return "Password must be at most 72 bytes"
	case errors.Is(err, service.ErrMalformedEmail):
		return "Invalid email format"
	case errors.Is(err, service.ErrInvalidMediaType):
		return "movieType must be 'movie' or 'tv'"
	case errors.Is(err, service.ErrInvalidItemID):
		return "movieId must be a positive integer"
	case errors.Is(err, service.ErrValidation):
		return "Invalid request"
	case errors.Is(err, service.ErrUnauthorized):
		return "Not authenticated"
	case errors.Is(err, service.ErrConflict):
		return "Already exists"
	case errors.Is(err, service.ErrOAuth):
		return "OAuth login failed"
	case errors.Is(err, service.ErrGateway):
		return "Upstream request failed"
	case errors.Is(err, service.ErrOAuthDisabled):
		return "OAuth not configured"
	default:
		return "Internal server error"
	}
}

// fail пишет ответ для ошибки сервиса; 5xx логируются
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.ErrorContext(r.Context(), fmt.Sprintf("%s %s failed", r.Method, r.URL.Path), slog.Any("error", err))
	}
	writeError(w, status, messageFor(err))
}

// failUpstream пишет 502 для сбоя внешнего сервиса; детали только вне production
func (s *Server) failUpstream(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if !errors.Is(err, service.ErrGateway) {
		s.fail(w, r, err)
		return
	}
	resp := errorResponse{Error: msg}
	if !s.Production {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusBadGateway, resp)
}
