package service

import (
	"errors"
	"fmt"
)

// Таксономия ошибок сервисного слоя. Транспорт отображает их в HTTP-статусы.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrOAuth        = errors.New("oauth login failed")
	ErrGateway      = errors.New("upstream gateway error")

	// ErrOAuthDisabled - провайдер идентификации не настроен
	ErrOAuthDisabled = errors.New("oauth not configured")
)

// Конкретные причины ErrValidation; errors.Is(err, ErrValidation) верно для каждой.
var (
	ErrMissingField     = fmt.Errorf("%w: missing required field", ErrValidation)
	ErrPasswordTooShort = fmt.Errorf("%w: password too short", ErrValidation)
	ErrPasswordTooLong  = fmt.Errorf("%w: password too long", ErrValidation)
	ErrMalformedEmail   = fmt.Errorf("%w: malformed email", ErrValidation)
	ErrInvalidMediaType = fmt.Errorf("%w: media type must be movie or tv", ErrValidation)
	ErrInvalidItemID    = fmt.Errorf("%w: item id must be positive", ErrValidation)
)
