package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/watchlist-kata/moviepicker/internal/repository"
	"github.com/watchlist-kata/moviepicker/internal/session"
)

// MinPasswordLength - минимальная длина пароля в символах
const MinPasswordLength = 6

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Sessions - сессия текущего клиента в рамках одного запроса
type Sessions interface {
	Start(id session.Identity) error
	End()
}

// IdentityProvider обменивает код авторизации на email пользователя
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (email string, err error)
}

// Me - ответ на запрос "кто я"
type Me struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
}

// AccountService реализует регистрацию, вход и выход
type AccountService struct {
	users      repository.UserRepository
	idp        IdentityProvider
	logger     *slog.Logger
	bcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAccountService создает новый экземпляр AccountService. idp может быть nil,
// тогда вход через провайдера отключен.
func NewAccountService(users repository.UserRepository, idp IdentityProvider, logger *slog.Logger) *AccountService {
	return &AccountService{users: users, idp: idp, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost меняет стоимость хеширования (в тестах - bcrypt.MinCost)
func (s *AccountService) WithBcryptCost(cost int) *AccountService {
	s.bcryptCost = cost
	return s
}

// validateCredentials проверяет поля регистрации и возвращает нормализованный email
func validateCredentials(email, password string) (string, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrMissingField
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	if !emailRegex.MatchString(email) {
		return "", ErrMalformedEmail
	}
	return email, nil
}

// Signup регистрирует пользователя. Сессия не создается.
func (s *AccountService) Signup(ctx context.Context, email, password string) (*repository.GormUser, error) {
	email, err := validateCredentials(email, password)
	if err != nil {
		s.logger.WarnContext(ctx, "signup rejected", slog.Any("error", err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, fmt.Sprintf("user signed up with ID: %d", user.ID))
	return user, nil
}

// Login проверяет пароль и открывает сессию. Неизвестный email и неверный
// пароль дают одинаковый ErrUnauthorized.
func (s *AccountService) Login(ctx context.Context, sess Sessions, email, password string) (*repository.GormUser, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingField
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrRecordNotFound) {
			return nil, fmt.Errorf("find user: %w", err)
		}
		// Сравнение с фиктивным хешем выравнивает время ответа
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		s.logger.InfoContext(ctx, "login failed: unknown email")
		return nil, ErrUnauthorized
	}

	if user.IsOAuthOnly() || bcrypt.CompareHashAndPassword([]byte(user.PwHash), []byte(password)) != nil {
		s.logger.InfoContext(ctx, fmt.Sprintf("login failed for user ID: %d", user.ID))
		return nil, ErrUnauthorized
	}

	if err := sess.Start(session.Identity{UserID: user.ID, Email: user.Email}); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	s.logger.InfoContext(ctx, fmt.Sprintf("user logged in with ID: %d", user.ID))
	return user, nil
}

func (s *AccountService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), s.bcryptCost)
	})
	return s.dummyHash
}

// OAuthEnabled сообщает, настроен ли провайдер
func (s *AccountService) OAuthEnabled() bool {
	return s.idp != nil
}

// OAuthURL возвращает адрес страницы входа провайдера
func (s *AccountService) OAuthURL(state string) (string, error) {
	if s.idp == nil {
		return "", ErrOAuthDisabled
	}
	return s.idp.AuthCodeURL(state), nil
}

// OAuthLogin обменивает код на email, создает пользователя при первом входе
// и открывает сессию
func (s *AccountService) OAuthLogin(ctx context.Context, sess Sessions, code string) (*repository.GormUser, error) {
	if s.idp == nil {
		return nil, ErrOAuthDisabled
	}
	if code == "" {
		return nil, ErrMissingField
	}

	email, err := s.idp.Exchange(ctx, code)
	if err != nil {
		s.logger.ErrorContext(ctx, "oauth code exchange failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrOAuth, err)
	}
	email = repository.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: provider returned no email", ErrOAuth)
	}

	user, created, err := s.users.FirstOrCreateByEmail(ctx, email, repository.OAuthPasswordSentinel)
	if err != nil {
		return nil, fmt.Errorf("upsert oauth user: %w", err)
	}
	if created {
		s.logger.InfoContext(ctx, fmt.Sprintf("oauth user created with ID: %d", user.ID))
	}

	if err := sess.Start(session.Identity{UserID: user.ID, Email: user.Email}); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	s.logger.InfoContext(ctx, fmt.Sprintf("user logged in via oauth with ID: %d", user.ID))
	return user, nil
}

// Logout закрывает сессию; всегда успешен
func (s *AccountService) Logout(ctx context.Context, sess Sessions) {
	sess.End()
	if id, ok := session.FromContext(ctx); ok {
		s.logger.InfoContext(ctx, fmt.Sprintf("user logged out with ID: %d", id.UserID))
	}
}

// WhoAmI читает личность, определенную для текущего запроса
func (s *AccountService) WhoAmI(ctx context.Context) Me {
	id, ok := session.FromContext(ctx)
	if !ok {
		return Me{}
	}
	return Me{Authenticated: true, Email: id.Email}
}
