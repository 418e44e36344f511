package repository

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrRecordNotFound возвращается, когда запись не найдена
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateEntry возвращается при попытке создать дублирующуюся запись
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrDuplicateEmail возвращается при регистрации занятого email
	ErrDuplicateEmail = errors.New("duplicate email")
)

// UserRepository хранит учетные данные пользователей
type UserRepository interface {
	CreateUser(ctx context.Context, email, pwHash string) (*GormUser, error)
	// FirstOrCreateByEmail атомарно вставляет пользователя или возвращает существующего
	FirstOrCreateByEmail(ctx context.Context, email, pwHash string) (user *GormUser, created bool, err error)
	FindByEmail(ctx context.Context, email string) (*GormUser, error)
	FindByID(ctx context.Context, id uint) (*GormUser, error)
}

// WatchlistRepository представляет интерфейс репозитория для работы со списками просмотра
type WatchlistRepository interface {
	AddEntry(ctx context.Context, entry *GormWatchlist) error
	// RemoveEntry возвращает число удаленных строк (0 или 1)
	RemoveEntry(ctx context.Context, userID uint, movieID int64, movieType string) (int64, error)
	// ListEntries возвращает записи, начиная с последней добавленной
	ListEntries(ctx context.Context, userID uint) ([]GormWatchlist, error)
	EntryExists(ctx context.Context, userID uint, movieID int64, movieType string) (bool, error)
}

// NormalizeEmail приводит email к виду, в котором он хранится
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
