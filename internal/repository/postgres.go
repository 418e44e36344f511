package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Коды ошибок PostgreSQL
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresRepository реализует UserRepository и WatchlistRepository для PostgreSQL
type PostgresRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPostgresRepository создает новый экземпляр PostgresRepository
func NewPostgresRepository(db *gorm.DB, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// Ping проверяет доступность базы данных
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateUser создает пользователя; занятый email дает ErrDuplicateEmail
func (r *PostgresRepository) CreateUser(ctx context.Context, email, pwHash string) (*GormUser, error) {
	user := &GormUser{Email: NormalizeEmail(email), PwHash: pwHash}

	// Уникальность проверяет сам индекс при вставке
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			r.logger.WarnContext(ctx, "user already exists")
			return nil, ErrDuplicateEmail
		}
		r.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		return nil, err
	}

	r.logger.InfoContext(ctx, fmt.Sprintf("user created successfully with ID: %d", user.ID))
	return user, nil
}

// FirstOrCreateByEmail вставляет пользователя через ON CONFLICT DO NOTHING и,
// если строка уже была, читает существующую
func (r *PostgresRepository) FirstOrCreateByEmail(ctx context.Context, email, pwHash string) (*GormUser, bool, error) {
	user := &GormUser{Email: NormalizeEmail(email), PwHash: pwHash}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(user)
	if res.Error != nil {
		r.logger.ErrorContext(ctx, "failed to upsert user", slog.Any("error", res.Error))
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		r.logger.InfoContext(ctx, fmt.Sprintf("user created on first login with ID: %d", user.ID))
		return user, true, nil
	}

	existing, err := r.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FindByEmail ищет пользователя по email без учета регистра
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*GormUser, error) {
	var user GormUser
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to find user by email", slog.Any("error", err))
		return nil, err
	}
	return &user, nil
}

// FindByID ищет пользователя по идентификатору
func (r *PostgresRepository) FindByID(ctx context.Context, id uint) (*GormUser, error) {
	var user GormUser
	err := r.db.WithContext(ctx).Take(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		r.logger.ErrorContext(ctx, fmt.Sprintf("failed to find user with ID: %d", id), slog.Any("error", err))
		return nil, err
	}
	return &user, nil
}

// AddEntry добавляет медиа в список просмотра пользователя.
// Дубликат определяется уникальным индексом (user_id, movie_id, movie_type),
// поэтому из двух одновременных вставок успешна ровно одна.
func (r *PostgresRepository) AddEntry(ctx context.Context, entry *GormWatchlist) error {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		switch {
		case isUniqueViolation(err):
			r.logger.WarnContext(ctx, fmt.Sprintf("media already in watchlist for media ID: %d and user ID: %d", entry.MovieID, entry.UserID))
			return ErrDuplicateEntry
		case isForeignKeyViolation(err):
			r.logger.WarnContext(ctx, fmt.Sprintf("watchlist owner does not exist, user ID: %d", entry.UserID))
			return ErrRecordNotFound
		}
		r.logger.ErrorContext(ctx, fmt.Sprintf("failed to add media to watchlist for media ID: %d and user ID: %d", entry.MovieID, entry.UserID), slog.Any("error", err))
		return err
	}

	r.logger.InfoContext(ctx, fmt.Sprintf("media added to watchlist successfully for media ID: %d and user ID: %d", entry.MovieID, entry.UserID))
	return nil
}

// RemoveEntry удаляет медиа из списка просмотра пользователя.
// Отсутствующая запись не является ошибкой.
func (r *PostgresRepository) RemoveEntry(ctx context.Context, userID uint, movieID int64, movieType string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND movie_id = ? AND movie_type = ?", userID, movieID, movieType).
		Delete(&GormWatchlist{})
	if res.Error != nil {
		r.logger.ErrorContext(ctx, fmt.Sprintf("failed to remove media from watchlist for media ID: %d and user ID: %d", movieID, userID), slog.Any("error", res.Error))
		return 0, res.Error
	}

	r.logger.InfoContext(ctx, fmt.Sprintf("watchlist remove for media ID: %d and user ID: %d affected %d rows", movieID, userID, res.RowsAffected))
	return res.RowsAffected, nil
}

// ListEntries получает список просмотра пользователя
func (r *PostgresRepository) ListEntries(ctx context.Context, userID uint) ([]GormWatchlist, error) {
	watchlists := make([]GormWatchlist, 0)
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at DESC, id DESC").
		Find(&watchlists).Error; err != nil {
		r.logger.ErrorContext(ctx, fmt.Sprintf("failed to get watchlist for user ID: %d", userID), slog.Any("error", err))
		return nil, err
	}

	r.logger.DebugContext(ctx, fmt.Sprintf("watchlist fetched successfully for user ID: %d", userID))
	return watchlists, nil
}

// EntryExists проверяет, находится ли медиа в списке просмотра пользователя
func (r *PostgresRepository) EntryExists(ctx context.Context, userID uint, movieID int64, movieType string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&GormWatchlist{}).
		Where("user_id = ? AND movie_id = ? AND movie_type = ?", userID, movieID, movieType).
		Count(&count).Error; err != nil {
		r.logger.ErrorContext(ctx, fmt.Sprintf("failed to check media in watchlist for media ID: %d and user ID: %d", movieID, userID), slog.Any("error", err))
		return false, err
	}
	return count > 0, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
