package utils

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/watchlist-kata/moviepicker/internal/config"
	"github.com/watchlist-kata/moviepicker/internal/repository"
)

// DSN собирает строку подключения к PostgreSQL
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
}

// ConnectToDatabase устанавливает подключение к базе данных PostgreSQL
func ConnectToDatabase(cfg *config.Config) (*gorm.DB, error) {
	return Open(DSN(cfg))
}

// Open подключается по готовой DSN. TranslateError переводит нарушения
// ограничений в gorm.ErrDuplicatedKey / gorm.ErrForeignKeyViolated.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate создает таблицы users и watchlist с ограничениями уникальности
// и каскадным удалением записей вместе с пользователем
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&repository.GormUser{}, &repository.GormWatchlist{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
