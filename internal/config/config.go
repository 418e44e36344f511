package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации приложения
type Config struct {
	DBHost     string // Хост базы данных
	DBPort     string // Порт базы данных
	DBUser     string // Пользователь базы данных
	DBPassword string // Пароль базы данных
	DBName     string // Имя базы данных
	DBSSLMode  string // Режим SSL для базы данных

	HTTPPort    string // Адрес HTTP сервера
	StaticDir   string // Каталог со статикой фронтенда
	Environment string // development | production

	SessionSecret        string // Ключ подписи cookie сессии
	SessionEncryptionKey string // Необязательный ключ шифрования cookie
	SessionMaxAge        int    // Время жизни cookie в секундах
	CookieSecure         bool   // Флаг Secure для cookie

	TMDBAPIKey      string        // Токен TMDB
	TMDBBaseURL     string        // Базовый URL TMDB
	UpstreamTimeout time.Duration // Таймаут внешних вызовов

	OIDCProvider     string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	KafkaBrokers  []string // Список брокеров Kafka, пусто - без Kafka
	KafkaTopic    string   // Тема Kafka
	ServiceName   string   // Имя сервиса
	LogBufferSize int      // Размер буфера для логов
}

// requiredEnvVars перечисляет переменные, без которых сервис не стартует
var requiredEnvVars = []string{
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
	"SESSION_SECRET", "TMDB_API_KEY",
}

// LoadConfig загружает конфигурацию из .env файла и окружения
func LoadConfig() (*Config, error) {
	// .env необязателен: в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv собирает конфигурацию через функцию поиска переменных
func FromEnv(getenv func(string) string) (*Config, error) {
	for _, envVar := range requiredEnvVars {
		if value := getenv(envVar); value == "" {
			return nil, fmt.Errorf("missing required environment variable: %s", envVar)
		}
	}

	cfg := &Config{
		DBHost:               getenv("DB_HOST"),
		DBPort:               getenv("DB_PORT"),
		DBUser:               getenv("DB_USER"),
		DBPassword:           getenv("DB_PASSWORD"),
		DBName:               getenv("DB_NAME"),
		DBSSLMode:            withDefault(getenv("DB_SSLMODE"), "disable"),
		HTTPPort:             withDefault(getenv("HTTP_PORT"), ":5000"),
		StaticDir:            withDefault(getenv("STATIC_DIR"), "static"),
		Environment:          withDefault(getenv("ENVIRONMENT"), "development"),
		SessionSecret:        getenv("SESSION_SECRET"),
		SessionEncryptionKey: getenv("SESSION_ENCRYPTION_KEY"),
		TMDBAPIKey:           getenv("TMDB_API_KEY"),
		TMDBBaseURL:          withDefault(getenv("TMDB_BASE_URL"), "https://api.themoviedb.org/3"),
		OIDCProvider:         getenv("OIDC_PROVIDER"),
		OIDCClientID:         getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret:     getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:      getenv("OIDC_REDIRECT_URL"),
		KafkaTopic:           getenv("KAFKA_TOPIC"),
		ServiceName:          withDefault(getenv("SERVICE_NAME"), "moviepicker"),
	}

	if n := len(cfg.SessionEncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("invalid SESSION_ENCRYPTION_KEY length %d: must be 16, 24 or 32 bytes", n)
	}

	// Преобразуем KAFKA_BROKERS в []string, пустое значение отключает Kafka
	if raw := strings.TrimSpace(getenv("KAFKA_BROKERS")); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
		if cfg.KafkaTopic == "" {
			return nil, fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
		}
	}

	// Значение по умолчанию 100, если не задано корректно
	cfg.LogBufferSize, _ = strconv.Atoi(getenv("LOG_BUFFER_SIZE"))
	if cfg.LogBufferSize <= 0 {
		cfg.LogBufferSize = 100
	}

	cfg.SessionMaxAge, _ = strconv.Atoi(getenv("SESSION_MAX_AGE"))
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = 7 * 24 * 60 * 60
	}

	cfg.CookieSecure, _ = strconv.ParseBool(getenv("COOKIE_SECURE"))

	cfg.UpstreamTimeout = 10 * time.Second
	if raw := getenv("UPSTREAM_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT %q", raw)
		}
		cfg.UpstreamTimeout = d
	}

	return cfg, nil
}

// OAuthEnabled сообщает, настроен ли внешний провайдер идентификации
func (c *Config) OAuthEnabled() bool {
	return c.OIDCProvider != ""
}

// IsProduction скрывает детали внешних ошибок от клиента
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func withDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
