package repository

import (
	"time"
)

// Тип элемента списка просмотра
const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
)

// OAuthPasswordSentinel помечает пользователей, вошедших через провайдера.
// Это не bcrypt-хеш, поэтому проверка пароля для таких записей всегда неуспешна.
const OAuthPasswordSentinel = "!oauth"

// GormUser представляет модель пользователя в базе данных
type GormUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	PwHash    string    `gorm:"column:pw_hash;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`

	Watchlist []GormWatchlist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName возвращает имя таблицы для модели GormUser
func (GormUser) TableName() string {
	return "users"
}

// IsOAuthOnly сообщает, что учетная запись создана провайдером идентификации
func (u *GormUser) IsOAuthOnly() bool {
	return u.PwHash == OAuthPasswordSentinel
}

// GormWatchlist представляет модель списка просмотра в базе данных
type GormWatchlist struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	UserID      uint     `gorm:"not null;uniqueIndex:idx_watchlist_user_movie,priority:1" json:"-"`
	MovieID     int64    `gorm:"not null;uniqueIndex:idx_watchlist_user_movie,priority:2" json:"movie_id"`
	MovieType   string   `gorm:"not null;default:movie;uniqueIndex:idx_watchlist_user_movie,priority:3" json:"movie_type"`
	Title       string   `gorm:"not null" json:"title"`
	PosterPath  *string  `json:"poster_path"`
	VoteAverage *float64 `json:"vote_average"`
	ReleaseDate *string  `json:"release_date"`
	// AddedAt заполняется при вставке, если не задан
	AddedAt time.Time `gorm:"not null;index" json:"added_at"`
}

// TableName возвращает имя таблицы для модели GormWatchlist
func (GormWatchlist) TableName() string {
	return "watchlist"
}
