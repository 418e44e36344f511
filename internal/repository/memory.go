package repository

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore - потокобезопасная реализация обоих репозиториев в памяти.
// Используется в тестах вместо PostgresRepository.
type MemoryStore struct {
	mu        sync.RWMutex
	nextUser  uint
	nextEntry uint
	users     map[uint]*GormUser
	byEmail   map[string]uint
	entries   map[uint][]GormWatchlist
	now       func() time.Time
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uint]*GormUser),
		byEmail: make(map[string]uint),
		entries: make(map[uint][]GormWatchlist),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser создает пользователя; занятый email дает ErrDuplicateEmail
func (s *MemoryStore) CreateUser(ctx context.Context, email, pwHash string) (*GormUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email = NormalizeEmail(email)
	if _, exists := s.byEmail[email]; exists {
		return nil, ErrDuplicateEmail
	}
	u := s.insertUserLocked(email, pwHash)
	return &u, nil
}

// FirstOrCreateByEmail вставляет пользователя или возвращает существующего
func (s *MemoryStore) FirstOrCreateByEmail(ctx context.Context, email, pwHash string) (*GormUser, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email = NormalizeEmail(email)
	if id, exists := s.byEmail[email]; exists {
		u := *s.users[id]
		return &u, false, nil
	}
	u := s.insertUserLocked(email, pwHash)
	return &u, true, nil
}

func (s *MemoryStore) insertUserLocked(email, pwHash string) GormUser {
	s.nextUser++
	u := &GormUser{ID: s.nextUser, Email: email, PwHash: pwHash, CreatedAt: s.now()}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	return *u
}

// FindByEmail ищет пользователя по email без учета регистра
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*GormUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	u := *s.users[id]
	return &u, nil
}

// FindByID ищет пользователя по идентификатору
func (s *MemoryStore) FindByID(ctx context.Context, id uint) (*GormUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

// AddEntry добавляет запись; проверка и вставка выполняются под одной блокировкой
func (s *MemoryStore) AddEntry(ctx context.Context, entry *GormWatchlist) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[entry.UserID]; !ok {
		return ErrRecordNotFound
	}
	for _, e := range s.entries[entry.UserID] {
		if e.MovieID == entry.MovieID && e.MovieType == entry.MovieType {
			return ErrDuplicateEntry
		}
	}

	s.nextEntry++
	entry.ID = s.nextEntry
	if entry.AddedAt.IsZero() {
		entry.AddedAt = s.now()
	}
	s.entries[entry.UserID] = append(s.entries[entry.UserID], *entry)
	return nil
}

// RemoveEntry удаляет запись и возвращает число удаленных (0 или 1)
func (s *MemoryStore) RemoveEntry(ctx context.Context, userID uint, movieID int64, movieType string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[userID]
	for i, e := range list {
		if e.MovieID == movieID && e.MovieType == movieType {
			s.entries[userID] = append(list[:i:i], list[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// ListEntries возвращает копию списка, начиная с последней добавленной записи
func (s *MemoryStore) ListEntries(ctx context.Context, userID uint) ([]GormWatchlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := append(make([]GormWatchlist, 0, len(s.entries[userID])), s.entries[userID]...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// EntryExists проверяет наличие записи
func (s *MemoryStore) EntryExists(ctx context.Context, userID uint, movieID int64, movieType string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries[userID] {
		if e.MovieID == movieID && e.MovieType == movieType {
			return true, nil
		}
	}
	return false, nil
}

// Ping всегда успешен для хранилища в памяти
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
