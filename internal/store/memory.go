package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/models"
)

// MemoryStore keeps everything in process memory. It backs tests and
// the "memory://" development mode.
type MemoryStore struct {
	mu     sync.RWMutex
	user   map[string]map[string]string
	app    map[string]string
	files  map[string]map[string]*models.StoredFile // owner -> path -> file
	seq    int64
	shares map[string]*models.Share
	events map[string]*models.CalendarEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		user:   make(map[string]map[string]string),
		app:    make(map[string]string),
		files:  make(map[string]map[string]*models.StoredFile),
		shares: make(map[string]*models.Share),
		events: make(map[string]*models.CalendarEvent),
	}
}

func (m *MemoryStore) GetUserValue(_ context.Context, userID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user[userID][key], nil
}

func (m *MemoryStore) SetUserValue(_ context.Context, userID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user[userID] == nil {
		m.user[userID] = make(map[string]string)
	}
	m.user[userID][key] = value
	return nil
}

func (m *MemoryStore) DeleteUserValue(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.user[userID], key)
	return nil
}

func (m *MemoryStore) GetAppValue(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.app[key], nil
}

func (m *MemoryStore) SetAppValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.app[key] = value
	return nil
}

func (m *MemoryStore) UsersWithValue(_ context.Context, key, value string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var users []string
	for uid, values := range m.user {
		if v, ok := values[key]; ok && v == value {
			users = append(users, uid)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (m *MemoryStore) UpsertFile(_ context.Context, file *models.StoredFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	file.IndexedAt = time.Now().UTC()
	byPath := m.files[file.Owner]
	if byPath == nil {
		byPath = make(map[string]*models.StoredFile)
		m.files[file.Owner] = byPath
	}
	if existing, ok := byPath[file.Path]; ok {
		file.FileID = existing.FileID
	} else {
		m.seq++
		file.FileID = m.seq
	}
	cp := *file
	byPath[file.Path] = &cp
	return nil
}

func (m *MemoryStore) GetFile(_ context.Context, owner string, fileID int64) (*models.StoredFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.files[owner] {
		if f.FileID == fileID {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListFiles(_ context.Context, owner string) ([]*models.StoredFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := make([]*models.StoredFile, 0, len(m.files[owner]))
	for _, f := range m.files[owner] {
		cp := *f
		files = append(files, &cp)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (m *MemoryStore) PruneFiles(_ context.Context, owner string, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for path, f := range m.files[owner] {
		if f.IndexedAt.Before(before) {
			delete(m.files[owner], path)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) InsertShare(_ context.Context, share *models.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *share
	m.shares[share.ID] = &cp
	return nil
}

func (m *MemoryStore) GetShare(_ context.Context, id string) (*models.Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.shares[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStore) GetShareByToken(_ context.Context, token string) (*models.Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shares {
		if s.Token == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) SetSharePassword(_ context.Context, id string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.shares[id]; ok {
		s.PasswordHash = hash
	}
	return nil
}

func (m *MemoryStore) SetShareExpiration(_ context.Context, id string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.shares[id]; ok {
		s.ExpiresAt = expiresAt
	}
	return nil
}

func (m *MemoryStore) SaveCalendarEvent(_ context.Context, event *models.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.events[event.ID] = &cp
	return nil
}

func (m *MemoryStore) GetCalendarEvent(_ context.Context, userID, id string) (*models.CalendarEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.events[id]; ok && e.UserID == userID {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStore) CalendarEventsBetween(_ context.Context, userID string, from, to time.Time) ([]models.CalendarEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []models.CalendarEvent
	for _, e := range m.events {
		if e.UserID == userID && !e.Start.Before(from) && e.Start.Before(to) {
			events = append(events, *e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}
