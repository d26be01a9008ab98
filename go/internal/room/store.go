package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/models"
)

// ErrNotFound is returned by stores when a room or code is unknown.
var ErrNotFound = errors.New("room not found")

// Store persists room snapshots so a registry can find rooms it has not
// loaded yet. Implementations must treat an expired room as absent.
type Store interface {
	Save(ctx context.Context, room models.Room) error
	Load(ctx context.Context, id uuid.UUID) (models.Room, error)
	LookupCode(ctx context.Context, code string) (uuid.UUID, error)
	// ReserveCode claims code for id until expiresAt. It returns false when
	// another live room holds the code.
	ReserveCode(ctx context.Context, code string, id uuid.UUID, expiresAt time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID, code string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type codeClaim struct {
	roomID    uuid.UUID
	expiresAt time.Time
}

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]models.Room
	codes map[string]codeClaim
	now   func() time.Time
}

// NewMemoryStore creates an empty store. now defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		rooms: make(map[uuid.UUID]models.Room),
		codes: make(map[string]codeClaim),
		now:   now,
	}
}

func (m *MemoryStore) Save(_ context.Context, room models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[room.ID]; ok && cur.Seq > room.Seq {
		return nil
	}
	m.rooms[room.ID] = room
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id uuid.UUID) (models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok || r.Expired(m.now()) {
		return models.Room{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) LookupCode(_ context.Context, code string) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.codes[code]
	if !ok || !m.now().Before(c.expiresAt) {
		return uuid.Nil, ErrNotFound
	}
	return c.roomID, nil
}

func (m *MemoryStore) ReserveCode(_ context.Context, code string, id uuid.UUID, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.codes[code]; ok && c.roomID != id && m.now().Before(c.expiresAt) {
		return false, nil
	}
	m.codes[code] = codeClaim{roomID: id, expiresAt: expiresAt}
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	if c, ok := m.codes[code]; ok && c.roomID == id {
		delete(m.codes, code)
	}
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.rooms {
		if r.Expired(now) {
			delete(m.rooms, id)
			n++
		}
	}
	for code, c := range m.codes {
		if !now.Before(c.expiresAt) {
			delete(m.codes, code)
		}
	}
	return n, nil
}
