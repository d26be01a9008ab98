package users

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/models"
)

// MemoryRepository keeps users in process memory
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[uuid.UUID]models.User)}
}

// CreateUser stores a new user
func (r *MemoryRepository) CreateUser(_ context.Context, user models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return &user, nil
}

// GetUser retrieves a user by ID
func (r *MemoryRepository) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// UpdatePreferences replaces a user's preferences
func (r *MemoryRepository) UpdatePreferences(_ context.Context, id uuid.UUID, prefs models.Preferences) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Preferences = prefs
	r.users[id] = u
	return &u, nil
}
