package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/placepick/go/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS guest_users (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL,
    preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	createUser = `INSERT INTO guest_users (id, name, preferences, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, name, preferences, created_at`

	getUser = `SELECT id, name, preferences, created_at FROM guest_users WHERE id = $1`

	updatePreferences = `UPDATE guest_users SET preferences = $2 WHERE id = $1
RETURNING id, name, preferences, created_at`
)

// DBTX is the part of a pgx pool or transaction the repository uses
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements user data access on Postgres
type Repository struct {
	db DBTX
}

// NewRepository creates a new users repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the guest_users table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create guest_users table: %w", err)
	}
	return nil
}

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	row := r.db.QueryRow(ctx, createUser, user.ID, user.Name, prefs, user.CreatedAt)
	return scanUser(row)
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, getUser, id))
}

// UpdatePreferences replaces a user's preferences
func (r *Repository) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.Preferences) (*models.User, error) {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	return scanUser(r.db.QueryRow(ctx, updatePreferences, id, raw))
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		user      models.User
		prefs     []byte
		createdAt time.Time
	)
	if err := row.Scan(&user.ID, &user.Name, &prefs, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if err := json.Unmarshal(prefs, &user.Preferences); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	user.CreatedAt = createdAt.UTC()
	return &user, nil
}
