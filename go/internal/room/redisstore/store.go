// Package redisstore keeps room snapshots in Redis so rooms survive a
// restart and can be found by any instance. Keys expire with their room.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/mcdev12/placepick/go/internal/room"
	"github.com/redis/go-redis/v9"
)

const (
	roomPrefix = "placepick:room:"
	codePrefix = "placepick:code:"
)

// Store implements room.Store on Redis.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

var _ room.Store = (*Store)(nil)

// New creates a store. now defaults to time.Now and is only used to turn
// room expiry times into key TTLs.
func New(client *redis.Client, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{client: client, now: now}
}

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DB = db

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func roomKey(id uuid.UUID) string { return roomPrefix + id.String() }
func codeKey(code string) string  { return codePrefix + code }

// Save writes the snapshot unless a newer one is already stored.
func (s *Store) Save(ctx context.Context, r models.Room) error {
	ttl := r.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode room: %w", err)
	}

	key := roomKey(r.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var cur struct {
				Seq uint64 `json:"seq"`
			}
			if json.Unmarshal(raw, &cur) == nil && cur.Seq > r.Seq {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// A concurrent writer got there first; its snapshot is at least as new.
		return nil
	}
	if err != nil {
		return fmt.Errorf("save room %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (models.Room, error) {
	raw, err := s.client.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Room{}, room.ErrNotFound
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("load room %s: %w", id, err)
	}
	var r models.Room
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.Room{}, fmt.Errorf("decode room %s: %w", id, err)
	}
	if r.Expired(s.now()) {
		return models.Room{}, room.ErrNotFound
	}
	return r, nil
}

func (s *Store) LookupCode(ctx context.Context, code string) (uuid.UUID, error) {
	raw, err := s.client.Get(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, room.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup code %s: %w", code, err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt code entry %s: %w", code, err)
	}
	return id, nil
}

func (s *Store) ReserveCode(ctx context.Context, code string, id uuid.UUID, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return false, fmt.Errorf("code %s reserved with expiry in the past", code)
	}
	ok, err := s.client.SetNX(ctx, codeKey(code), id.String(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve code %s: %w", code, err)
	}
	if ok {
		return true, nil
	}
	owner, err := s.LookupCode(ctx, code)
	if errors.Is(err, room.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == id, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID, code string) error {
	if err := s.client.Del(ctx, roomKey(id)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	owner, err := s.LookupCode(ctx, code)
	if errors.Is(err, room.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner == id {
		if err := s.client.Del(ctx, codeKey(code)).Err(); err != nil {
			return fmt.Errorf("delete code %s: %w", code, err)
		}
	}
	return nil
}

// DeleteExpired is a no-op: Redis expires keys on its own.
func (s *Store) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
