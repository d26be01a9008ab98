package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is how long a room lives after creation.
const DefaultTTL = 30 * time.Minute

const maxCodeAttempts = 10

// UserDirectory resolves user ids. It must return an apperr NotFound error
// for unknown users.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	TTL       time.Duration
	Store     Store
	Scheduler *Scheduler
	Codes     CodeGenerator
	Session   SessionConfig
}

// Registry maps room ids and join codes to live sessions. It is the only way
// to get hold of a mutable room.
type Registry struct {
	users     UserDirectory
	store     Store
	scheduler *Scheduler
	codes     CodeGenerator
	ttl       time.Duration
	clock     clockwork.Clock
	session   SessionConfig

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	byCode   map[string]uuid.UUID
}

// CreateRoomRequest is the input of CreateRoom.
type CreateRoomRequest struct {
	Name      string
	CreatorID uuid.UUID
	Occasion  string
	Mood      string
}

func NewRegistry(users UserDirectory, cfg RegistryConfig) *Registry {
	sc := cfg.Session.withDefaults()
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(sc.Clock.Now)
	}
	if cfg.Codes == nil {
		cfg.Codes = RandomCode
	}
	return &Registry{
		users:     users,
		store:     cfg.Store,
		scheduler: cfg.Scheduler,
		codes:     cfg.Codes,
		ttl:       cfg.TTL,
		clock:     sc.Clock,
		session:   sc,
		sessions:  make(map[uuid.UUID]*Session),
		byCode:    make(map[string]uuid.UUID),
	}
}

// CreateRoom opens a new room with the creator as its only member.
func (r *Registry) CreateRoom(ctx context.Context, req CreateRoomRequest) (models.Room, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Room{}, apperr.Validation("room name is required")
	}
	if len(name) > 80 {
		return models.Room{}, apperr.Validation("room name must be at most 80 characters")
	}
	creator, err := r.users.GetUser(ctx, req.CreatorID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return models.Room{}, apperr.Validation("creator %s is not a known user", req.CreatorID)
		}
		return models.Room{}, fmt.Errorf("resolve creator: %w", err)
	}

	now := r.clock.Now()
	id := uuid.New()
	expiresAt := now.Add(r.ttl)

	code, err := r.reserveCode(ctx, id, expiresAt)
	if err != nil {
		return models.Room{}, err
	}

	sess := newSession(sessionParams{
		ID:        id,
		Code:      code,
		Name:      name,
		Occasion:  strings.TrimSpace(req.Occasion),
		Mood:      strings.TrimSpace(req.Mood),
		Creator:   *creator,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, r.session)

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()

	snap := sess.Snapshot()
	if r.session.Snapshots != nil {
		r.session.Snapshots.Enqueue(snap)
	}

	log.Info().
		Str("room_id", id.String()).
		Str("code", code).
		Str("creator_id", creator.ID.String()).
		Time("expires_at", expiresAt).
		Msg("room created")
	return snap, nil
}

// reserveCode finds a code that is free both locally and in the store. A
// collision is retried, never overwritten.
func (r *Registry) reserveCode(ctx context.Context, id uuid.UUID, expiresAt time.Time) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.codes()
		if err != nil {
			return "", err
		}
		code = NormalizeCode(code)

		r.mu.Lock()
		if owner, taken := r.byCode[code]; taken {
			if s, ok := r.sessions[owner]; !ok || !s.Expired() {
				r.mu.Unlock()
				continue
			}
		}
		r.byCode[code] = id
		r.mu.Unlock()

		ok, err := r.store.ReserveCode(ctx, code, id, expiresAt)
		if err != nil || !ok {
			r.mu.Lock()
			if r.byCode[code] == id {
				delete(r.byCode, code)
			}
			r.mu.Unlock()
			if err != nil {
				return "", fmt.Errorf("reserve room code: %w", err)
			}
			continue
		}
		return code, nil
	}
	return "", fmt.Errorf("no free room code after %d attempts", maxCodeAttempts)
}

// JoinRoom adds userID to the room with the given code. Codes are matched
// case-insensitively.
func (r *Registry) JoinRoom(ctx context.Context, code string, userID uuid.UUID, location *models.Location) (models.Room, error) {
	code = NormalizeCode(code)
	if code == "" {
		return models.Room{}, apperr.Validation("room code is required")
	}
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return models.Room{}, err
	}
	sess, err := r.sessionByCode(ctx, code)
	if err != nil {
		return models.Room{}, err
	}
	return sess.Join(*user, location)
}

// GetRoom returns the snapshot of a live room.
func (r *Registry) GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error) {
	sess, err := r.Session(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	return sess.Snapshot(), nil
}

// Session returns the live session for roomID, loading it from the store if
// this process has not seen it. Expired rooms are evicted and reported as not
// found.
func (r *Registry) Session(ctx context.Context, roomID uuid.UUID) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[roomID]
	r.mu.RUnlock()

	if ok {
		if sess.Expired() {
			r.evict(ctx, sess)
			return nil, apperr.NotFound("room %s has expired", roomID)
		}
		return sess, nil
	}
	return r.load(ctx, roomID)
}

func (r *Registry) sessionByCode(ctx context.Context, code string) (*Session, error) {
	r.mu.RLock()
	id, ok := r.byCode[code]
	r.mu.RUnlock()

	if !ok {
		var err error
		id, err = r.store.LookupCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("no room with code %s", code)
		}
		if err != nil {
			return nil, fmt.Errorf("lookup room code: %w", err)
		}
	}
	sess, err := r.Session(ctx, id)
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("no room with code %s", code)
	}
	return sess, err
}

func (r *Registry) load(ctx context.Context, roomID uuid.UUID) (*Session, error) {
	snap, err := r.store.Load(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("room %s not found", roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if snap.Expired(r.clock.Now()) {
		return nil, apperr.NotFound("room %s has expired", roomID)
	}

	r.mu.Lock()
	if existing, ok := r.sessions[roomID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	sess := restoreSession(snap, r.session)
	r.sessions[roomID] = sess
	r.byCode[sess.Code()] = roomID
	r.mu.Unlock()

	log.Info().
		Str("room_id", roomID.String()).
		Uint64("seq", snap.Seq).
		Str("status", string(snap.Status)).
		Msg("room restored from store")

	if r.scheduler != nil && sess.Ticking() {
		r.scheduler.Run(context.WithoutCancel(ctx), sess)
	}
	return sess, nil
}

// evict removes an expired session everywhere.
func (r *Registry) evict(ctx context.Context, sess *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[sess.ID()]; ok && cur == sess {
		delete(r.sessions, sess.ID())
	}
	if r.byCode[sess.Code()] == sess.ID() {
		delete(r.byCode, sess.Code())
	}
	r.mu.Unlock()

	sess.close()
	if r.scheduler != nil {
		r.scheduler.Stop(sess.ID())
	}
	if err := r.store.Delete(ctx, sess.ID(), sess.Code()); err != nil {
		log.Warn().Err(err).Str("room_id", sess.ID().String()).Msg("failed to delete expired room from store")
	}
	log.Info().Str("room_id", sess.ID().String()).Str("code", sess.Code()).Msg("room expired")
}

// Sweep evicts every expired room and returns how many were removed.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.RLock()
	var expired []*Session
	for _, s := range r.sessions {
		if s.Expired() {
			expired = append(expired, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range expired {
		r.evict(ctx, s)
	}
	if _, err := r.store.DeleteExpired(ctx, r.clock.Now()); err != nil {
		log.Warn().Err(err).Msg("failed to sweep expired rooms from store")
	}
	return len(expired)
}

// RunSweeper evicts expired rooms every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("room sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room sweeper shutting down")
			return
		case <-ticker.Chan():
			if n := r.Sweep(ctx); n > 0 {
				log.Info().Int("expired", n).Msg("swept expired rooms")
			}
		}
	}
}

// Len is the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
