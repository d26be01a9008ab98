package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/rs/zerolog/log"
)

type WriterConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	// SaveTimeout bounds a single store write.
	SaveTimeout time.Duration
}

func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		MaxRetries:  3,
		RetryDelay:  200 * time.Millisecond,
		SaveTimeout: 5 * time.Second,
	}
}

// SnapshotWriter persists room snapshots off the request path. Pending
// snapshots are coalesced per room so only the newest one is written.
type SnapshotWriter struct {
	store  Store
	config WriterConfig

	mu      sync.Mutex
	pending map[uuid.UUID]models.Room
	running bool
	wake    chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewSnapshotWriter(store Store, cfg WriterConfig) *SnapshotWriter {
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = DefaultWriterConfig().SaveTimeout
	}
	return &SnapshotWriter{
		store:   store,
		config:  cfg,
		pending: make(map[uuid.UUID]models.Room),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Enqueue queues room for writing, superseding any older pending snapshot of
// the same room. It never blocks.
func (w *SnapshotWriter) Enqueue(room models.Room) {
	w.mu.Lock()
	if cur, ok := w.pending[room.ID]; !ok || cur.Seq <= room.Seq {
		w.pending[room.ID] = room
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending is the number of rooms waiting to be written.
func (w *SnapshotWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *SnapshotWriter) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("snapshot writer already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Int("max_retries", w.config.MaxRetries).
		Dur("retry_delay", w.config.RetryDelay).
		Msg("snapshot writer started")
	return nil
}

// Stop halts the loop and writes whatever is still pending.
func (w *SnapshotWriter) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("snapshot writer not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.Flush(ctx)

	log.Info().Msg("snapshot writer stopped")
	return nil
}

func (w *SnapshotWriter) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-w.wake:
			w.Flush(ctx)
		}
	}
}

// Flush writes every pending snapshot now and returns how many were saved.
func (w *SnapshotWriter) Flush(ctx context.Context) int {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[uuid.UUID]models.Room, len(batch))
	w.mu.Unlock()

	saved := 0
	for _, room := range batch {
		if err := w.saveWithRetry(ctx, room); err != nil {
			log.Error().
				Err(err).
				Str("room_id", room.ID.String()).
				Uint64("seq", room.Seq).
				Msg("failed to persist room snapshot")
			continue
		}
		saved++
	}
	if saved > 0 {
		log.Debug().Int("saved", saved).Int("total", len(batch)).Msg("persisted room snapshots")
	}
	return saved
}

func (w *SnapshotWriter) saveWithRetry(ctx context.Context, room models.Room) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		saveCtx, cancel := context.WithTimeout(ctx, w.config.SaveTimeout)
		err := w.store.Save(saveCtx, room)
		cancel()
		if err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("room_id", room.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to save snapshot, retrying")
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
