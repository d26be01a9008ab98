package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Ticker is what the scheduler drives once per interval.
type Ticker interface {
	ID() uuid.UUID
	// Tick advances the countdown and returns false when ticking should stop.
	Tick() bool
}

type tickLoop struct {
	stop chan struct{}
}

// Scheduler owns the single countdown loop of every active room. Each loop
// arms a one-shot timer per second so a cancelled room never sees a stray
// tick after Stop returns.
type Scheduler struct {
	clock    clockwork.Clock
	interval time.Duration

	mu    sync.Mutex
	loops map[uuid.UUID]*tickLoop
	wg    sync.WaitGroup
}

// NewScheduler creates a scheduler ticking at interval (one second if zero).
func NewScheduler(clock clockwork.Clock, interval time.Duration) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		clock:    clock,
		interval: interval,
		loops:    make(map[uuid.UUID]*tickLoop),
	}
}

// Run starts driving t, replacing any loop already running for the same room.
func (s *Scheduler) Run(ctx context.Context, t Ticker) {
	loop := &tickLoop{stop: make(chan struct{})}

	s.mu.Lock()
	if existing, ok := s.loops[t.ID()]; ok {
		close(existing.stop)
		log.Debug().Str("room_id", t.ID().String()).Msg("replaced existing countdown")
	}
	s.loops[t.ID()] = loop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, t, loop)

	log.Debug().
		Str("room_id", t.ID().String()).
		Dur("interval", s.interval).
		Msg("countdown scheduled")
}

func (s *Scheduler) run(ctx context.Context, t Ticker, loop *tickLoop) {
	defer s.wg.Done()
	defer s.remove(t.ID(), loop)

	for {
		timer := s.clock.NewTimer(s.interval)
		select {
		case <-loop.stop:
			stopAndDrainTimer(timer)
			return
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			log.Debug().Str("room_id", t.ID().String()).Msg("countdown cancelled due to context cancellation")
			return
		case <-timer.Chan():
			select {
			case <-loop.stop:
				return
			default:
			}
			if !t.Tick() {
				log.Debug().Str("room_id", t.ID().String()).Msg("countdown finished")
				return
			}
		}
	}
}

// Stop cancels the loop of a room, if any.
func (s *Scheduler) Stop(roomID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loop, ok := s.loops[roomID]; ok {
		close(loop.stop)
		delete(s.loops, roomID)
		log.Debug().Str("room_id", roomID.String()).Msg("cancelled countdown")
	}
}

// Active reports whether a loop is running for roomID.
func (s *Scheduler) Active(roomID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loops[roomID]
	return ok
}

// Close stops every loop and waits for them to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	for id, loop := range s.loops {
		close(loop.stop)
		delete(s.loops, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// remove drops the loop entry if it still belongs to loop.
func (s *Scheduler) remove(roomID uuid.UUID, loop *tickLoop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.loops[roomID]; ok && cur == loop {
		delete(s.loops, roomID)
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
