package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[uuid.UUID]models.User)}
}

func (d *fakeDirectory) add(name string) models.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := models.User{ID: uuid.New(), Name: name, Preferences: models.DefaultPreferences()}
	d.users[u.ID] = u
	return u
}

func (d *fakeDirectory) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return &u, nil
}

// storeSink persists snapshots synchronously.
type storeSink struct{ store Store }

func (s storeSink) Enqueue(room models.Room) {
	_ = s.store.Save(context.Background(), room)
}

// fixedCodes hands out codes in order, repeating the last one.
func fixedCodes(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}

type registryFixture struct {
	clock    *clockwork.FakeClock
	users    *fakeDirectory
	store    *MemoryStore
	registry *Registry
}

func newRegistryFixture(t *testing.T, codes CodeGenerator) *registryFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clock.Now)
	users := newFakeDirectory()
	return &registryFixture{
		clock: clock,
		users: users,
		store: store,
		registry: NewRegistry(users, RegistryConfig{
			Store: store,
			Codes: codes,
			Session: SessionConfig{
				Clock:     clock,
				Snapshots: storeSink{store: store},
			},
		}),
	}
}

func TestRegistryCreateRoom(t *testing.T) {
	f := newRegistryFixture(t, nil)
	host := f.users.add("Host")
	ctx := context.Background()

	room, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: " Taco night ", CreatorID: host.ID, Occasion: "birthday"})
	require.NoError(t, err)
	assert.Equal(t, "Taco night", room.Name)
	assert.Equal(t, "birthday", room.Occasion)
	assert.True(t, ValidCode(room.Code), "code %q", room.Code)
	assert.Equal(t, models.RoomStatusWaiting, room.Status)
	assert.Equal(t, f.clock.Now().Add(DefaultTTL), room.ExpiresAt)
	require.Len(t, room.Members, 1)
	assert.Equal(t, host.ID, room.Members[0].UserID)
	assert.True(t, room.Members[0].Online)

	stored, err := f.store.Load(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Code, stored.Code)
}

func TestRegistryCreateRoomValidation(t *testing.T) {
	f := newRegistryFixture(t, nil)
	host := f.users.add("Host")
	ctx := context.Background()

	_, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "  ", CreatorID: host.ID})
	assert.True(t, apperr.IsValidation(err))

	_, err = f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "Lunch", CreatorID: uuid.New()})
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, 0, f.registry.Len())
}

func TestRegistryCodeCollisionRetries(t *testing.T) {
	f := newRegistryFixture(t, fixedCodes("aaaaaa", "AAAAAA", "CCCCCC", "BBBBBB"))
	host := f.users.add("Host")
	ctx := context.Background()

	// Another process already holds CCCCCC.
	ok, err := f.store.ReserveCode(ctx, "CCCCCC", uuid.New(), f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	first, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "One", CreatorID: host.ID})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.Code)

	second, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "Two", CreatorID: host.ID})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.Code)
}

func TestRegistryCodeExhaustion(t *testing.T) {
	f := newRegistryFixture(t, fixedCodes("ZZZZZZ"))
	host := f.users.add("Host")
	ctx := context.Background()

	_, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "One", CreatorID: host.ID})
	require.NoError(t, err)
	_, err = f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "Two", CreatorID: host.ID})
	require.Error(t, err)
	assert.Equal(t, 1, f.registry.Len())
}

func TestRegistryCodeGeneratorError(t *testing.T) {
	boom := errors.New("entropy exhausted")
	f := newRegistryFixture(t, func() (string, error) { return "", boom })
	host := f.users.add("Host")

	_, err := f.registry.CreateRoom(context.Background(), CreateRoomRequest{Name: "One", CreatorID: host.ID})
	assert.ErrorIs(t, err, boom)
}

func TestRegistryJoinRoom(t *testing.T) {
	f := newRegistryFixture(t, fixedCodes("JOIN42"))
	host := f.users.add("Host")
	guest := f.users.add("Guest")
	ctx := context.Background()

	room, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "Brunch", CreatorID: host.ID})
	require.NoError(t, err)

	joined, err := f.registry.JoinRoom(ctx, " join42 ", guest.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.ID)
	require.Len(t, joined.Members, 2)

	again, err := f.registry.JoinRoom(ctx, "JOIN42", guest.ID, nil)
	require.NoError(t, err)
	assert.Len(t, again.Members, 2)

	_, err = f.registry.JoinRoom(ctx, "NOPE00", guest.ID, nil)
	assert.True(t, apperr.IsNotFound(err))

	_, err = f.registry.JoinRoom(ctx, "", guest.ID, nil)
	assert.True(t, apperr.IsValidation(err))

	_, err = f.registry.JoinRoom(ctx, "JOIN42", uuid.New(), nil)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRegistryExpiry(t *testing.T) {
	f := newRegistryFixture(t, fixedCodes("TTL000"))
	host := f.users.add("Host")
	guest := f.users.add("Guest")
	ctx := context.Background()

	room, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "Late", CreatorID: host.ID})
	require.NoError(t, err)

	f.clock.Advance(DefaultTTL - time.Second)
	_, err = f.registry.GetRoom(ctx, room.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Second)
	_, err = f.registry.GetRoom(ctx, room.ID)
	assert.True(t, apperr.IsNotFound(err))
	_, err = f.registry.JoinRoom(ctx, "TTL000", guest.ID, nil)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, 0, f.registry.Len())

	_, err = f.store.Load(ctx, room.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistrySweep(t *testing.T) {
	f := newRegistryFixture(t, nil)
	host := f.users.add("Host")
	ctx := context.Background()

	_, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "Old", CreatorID: host.ID})
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	young, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "Young", CreatorID: host.ID})
	require.NoError(t, err)

	f.clock.Advance(DefaultTTL - 5*time.Minute)
	assert.Equal(t, 1, f.registry.Sweep(ctx))
	assert.Equal(t, 1, f.registry.Len())

	_, err = f.registry.GetRoom(ctx, young.ID)
	assert.NoError(t, err)
}

func TestRegistryRestoresFromStore(t *testing.T) {
	f := newRegistryFixture(t, fixedCodes("SHARED"))
	host := f.users.add("Host")
	guest := f.users.add("Guest")
	ctx := context.Background()

	room, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "Shared", CreatorID: host.ID})
	require.NoError(t, err)
	sess, err := f.registry.Session(ctx, room.ID)
	require.NoError(t, err)
	require.NoError(t, sess.ReplacePlaces([]models.Place{place("a", 0.4)}))

	other := NewRegistry(f.users, RegistryConfig{
		Store:   f.store,
		Session: SessionConfig{Clock: f.clock},
	})

	restored, err := other.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shared", restored.Name)
	assert.Equal(t, []string{"a"}, placeIDs(restored.Places))
	assert.False(t, restored.Members[0].Online)

	joined, err := other.JoinRoom(ctx, "shared", guest.ID, nil)
	require.NoError(t, err)
	assert.Len(t, joined.Members, 2)
	assert.Greater(t, joined.Seq, room.Seq)
}

func TestRegistryRunSweeper(t *testing.T) {
	f := newRegistryFixture(t, nil)
	host := f.users.add("Host")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.registry.CreateRoom(ctx, CreateRoomRequest{Name: "Swept", CreatorID: host.ID})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		f.registry.RunSweeper(ctx, time.Minute)
		close(done)
	}()

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(DefaultTTL)
	require.Eventually(t, func() bool { return f.registry.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
