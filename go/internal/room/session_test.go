package room

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/mcdev12/placepick/go/internal/room/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	mu    sync.Mutex
	rooms []models.Room
}

func (s *sinkRecorder) Enqueue(room models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = append(s.rooms, room)
}

func (s *sinkRecorder) last() models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[len(s.rooms)-1]
}

type sessionFixture struct {
	clock   *clockwork.FakeClock
	events  *events.Recorder
	sink    *sinkRecorder
	session *Session
	creator models.User
}

func newSessionFixture(t *testing.T, opts VotingOptions) *sessionFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))
	rec := events.NewRecorder()
	sink := &sinkRecorder{}
	creator := models.User{ID: uuid.New(), Name: "Host"}
	sess := newSession(sessionParams{
		ID:        uuid.New(),
		Code:      "ABC123",
		Name:      "Friday dinner",
		Creator:   creator,
		CreatedAt: clock.Now(),
		ExpiresAt: clock.Now().Add(DefaultTTL),
	}, SessionConfig{
		Clock:     clock,
		Publisher: rec,
		Snapshots: sink,
		Voting:    opts,
	}.withDefaults())
	return &sessionFixture{clock: clock, events: rec, sink: sink, session: sess, creator: creator}
}

func (f *sessionFixture) join(t *testing.T, name string) models.User {
	t.Helper()
	u := models.User{ID: uuid.New(), Name: name}
	_, err := f.session.Join(u, nil)
	require.NoError(t, err)
	return u
}

func (f *sessionFixture) suggest(t *testing.T, places ...models.Place) {
	t.Helper()
	require.NoError(t, f.session.ReplacePlaces(places))
}

func TestSessionJoinIsIdempotent(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{})
	bob := models.User{ID: uuid.New(), Name: "Bob"}

	room, err := f.session.Join(bob, nil)
	require.NoError(t, err)
	require.Len(t, room.Members, 2)

	loc := &models.Location{Lat: 1, Lng: 2}
	room, err = f.session.Join(bob, loc)
	require.NoError(t, err)
	require.Len(t, room.Members, 2)
	assert.Equal(t, loc, room.Members[1].Location)

	assert.Equal(t, []events.EventType{
		events.EventTypeMemberJoined,
		events.EventTypeRoomUpdate,
		events.EventTypeRoomUpdate,
	}, f.events.Types())
}

func TestSessionPresence(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{})
	bob := f.join(t, "Bob")

	assert.True(t, f.session.SetOnline(bob.ID, false))
	assert.False(t, f.session.SetOnline(bob.ID, false))
	assert.False(t, f.session.SetOnline(uuid.New(), false))

	_, err := f.session.Join(bob, nil)
	require.NoError(t, err)

	types := f.events.Types()
	assert.Contains(t, types, events.EventTypeMemberOffline)
	assert.Contains(t, types, events.EventTypeMemberOnline)
	assert.True(t, f.sink.last().Members[1].Online)
}

func TestSessionEventSeqIsMonotonic(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{CardSeconds: 2})
	f.join(t, "Bob")
	f.suggest(t, place("a", 0.5), place("b", 0.4))
	_, err := f.session.StartVoting(nil)
	require.NoError(t, err)
	for f.session.Tick() {
	}

	evs := f.events.Events()
	require.NotEmpty(t, evs)
	for i, ev := range evs {
		assert.Equal(t, uint64(i+1), ev.Seq, "event %d (%s)", i, ev.Type)
	}
	assert.Equal(t, evs[len(evs)-1].Seq, f.session.Snapshot().Seq)
}

func TestSessionVoteRequiresVoting(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{})
	f.suggest(t, place("a", 0.5))

	_, err := f.session.CastVote(f.creator.ID, "a", models.VoteLike)
	assert.True(t, apperr.IsInvalidState(err))

	_, err = f.session.StartVoting(nil)
	require.NoError(t, err)

	_, err = f.session.CastVote(uuid.New(), "a", models.VoteLike)
	assert.True(t, apperr.IsValidation(err), "non member")

	_, err = f.session.CastVote(f.creator.ID, "nope", models.VoteLike)
	assert.True(t, apperr.IsValidation(err), "unknown place")

	v, err := f.session.CastVote(f.creator.ID, "a", models.VoteLove)
	require.NoError(t, err)
	assert.Equal(t, models.VoteLove, v.Value)
	assert.Equal(t, f.clock.Now(), v.Timestamp)

	room := f.session.Snapshot()
	require.Len(t, room.Votes, 1)
	require.NotNil(t, room.LeadingChoice)
	assert.Equal(t, 3, room.LeadingChoice.RawScore)
}

func TestSessionStartWithoutPlaces(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{})
	_, err := f.session.StartVoting(nil)
	assert.True(t, apperr.IsInvalidState(err))
	assert.Equal(t, models.RoomStatusWaiting, f.session.Status())
	assert.Empty(t, f.events.Types())
}

func TestSessionStartIsNoopWhileActive(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{})
	f.suggest(t, place("a", 0.5), place("b", 0.5))
	started, err := f.session.StartVoting(nil)
	require.NoError(t, err)
	require.True(t, started)
	require.NoError(t, f.session.Next())

	before := len(f.events.Events())
	started, err = f.session.StartVoting(nil)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Len(t, f.events.Events(), before)
	assert.Equal(t, 1, f.session.Snapshot().VotingSession.CurrentPlaceIndex)
}

func TestSessionTimedRunWithAutoVote(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{CardSeconds: 2, AutoVote: true})
	bob := f.join(t, "Bob")
	carol := f.join(t, "Carol")
	f.session.SetOnline(carol.ID, false)
	f.suggest(t, place("a", 0.5), place("b", 0.4))

	started, err := f.session.StartVoting(nil)
	require.NoError(t, err)
	require.True(t, started)
	assert.True(t, f.session.Ticking())

	_, err = f.session.CastVote(bob.ID, "a", models.VoteDislike)
	require.NoError(t, err)

	assert.True(t, f.session.Tick())
	assert.Equal(t, 1, f.session.Snapshot().VotingSession.SecondsRemaining)
	assert.True(t, f.session.Tick())

	room := f.session.Snapshot()
	assert.Equal(t, 1, room.VotingSession.CurrentPlaceIndex)
	assert.Equal(t, 2, room.VotingSession.SecondsRemaining)

	// Host was online and silent so got a like; Bob keeps his dislike and
	// offline Carol gets nothing.
	byUser := map[uuid.UUID]models.VoteValue{}
	for _, v := range room.Votes {
		if v.PlaceID == "a" {
			byUser[v.UserID] = v.Value
		}
	}
	assert.Equal(t, map[uuid.UUID]models.VoteValue{
		f.creator.ID: models.VoteLike,
		bob.ID:       models.VoteDislike,
	}, byUser)

	assert.True(t, f.session.Tick())
	assert.False(t, f.session.Tick())
	assert.Equal(t, models.RoomStatusResults, f.session.Status())
	assert.False(t, f.session.Ticking())
	assert.False(t, f.session.Tick())

	evs := f.events.Events()
	last := evs[len(evs)-2]
	require.Equal(t, events.EventTypeVotingFinished, last.Type)
	payload, err := events.Decode(last)
	require.NoError(t, err)
	finished := payload.(*events.VotingFinishedPayload)
	assert.Equal(t, events.FinishReasonExhausted, finished.Reason)
	require.NotNil(t, finished.LeadingChoice)
	assert.Equal(t, "b", finished.LeadingChoice.Place.ID)
}

func TestSessionAutoVoteOff(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{CardSeconds: 1})
	f.suggest(t, place("a", 0.5), place("b", 0.5))
	_, err := f.session.StartVoting(nil)
	require.NoError(t, err)

	assert.True(t, f.session.Tick())
	assert.Empty(t, f.session.Snapshot().Votes)
}

func TestSessionVoteAdvanceOnlyMovesCurrentCard(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{Mode: models.CarouselManualBrowse})
	bob := f.join(t, "Bob")
	f.suggest(t, place("a", 0.5), place("b", 0.5), place("c", 0.5))
	_, err := f.session.StartVoting(nil)
	require.NoError(t, err)

	_, err = f.session.CastVoteAdvance(f.creator.ID, "a", models.VoteLike)
	require.NoError(t, err)
	// Bob was still looking at "a" when the host moved on.
	_, err = f.session.CastVoteAdvance(bob.ID, "a", models.VoteLove)
	require.NoError(t, err)

	room := f.session.Snapshot()
	assert.Equal(t, 1, room.VotingSession.CurrentPlaceIndex)
	assert.Len(t, room.Votes, 2)
}

func TestSessionVoteAdvanceFinishesOnLastCard(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{})
	f.suggest(t, place("a", 0.5))
	_, err := f.session.StartVoting(nil)
	require.NoError(t, err)

	_, err = f.session.CastVoteAdvance(f.creator.ID, "a", models.VoteLike)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusResults, f.session.Status())

	_, err = f.session.CastVote(f.creator.ID, "a", models.VoteLove)
	assert.True(t, apperr.IsInvalidState(err))
}

func TestSessionNavigation(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{Mode: models.CarouselManualBrowse})
	f.suggest(t, place("a", 0.5), place("b", 0.5))

	assert.True(t, apperr.IsInvalidState(f.session.Next()))
	assert.True(t, apperr.IsInvalidState(f.session.Prev()))
	assert.True(t, apperr.IsInvalidState(f.session.EndVoting()))

	_, err := f.session.StartVoting(nil)
	require.NoError(t, err)
	assert.False(t, f.session.Ticking())

	before := len(f.events.Events())
	require.NoError(t, f.session.Prev())
	assert.Len(t, f.events.Events(), before, "prev on first card emits nothing")

	require.NoError(t, f.session.Next())
	require.NoError(t, f.session.Next())
	assert.Equal(t, models.RoomStatusVoting, f.session.Status())
	assert.Equal(t, 1, f.session.Snapshot().VotingSession.CurrentPlaceIndex)

	require.NoError(t, f.session.EndVoting())
	assert.Equal(t, models.RoomStatusResults, f.session.Status())
	before = len(f.events.Events())
	require.NoError(t, f.session.EndVoting())
	assert.Len(t, f.events.Events(), before)
}

func TestSessionReplacePlaces(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{})
	f.suggest(t, place("a", 0.5), place("b", 0.5))
	_, err := f.session.StartVoting(nil)
	require.NoError(t, err)
	_, err = f.session.CastVote(f.creator.ID, "a", models.VoteLike)
	require.NoError(t, err)
	_, err = f.session.CastVote(f.creator.ID, "b", models.VoteLike)
	require.NoError(t, err)

	err = f.session.ReplacePlaces([]models.Place{place("c", 0.5)})
	assert.True(t, apperr.IsInvalidState(err))
	assert.Equal(t, []string{"a", "b"}, placeIDs(f.session.Snapshot().Places))

	require.NoError(t, f.session.AppendPlaces([]models.Place{place("c", 0.5)}))
	assert.Equal(t, []string{"a", "b", "c"}, placeIDs(f.session.Snapshot().Places))

	require.NoError(t, f.session.EndVoting())
	require.NoError(t, f.session.ReplacePlaces([]models.Place{place("b", 0.5), place("d", 0.1)}))

	room := f.session.Snapshot()
	assert.Equal(t, models.RoomStatusWaiting, room.Status)
	assert.Nil(t, room.VotingSession)
	require.Len(t, room.Votes, 1)
	assert.Equal(t, "b", room.Votes[0].PlaceID)
}

func TestSessionExpiry(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{})
	f.clock.Advance(DefaultTTL - time.Second)
	assert.False(t, f.session.Expired())
	f.join(t, "Early")

	f.clock.Advance(time.Second)
	assert.True(t, f.session.Expired())
	_, err := f.session.Join(models.User{ID: uuid.New(), Name: "Late"}, nil)
	assert.True(t, apperr.IsNotFound(err))
}

func TestSessionExpiredRoomStopsTicking(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{CardSeconds: 2, AutoVote: true})
	f.suggest(t, place("a", 0.5), place("b", 0.4))
	_, err := f.session.StartVoting(nil)
	require.NoError(t, err)

	f.clock.Advance(DefaultTTL + time.Minute)
	emitted := len(f.events.Types())
	for i := 0; i < 30; i++ {
		assert.False(t, f.session.Tick())
	}

	room := f.session.Snapshot()
	assert.Empty(t, room.Votes)
	assert.Equal(t, 0, room.VotingSession.CurrentPlaceIndex)
	assert.Len(t, f.events.Types(), emitted)
}

func TestRestoreSession(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{CardSeconds: 5})
	bob := f.join(t, "Bob")
	f.suggest(t, place("a", 0.5), place("b", 0.5))
	_, err := f.session.StartVoting(nil)
	require.NoError(t, err)
	_, err = f.session.CastVote(bob.ID, "a", models.VoteLove)
	require.NoError(t, err)

	snap := f.sink.last()
	restored := restoreSession(snap, SessionConfig{Clock: f.clock}.withDefaults())

	room := restored.Snapshot()
	assert.Equal(t, snap.ID, room.ID)
	assert.Equal(t, snap.Seq, room.Seq)
	assert.Equal(t, models.RoomStatusVoting, room.Status)
	assert.Equal(t, 5, room.VotingSession.SecondsRemaining)
	assert.Len(t, room.Votes, 1)
	for _, m := range room.Members {
		assert.False(t, m.Online)
	}
	assert.True(t, restored.Ticking())
}

func TestSessionConcurrentVotesOnOnePlace(t *testing.T) {
	f := newSessionFixture(t, VotingOptions{Mode: models.CarouselManualBrowse})
	f.suggest(t, place("a", 0.5))
	voters := make([]models.User, 8)
	for i := range voters {
		voters[i] = f.join(t, "Voter")
	}
	_, err := f.session.StartVoting(nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, u := range voters {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.session.CastVote(id, "a", models.VoteLove)
			assert.NoError(t, err)
		}(u.ID)
	}
	wg.Wait()

	votes := f.session.Snapshot().Votes
	require.Len(t, votes, len(voters))
	seen := make(map[uuid.UUID]bool)
	for _, v := range votes {
		assert.Equal(t, "a", v.PlaceID)
		seen[v.UserID] = true
	}
	assert.Len(t, seen, len(voters))
}
