package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/mcdev12/placepick/go/internal/room/events"
	"github.com/rs/zerolog/log"
)

// SnapshotSink accepts room snapshots for persistence. Enqueue is called with
// the room locked and must not block.
type SnapshotSink interface {
	Enqueue(room models.Room)
}

// SessionConfig holds the collaborators shared by every session.
type SessionConfig struct {
	Clock     clockwork.Clock
	Publisher events.Publisher
	Snapshots SnapshotSink
	AutoVote  AutoVoteStrategy
	Voting    VotingOptions
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Publisher == nil {
		c.Publisher = events.Discard{}
	}
	if c.AutoVote == nil {
		c.AutoVote = LikeOnlineStrategy{}
	}
	c.Voting = c.Voting.normalize()
	return c
}

// Session is one live room. Every mutation takes the session lock, so the
// events it emits leave in mutation order.
type Session struct {
	id        uuid.UUID
	code      string
	name      string
	creatorID uuid.UUID
	occasion  string
	mood      string
	createdAt time.Time
	expiresAt time.Time

	cfg SessionConfig

	mu        sync.Mutex
	members   []models.RoomMember
	memberIdx map[uuid.UUID]int
	catalog   *Catalog
	ledger    *Ledger
	voting    *Voting
	seq       uint64
	closed    bool
}

type sessionParams struct {
	ID        uuid.UUID
	Code      string
	Name      string
	Occasion  string
	Mood      string
	Creator   models.User
	CreatedAt time.Time
	ExpiresAt time.Time
}

func newSession(p sessionParams, cfg SessionConfig) *Session {
	s := &Session{
		id:        p.ID,
		code:      p.Code,
		name:      p.Name,
		creatorID: p.Creator.ID,
		occasion:  p.Occasion,
		mood:      p.Mood,
		createdAt: p.CreatedAt,
		expiresAt: p.ExpiresAt,
		cfg:       cfg,
		memberIdx: make(map[uuid.UUID]int),
		catalog:   NewCatalog(),
		ledger:    NewLedger(),
		voting:    NewVoting(cfg.Voting),
	}
	s.addMember(models.RoomMember{
		UserID:   p.Creator.ID,
		Name:     p.Creator.Name,
		Online:   true,
		JoinedAt: p.CreatedAt,
	})
	return s
}

// restoreSession rebuilds a session from a stored snapshot. Presence does not
// survive a restart, so every member comes back offline.
func restoreSession(r models.Room, cfg SessionConfig) *Session {
	s := &Session{
		id:        r.ID,
		code:      r.Code,
		name:      r.Name,
		creatorID: r.CreatorID,
		occasion:  r.Occasion,
		mood:      r.Mood,
		createdAt: r.CreatedAt,
		expiresAt: r.ExpiresAt,
		cfg:       cfg,
		memberIdx: make(map[uuid.UUID]int),
		catalog:   NewCatalog(),
		ledger:    ledgerFrom(r.Votes),
		voting:    votingFrom(r.Status, r.VotingSession, cfg.Voting),
		seq:       r.Seq,
	}
	for _, m := range r.Members {
		m.Online = false
		s.addMember(m)
	}
	s.catalog.add(r.Places)
	return s
}

func (s *Session) ID() uuid.UUID        { return s.id }
func (s *Session) Code() string         { return s.code }
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Expired reports whether the room is past its TTL.
func (s *Session) Expired() bool {
	return !s.cfg.Clock.Now().Before(s.expiresAt)
}

// close marks the session dead. Later mutations fail as not found.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// live must be called with the lock held.
func (s *Session) live() error {
	if s.closed || s.Expired() {
		return apperr.NotFound("room %s has expired", s.code)
	}
	return nil
}

func (s *Session) status() models.RoomStatus {
	switch s.voting.Phase() {
	case PhaseActive:
		return models.RoomStatusVoting
	case PhaseFinished:
		return models.RoomStatusResults
	}
	return models.RoomStatusWaiting
}

// Status returns the room lifecycle phase.
func (s *Session) Status() models.RoomStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

// Ticking reports whether the carousel countdown needs a driver.
func (s *Session) Ticking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.voting.Ticking()
}

// Snapshot returns the full room state with a freshly computed ranking.
func (s *Session) Snapshot() models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() models.Room {
	members := make([]models.RoomMember, len(s.members))
	copy(members, s.members)
	places := s.catalog.Places()
	votes := s.ledger.All()
	ranking := Rank(places, votes)
	return models.Room{
		ID:            s.id,
		Code:          s.code,
		Name:          s.name,
		CreatorID:     s.creatorID,
		Occasion:      s.occasion,
		Mood:          s.mood,
		Members:       members,
		Places:        places,
		Votes:         votes,
		Status:        s.status(),
		VotingSession: s.voting.State(),
		Ranking:       ranking,
		LeadingChoice: Leading(ranking),
		Seq:           s.seq,
		CreatedAt:     s.createdAt,
		ExpiresAt:     s.expiresAt,
	}
}

// MemberIDs returns member user ids in join order.
func (s *Session) MemberIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, len(s.members))
	for i, m := range s.members {
		out[i] = m.UserID
	}
	return out
}

// IsMember reports whether userID has joined the room.
func (s *Session) IsMember(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.memberIdx[userID]
	return ok
}

func (s *Session) addMember(m models.RoomMember) {
	s.memberIdx[m.UserID] = len(s.members)
	s.members = append(s.members, m)
}

// emit must be called with the lock held.
func (s *Session) emit(typ events.EventType, payload any) {
	s.seq++
	ev, err := events.New(s.id, s.seq, typ, s.cfg.Clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", s.id.String()).Msg("failed to build room event")
		return
	}
	s.cfg.Publisher.Publish(ev)
}

// commit closes a mutation: it emits the full snapshot and hands it to the
// persistence sink. Must be called with the lock held.
func (s *Session) commit() models.Room {
	s.seq++
	snap := s.snapshot()
	ev, err := events.New(s.id, s.seq, events.EventTypeRoomUpdate, s.cfg.Clock.Now(), events.RoomUpdatePayload{Room: snap})
	if err != nil {
		log.Error().Err(err).Str("room_id", s.id.String()).Msg("failed to build room-update event")
	} else {
		s.cfg.Publisher.Publish(ev)
	}
	if s.cfg.Snapshots != nil {
		s.cfg.Snapshots.Enqueue(snap)
	}
	return snap
}

// Join adds user as a member, or marks an existing member online again.
// Joining twice never duplicates the member.
func (s *Session) Join(user models.User, location *models.Location) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return models.Room{}, err
	}

	if i, ok := s.memberIdx[user.ID]; ok {
		if location != nil {
			s.members[i].Location = location
		}
		if !s.members[i].Online {
			s.members[i].Online = true
			s.emit(events.EventTypeMemberOnline, events.MemberPayload{Member: s.members[i]})
		}
		return s.commit(), nil
	}

	m := models.RoomMember{
		UserID:   user.ID,
		Name:     user.Name,
		Online:   true,
		JoinedAt: s.cfg.Clock.Now(),
		Location: location,
	}
	s.addMember(m)
	s.emit(events.EventTypeMemberJoined, events.MemberPayload{Member: m})

	log.Info().
		Str("room_id", s.id.String()).
		Str("user_id", user.ID.String()).
		Int("members", len(s.members)).
		Msg("member joined room")

	return s.commit(), nil
}

// SetOnline flips a member's presence. Unknown users and no-op flips are
// ignored; it reports whether anything changed.
func (s *Session) SetOnline(userID uuid.UUID, online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	i, ok := s.memberIdx[userID]
	if !ok || s.members[i].Online == online {
		return false
	}
	s.members[i].Online = online
	typ := events.EventTypeMemberOffline
	if online {
		typ = events.EventTypeMemberOnline
	}
	s.emit(typ, events.MemberPayload{Member: s.members[i]})
	s.commit()
	return true
}

// checkVote validates a vote without recording it. Must be called with the
// lock held.
func (s *Session) checkVote(userID uuid.UUID, placeID string) error {
	if err := s.live(); err != nil {
		return err
	}
	if s.status() != models.RoomStatusVoting {
		return apperr.InvalidState("room is %s, not voting", s.status())
	}
	if _, ok := s.memberIdx[userID]; !ok {
		return apperr.Validation("user %s is not a member of this room", userID)
	}
	if !s.catalog.Contains(placeID) {
		return apperr.Validation("place %s is not a candidate in this room", placeID)
	}
	return nil
}

// CastVote records a vote without moving the carousel.
func (s *Session) CastVote(userID uuid.UUID, placeID string, value models.VoteValue) (models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVote(userID, placeID); err != nil {
		return models.Vote{}, err
	}
	v := s.recordVote(userID, placeID, value, false)
	s.commit()
	return v, nil
}

// CastVoteAdvance records a vote and, when it is for the card on screen,
// moves the carousel on. A vote for a card that is no longer current is
// recorded but does not advance, so two members voting on the same card
// move it once.
func (s *Session) CastVoteAdvance(userID uuid.UUID, placeID string, value models.VoteValue) (models.Vote, error) {
	v, _, err := s.castVoteAdvance(userID, placeID, value)
	return v, err
}

// castVoteAdvance also reports whether the carousel moved.
func (s *Session) castVoteAdvance(userID uuid.UUID, placeID string, value models.VoteValue) (models.Vote, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVote(userID, placeID); err != nil {
		return models.Vote{}, false, err
	}
	v := s.recordVote(userID, placeID, value, false)
	moved := false
	if cur, ok := s.catalog.At(s.voting.Index()); ok && cur.ID == placeID {
		s.advance()
		moved = true
	}
	s.commit()
	return v, moved, nil
}

func (s *Session) recordVote(userID uuid.UUID, placeID string, value models.VoteValue, auto bool) models.Vote {
	v, replaced := s.ledger.Record(userID, placeID, value, s.cfg.Clock.Now())
	s.emit(events.EventTypeVoteUpdate, events.VotePayload{Vote: v, Auto: auto})
	log.Debug().
		Str("room_id", s.id.String()).
		Str("user_id", userID.String()).
		Str("place_id", placeID).
		Str("value", string(value)).
		Bool("replaced", replaced).
		Bool("auto", auto).
		Msg("vote recorded")
	return v
}

// advance moves to the next card and emits the result. Must be called with
// the lock held.
func (s *Session) advance() {
	if s.voting.Advance(s.catalog.Len()) {
		s.emitFinished(events.FinishReasonExhausted)
		return
	}
	s.emitTick()
}

func (s *Session) emitTick() {
	p := events.VotingTickPayload{
		PlaceIndex:       s.voting.Index(),
		SecondsRemaining: s.voting.Remaining(),
	}
	if cur, ok := s.catalog.At(s.voting.Index()); ok {
		p.PlaceID = cur.ID
	}
	s.emit(events.EventTypeVotingTick, p)
}

func (s *Session) emitFinished(reason string) {
	ranking := Rank(s.catalog.Places(), s.ledger.All())
	s.emit(events.EventTypeVotingFinished, events.VotingFinishedPayload{
		Reason:        reason,
		LeadingChoice: Leading(ranking),
		Ranking:       ranking,
	})
	log.Info().
		Str("room_id", s.id.String()).
		Str("reason", reason).
		Int("votes", s.ledger.Len()).
		Msg("voting finished")
}

// StartVoting begins the carousel at the first place. opts, when given,
// replace the carousel options for this run. Starting while already active
// is a no-op and returns false.
func (s *Session) StartVoting(opts *VotingOptions) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return false, err
	}
	if s.voting.Phase() == PhaseActive {
		return false, nil
	}
	if s.catalog.Len() == 0 {
		return false, apperr.InvalidState("no candidates to vote on")
	}
	if opts != nil {
		s.voting.Configure(*opts)
	}
	started, err := s.voting.Start(s.catalog.Len())
	if err != nil || !started {
		return started, err
	}
	first, _ := s.catalog.At(0)
	s.emit(events.EventTypeVotingStarted, events.VotingStartedPayload{
		Voting: *s.voting.State(),
		Place:  first,
	})
	s.commit()

	log.Info().
		Str("room_id", s.id.String()).
		Str("mode", string(s.voting.Options().Mode)).
		Int("places", s.catalog.Len()).
		Msg("voting started")
	return true, nil
}

// Tick drives the countdown by one second. When the card runs out the
// auto-vote policy runs and the carousel advances. It returns false once
// there is nothing left to tick, including once the room has expired.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.Expired() || !s.voting.Ticking() {
		return false
	}
	if !s.voting.Tick() {
		s.emitTick()
		return true
	}

	if s.voting.Options().AutoVote {
		if cur, ok := s.catalog.At(s.voting.Index()); ok {
			hasVoted := func(id uuid.UUID) bool { return s.ledger.HasVoted(id, cur.ID) }
			for _, av := range s.cfg.AutoVote.SelectVotes(cur, s.members, hasVoted) {
				if _, member := s.memberIdx[av.UserID]; !member {
					continue
				}
				s.recordVote(av.UserID, cur.ID, av.Value, true)
			}
		}
	}
	s.advance()
	s.commit()
	return s.voting.Ticking()
}

// Next moves the carousel forward without voting.
func (s *Session) Next() error {
	_, err := s.next()
	return err
}

func (s *Session) next() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return false, err
	}
	moved, finished, err := s.voting.Next(s.catalog.Len())
	if err != nil {
		return false, err
	}
	switch {
	case finished:
		s.emitFinished(events.FinishReasonExhausted)
	case moved:
		s.emitTick()
	default:
		return false, nil
	}
	s.commit()
	return moved, nil
}

// Prev moves the carousel back one card. A no-op on the first card.
func (s *Session) Prev() error {
	_, err := s.prev()
	return err
}

func (s *Session) prev() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return false, err
	}
	moved, err := s.voting.Prev()
	if err != nil || !moved {
		return false, err
	}
	s.emitTick()
	s.commit()
	return true, nil
}

// EndVoting forces the carousel to finish. Ending twice is a no-op.
func (s *Session) EndVoting() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return err
	}
	ended, err := s.voting.End()
	if err != nil || !ended {
		return err
	}
	s.emitFinished(events.FinishReasonEnded)
	s.commit()
	return nil
}

// ReplacePlaces swaps in a new suggestion batch. Votes on places that are no
// longer candidates are dropped. Not allowed while voting is running; after
// results the room goes back to waiting for a fresh round.
func (s *Session) ReplacePlaces(places []models.Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return err
	}
	if s.voting.Phase() == PhaseActive {
		return apperr.InvalidState("cannot replace suggestions while voting is running")
	}
	if err := s.catalog.Replace(places); err != nil {
		return err
	}
	dropped := s.ledger.Retain(s.catalog.Contains)
	s.voting = NewVoting(s.voting.Options())

	s.emit(events.EventTypeNewSuggestions, events.SuggestionsPayload{Places: s.catalog.Places(), Replaced: true})
	s.commit()

	log.Info().
		Str("room_id", s.id.String()).
		Int("places", len(places)).
		Int("dropped_votes", dropped).
		Msg("suggestions replaced")
	return nil
}

// AppendPlaces adds a batch after the current candidates. Allowed in any
// state; a running carousel simply gains more cards.
func (s *Session) AppendPlaces(places []models.Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return err
	}
	if err := s.catalog.Append(places); err != nil {
		return err
	}
	s.emit(events.EventTypeNewSuggestions, events.SuggestionsPayload{Places: places, Replaced: false})
	s.commit()
	return nil
}
