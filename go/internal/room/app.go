package room

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SuggestionProvider fetches candidate places for a preference profile. It
// may be slow or fail.
type SuggestionProvider interface {
	FetchSuggestions(ctx context.Context, prefs models.Preferences) ([]models.Place, error)
}

// PreferenceMerger folds several members' preferences into one profile.
type PreferenceMerger func(prefs []models.Preferences) models.Preferences

// SuggestMode selects how a suggestion batch is applied.
type SuggestMode string

const (
	SuggestReplace SuggestMode = "replace"
	SuggestAppend  SuggestMode = "append"
)

// ParseSuggestMode rejects unknown modes. Empty means replace.
func ParseSuggestMode(s string) (SuggestMode, error) {
	switch SuggestMode(s) {
	case "", SuggestReplace:
		return SuggestReplace, nil
	case SuggestAppend:
		return SuggestAppend, nil
	}
	return "", apperr.Validation("unknown suggestion mode %q", s)
}

// SuggestRequest is the input of SuggestPlaces. Nil Preferences means the
// merged preferences of every member.
type SuggestRequest struct {
	RoomID      uuid.UUID
	ActorID     uuid.UUID
	Preferences *models.Preferences
	Mode        SuggestMode
}

// VoteRequest is the input of SubmitVote.
type VoteRequest struct {
	RoomID  uuid.UUID
	UserID  uuid.UUID
	PlaceID string
	Value   models.VoteValue
	// Advance moves the carousel on when the vote is for the current card.
	Advance bool
}

// AppConfig configures an App.
type AppConfig struct {
	SuggestTimeout time.Duration
	MergePrefs     PreferenceMerger
}

// App is the room business layer used by the RPC service and the realtime
// gateway.
type App struct {
	registry  *Registry
	scheduler *Scheduler
	users     UserDirectory
	provider  SuggestionProvider
	config    AppConfig
	// ctx outlives requests; countdown loops hang off it.
	ctx context.Context
}

// NewApp wires the room app. ctx bounds the lifetime of countdown loops.
func NewApp(ctx context.Context, registry *Registry, scheduler *Scheduler, users UserDirectory, provider SuggestionProvider, cfg AppConfig) *App {
	if cfg.SuggestTimeout <= 0 {
		cfg.SuggestTimeout = 10 * time.Second
	}
	return &App{
		registry:  registry,
		scheduler: scheduler,
		users:     users,
		provider:  provider,
		config:    cfg,
		ctx:       ctx,
	}
}

// Registry exposes the registry for the sweeper.
func (a *App) Registry() *Registry { return a.registry }

// CreateRoom opens a room owned by req.CreatorID.
func (a *App) CreateRoom(ctx context.Context, req CreateRoomRequest) (models.Room, error) {
	return a.registry.CreateRoom(ctx, req)
}

// JoinRoom adds userID to the room with code.
func (a *App) JoinRoom(ctx context.Context, code string, userID uuid.UUID, location *models.Location) (models.Room, error) {
	return a.registry.JoinRoom(ctx, code, userID, location)
}

// GetRoom returns a room snapshot.
func (a *App) GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error) {
	return a.registry.GetRoom(ctx, roomID)
}

// GetResults returns the current ranking of a room. It is recomputed from
// the votes on every call.
func (a *App) GetResults(ctx context.Context, roomID uuid.UUID) (Results, error) {
	room, err := a.registry.GetRoom(ctx, roomID)
	if err != nil {
		return Results{}, err
	}
	return Results{
		Status:        room.Status,
		Ranking:       room.Ranking,
		LeadingChoice: room.LeadingChoice,
	}, nil
}

// DefaultVoting is the carousel configuration used when a start request
// does not override it.
func (a *App) DefaultVoting() VotingOptions {
	return a.registry.session.Voting
}

// SubmitVote records a vote from a member.
func (a *App) SubmitVote(ctx context.Context, req VoteRequest) (models.Vote, error) {
	if req.PlaceID == "" {
		return models.Vote{}, apperr.Validation("place id is required")
	}
	if _, err := a.users.GetUser(ctx, req.UserID); err != nil {
		return models.Vote{}, err
	}
	sess, err := a.registry.Session(ctx, req.RoomID)
	if err != nil {
		return models.Vote{}, err
	}
	if !req.Advance {
		return sess.CastVote(req.UserID, req.PlaceID, req.Value)
	}
	vote, moved, err := sess.castVoteAdvance(req.UserID, req.PlaceID, req.Value)
	if err != nil {
		return models.Vote{}, err
	}
	a.rearm(sess, moved)
	return vote, nil
}

// SuggestPlaces fetches a batch outside the room lock and then applies it in
// one step. On failure the catalog is left untouched.
func (a *App) SuggestPlaces(ctx context.Context, req SuggestRequest) ([]models.Place, error) {
	sess, err := a.memberSession(ctx, req.RoomID, req.ActorID)
	if err != nil {
		return nil, err
	}

	var prefs models.Preferences
	if req.Preferences != nil {
		prefs = *req.Preferences
		if prefs.PriceRange, err = models.ParsePriceRange(string(prefs.PriceRange)); err != nil {
			return nil, apperr.Validation("%v", err)
		}
	} else {
		prefs, err = a.groupPreferences(ctx, sess)
		if err != nil {
			return nil, err
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.config.SuggestTimeout)
	places, err := a.provider.FetchSuggestions(fetchCtx, prefs)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("room_id", req.RoomID.String()).Msg("suggestion fetch failed")
		if apperr.IsUpstream(err) {
			return nil, err
		}
		return nil, apperr.Upstream(err, "fetch suggestions")
	}

	switch req.Mode {
	case SuggestAppend:
		err = sess.AppendPlaces(places)
	default:
		err = sess.ReplacePlaces(places)
	}
	if err != nil {
		return nil, err
	}
	return places, nil
}

func (a *App) groupPreferences(ctx context.Context, sess *Session) (models.Preferences, error) {
	var all []models.Preferences
	for _, id := range sess.MemberIDs() {
		u, err := a.users.GetUser(ctx, id)
		if err != nil {
			if apperr.IsNotFound(err) {
				continue
			}
			return models.Preferences{}, fmt.Errorf("load member preferences: %w", err)
		}
		all = append(all, u.Preferences)
	}
	if a.config.MergePrefs == nil || len(all) == 0 {
		return models.DefaultPreferences(), nil
	}
	return a.config.MergePrefs(all), nil
}

// StartVoting begins the carousel and its countdown.
func (a *App) StartVoting(ctx context.Context, roomID, actorID uuid.UUID, opts *VotingOptions) (models.Room, error) {
	sess, err := a.memberSession(ctx, roomID, actorID)
	if err != nil {
		return models.Room{}, err
	}
	started, err := sess.StartVoting(opts)
	if err != nil {
		return models.Room{}, err
	}
	if started && a.scheduler != nil && sess.Ticking() {
		a.scheduler.Run(a.ctx, sess)
	}
	return sess.Snapshot(), nil
}

// NextPlace moves the carousel forward.
func (a *App) NextPlace(ctx context.Context, roomID, actorID uuid.UUID) (models.Room, error) {
	return a.navigate(ctx, roomID, actorID, (*Session).next)
}

// PrevPlace moves the carousel back.
func (a *App) PrevPlace(ctx context.Context, roomID, actorID uuid.UUID) (models.Room, error) {
	return a.navigate(ctx, roomID, actorID, (*Session).prev)
}

// EndVoting finishes the carousel early.
func (a *App) EndVoting(ctx context.Context, roomID, actorID uuid.UUID) (models.Room, error) {
	return a.navigate(ctx, roomID, actorID, func(s *Session) (bool, error) {
		return false, s.EndVoting()
	})
}

func (a *App) navigate(ctx context.Context, roomID, actorID uuid.UUID, op func(*Session) (bool, error)) (models.Room, error) {
	sess, err := a.memberSession(ctx, roomID, actorID)
	if err != nil {
		return models.Room{}, err
	}
	moved, err := op(sess)
	if err != nil {
		return models.Room{}, err
	}
	a.rearm(sess, moved)
	return sess.Snapshot(), nil
}

// rearm keeps the countdown in step with the carousel. A manual move starts
// a fresh one-second cycle so the new card gets its whole window.
func (a *App) rearm(sess *Session, moved bool) {
	if a.scheduler == nil {
		return
	}
	switch {
	case !sess.Ticking():
		a.scheduler.Stop(sess.ID())
	case moved:
		a.scheduler.Run(a.ctx, sess)
	}
}

// SetPresence marks a member online or offline. Unknown rooms and members
// are ignored; disconnects are not errors.
func (a *App) SetPresence(ctx context.Context, roomID, userID uuid.UUID, online bool) {
	sess, err := a.registry.Session(ctx, roomID)
	if err != nil {
		log.Debug().Err(err).Str("room_id", roomID.String()).Msg("presence update for unknown room")
		return
	}
	sess.SetOnline(userID, online)
}

// IsMember reports whether userID belongs to a live room.
func (a *App) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	sess, err := a.registry.Session(ctx, roomID)
	if err != nil {
		return false, err
	}
	return sess.IsMember(userID), nil
}

func (a *App) memberSession(ctx context.Context, roomID, actorID uuid.UUID) (*Session, error) {
	sess, err := a.registry.Session(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !sess.IsMember(actorID) {
		return nil, apperr.Validation("user %s is not a member of this room", actorID)
	}
	return sess, nil
}
