package room

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/auth"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/mcdev12/placepick/go/internal/rpc"
)

const RoomServiceName = "placepick.room.v1.RoomService"

const (
	RoomServiceCreateRoomProcedure    = "/" + RoomServiceName + "/CreateRoom"
	RoomServiceJoinRoomProcedure      = "/" + RoomServiceName + "/JoinRoom"
	RoomServiceGetRoomProcedure       = "/" + RoomServiceName + "/GetRoom"
	RoomServiceSubmitVoteProcedure    = "/" + RoomServiceName + "/SubmitVote"
	RoomServiceSuggestPlacesProcedure = "/" + RoomServiceName + "/SuggestPlaces"
	RoomServiceStartVotingProcedure   = "/" + RoomServiceName + "/StartVoting"
	RoomServiceNextPlaceProcedure     = "/" + RoomServiceName + "/NextPlace"
	RoomServicePrevPlaceProcedure     = "/" + RoomServiceName + "/PrevPlace"
	RoomServiceEndVotingProcedure     = "/" + RoomServiceName + "/EndVoting"
	RoomServiceGetResultsProcedure    = "/" + RoomServiceName + "/GetResults"
)

// RoomsApp defines what the service layer needs from the room application
type RoomsApp interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (models.Room, error)
	JoinRoom(ctx context.Context, code string, userID uuid.UUID, location *models.Location) (models.Room, error)
	GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error)
	GetResults(ctx context.Context, roomID uuid.UUID) (Results, error)
	SubmitVote(ctx context.Context, req VoteRequest) (models.Vote, error)
	SuggestPlaces(ctx context.Context, req SuggestRequest) ([]models.Place, error)
	StartVoting(ctx context.Context, roomID, actorID uuid.UUID, opts *VotingOptions) (models.Room, error)
	NextPlace(ctx context.Context, roomID, actorID uuid.UUID) (models.Room, error)
	PrevPlace(ctx context.Context, roomID, actorID uuid.UUID) (models.Room, error)
	EndVoting(ctx context.Context, roomID, actorID uuid.UUID) (models.Room, error)
	DefaultVoting() VotingOptions
}

// Service implements the RoomService connect handlers
type Service struct {
	app RoomsApp
}

// NewService creates a new room service
func NewService(app RoomsApp) *Service {
	return &Service{app: app}
}

// NewRoomServiceHandler builds an HTTP handler serving every RoomService
// procedure and returns the path prefix to mount it on.
func NewRoomServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = rpc.HandlerOptions(opts...)
	mux := http.NewServeMux()
	mux.Handle(RoomServiceCreateRoomProcedure, connect.NewUnaryHandler(RoomServiceCreateRoomProcedure, svc.CreateRoom, opts...))
	mux.Handle(RoomServiceJoinRoomProcedure, connect.NewUnaryHandler(RoomServiceJoinRoomProcedure, svc.JoinRoom, opts...))
	mux.Handle(RoomServiceGetRoomProcedure, connect.NewUnaryHandler(RoomServiceGetRoomProcedure, svc.GetRoom, opts...))
	mux.Handle(RoomServiceSubmitVoteProcedure, connect.NewUnaryHandler(RoomServiceSubmitVoteProcedure, svc.SubmitVote, opts...))
	mux.Handle(RoomServiceSuggestPlacesProcedure, connect.NewUnaryHandler(RoomServiceSuggestPlacesProcedure, svc.SuggestPlaces, opts...))
	mux.Handle(RoomServiceStartVotingProcedure, connect.NewUnaryHandler(RoomServiceStartVotingProcedure, svc.StartVoting, opts...))
	mux.Handle(RoomServiceNextPlaceProcedure, connect.NewUnaryHandler(RoomServiceNextPlaceProcedure, svc.NextPlace, opts...))
	mux.Handle(RoomServicePrevPlaceProcedure, connect.NewUnaryHandler(RoomServicePrevPlaceProcedure, svc.PrevPlace, opts...))
	mux.Handle(RoomServiceEndVotingProcedure, connect.NewUnaryHandler(RoomServiceEndVotingProcedure, svc.EndVoting, opts...))
	mux.Handle(RoomServiceGetResultsProcedure, connect.NewUnaryHandler(RoomServiceGetResultsProcedure, svc.GetResults, opts...))
	return "/" + RoomServiceName + "/", mux
}

// CreateRoom opens a room owned by the caller
func (s *Service) CreateRoom(ctx context.Context, req *connect.Request[CreateRoomMsg]) (*connect.Response[RoomMsg], error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	room, err := s.app.CreateRoom(ctx, CreateRoomRequest{
		Name:      req.Msg.Name,
		CreatorID: userID,
		Occasion:  req.Msg.Occasion,
		Mood:      req.Msg.Mood,
	})
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&RoomMsg{Room: room}), nil
}

// JoinRoom adds the caller to a room by join code
func (s *Service) JoinRoom(ctx context.Context, req *connect.Request[JoinRoomMsg]) (*connect.Response[RoomMsg], error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	room, err := s.app.JoinRoom(ctx, req.Msg.Code, userID, req.Msg.Location)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&RoomMsg{Room: room}), nil
}

// GetRoom returns a room snapshot
func (s *Service) GetRoom(ctx context.Context, req *connect.Request[RoomIDMsg]) (*connect.Response[RoomMsg], error) {
	roomID, err := parseRoomID(req.Msg.RoomID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	room, err := s.app.GetRoom(ctx, roomID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&RoomMsg{Room: room}), nil
}

// GetResults returns the ranked places of a room
func (s *Service) GetResults(ctx context.Context, req *connect.Request[RoomIDMsg]) (*connect.Response[Results], error) {
	roomID, err := parseRoomID(req.Msg.RoomID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	res, err := s.app.GetResults(ctx, roomID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&res), nil
}

// SubmitVote records the caller's vote
func (s *Service) SubmitVote(ctx context.Context, req *connect.Request[SubmitVoteMsg]) (*connect.Response[VoteMsg], error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	roomID, err := parseRoomID(req.Msg.RoomID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	value, err := models.ParseVoteValue(req.Msg.Value)
	if err != nil {
		return nil, rpc.Error(apperr.Validation("%v", err))
	}
	vote, err := s.app.SubmitVote(ctx, VoteRequest{
		RoomID:  roomID,
		UserID:  userID,
		PlaceID: req.Msg.PlaceID,
		Value:   value,
		Advance: req.Msg.Advance,
	})
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&VoteMsg{Vote: vote}), nil
}

// SuggestPlaces fetches a suggestion batch into the room
func (s *Service) SuggestPlaces(ctx context.Context, req *connect.Request[SuggestPlacesMsg]) (*connect.Response[PlacesMsg], error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	roomID, err := parseRoomID(req.Msg.RoomID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	mode, err := ParseSuggestMode(req.Msg.Mode)
	if err != nil {
		return nil, rpc.Error(err)
	}
	var prefs *models.Preferences
	if req.Msg.Preferences != nil {
		p, err := PreferencesFromMsg(*req.Msg.Preferences)
		if err != nil {
			return nil, rpc.Error(err)
		}
		prefs = &p
	}
	places, err := s.app.SuggestPlaces(ctx, SuggestRequest{
		RoomID:      roomID,
		ActorID:     userID,
		Preferences: prefs,
		Mode:        mode,
	})
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&PlacesMsg{Places: places}), nil
}

// StartVoting starts the carousel
func (s *Service) StartVoting(ctx context.Context, req *connect.Request[StartVotingMsg]) (*connect.Response[RoomMsg], error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	roomID, err := parseRoomID(req.Msg.RoomID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	opts, err := VotingOptionsFromMsg(s.app.DefaultVoting(), *req.Msg)
	if err != nil {
		return nil, rpc.Error(err)
	}
	room, err := s.app.StartVoting(ctx, roomID, userID, opts)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&RoomMsg{Room: room}), nil
}

// NextPlace moves the carousel forward
func (s *Service) NextPlace(ctx context.Context, req *connect.Request[RoomIDMsg]) (*connect.Response[RoomMsg], error) {
	return s.navigate(ctx, req.Msg, s.app.NextPlace)
}

// PrevPlace moves the carousel back
func (s *Service) PrevPlace(ctx context.Context, req *connect.Request[RoomIDMsg]) (*connect.Response[RoomMsg], error) {
	return s.navigate(ctx, req.Msg, s.app.PrevPlace)
}

// EndVoting finishes the carousel
func (s *Service) EndVoting(ctx context.Context, req *connect.Request[RoomIDMsg]) (*connect.Response[RoomMsg], error) {
	return s.navigate(ctx, req.Msg, s.app.EndVoting)
}

func (s *Service) navigate(ctx context.Context, msg *RoomIDMsg, op func(context.Context, uuid.UUID, uuid.UUID) (models.Room, error)) (*connect.Response[RoomMsg], error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	roomID, err := parseRoomID(msg.RoomID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	room, err := op(ctx, roomID, userID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&RoomMsg{Room: room}), nil
}

func parseRoomID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, apperr.Validation("room id is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid room id %q", s)
	}
	return id, nil
}

// PreferencesFromMsg parses a transport preference profile.
func PreferencesFromMsg(m PreferencesMsg) (models.Preferences, error) {
	price, err := models.ParsePriceRange(m.PriceRange)
	if err != nil {
		return models.Preferences{}, apperr.Validation("%v", err)
	}
	if m.MaxDistanceKm < 0 {
		return models.Preferences{}, apperr.Validation("max distance must not be negative")
	}
	return models.Preferences{
		CuisineTypes:        nonNil(m.CuisineTypes),
		PriceRange:          price,
		Atmosphere:          nonNil(m.Atmosphere),
		DietaryRestrictions: nonNil(m.DietaryRestrictions),
		MaxDistanceKm:       m.MaxDistanceKm,
	}, nil
}

// VotingOptionsFromMsg overlays a start request onto the defaults. It returns
// nil when the request overrides nothing.
func VotingOptionsFromMsg(defaults VotingOptions, m StartVotingMsg) (*VotingOptions, error) {
	if m.Mode == "" && m.AutoVote == nil && m.AutoAdvance == nil && m.CardSeconds == 0 {
		return nil, nil
	}
	opts := defaults
	if m.Mode != "" {
		mode, err := models.ParseCarouselMode(m.Mode)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		opts.Mode = mode
		if mode == models.CarouselManualBrowse && m.AutoAdvance == nil {
			opts.AutoAdvance = false
		}
	}
	if m.AutoVote != nil {
		opts.AutoVote = *m.AutoVote
	}
	if m.AutoAdvance != nil {
		opts.AutoAdvance = *m.AutoAdvance
	}
	if m.CardSeconds < 0 || m.CardSeconds > 600 {
		return nil, apperr.Validation("card seconds must be between 1 and 600")
	}
	if m.CardSeconds > 0 {
		opts.CardSeconds = m.CardSeconds
	}
	return &opts, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
