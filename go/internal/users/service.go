package users

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

const UserServiceName = "placepick.user.v1.UserService"

const (
	UserServiceCreateGuestProcedure       = "/" + UserServiceName + "/CreateGuest"
	UserServiceGetUserProcedure           = "/" + UserServiceName + "/GetUser"
	UserServiceUpdatePreferencesProcedure = "/" + UserServiceName + "/UpdatePreferences"
)

// UsersApp defines what the service layer needs from the users application
type UsersApp interface {
	CreateGuest(ctx context.Context, req CreateGuestRequest) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePreferences(ctx context.Context, actorID, userID uuid.UUID, prefs models.Preferences) (*models.User, error)
}

// TokenIssuer mints session tokens for new guests
type TokenIssuer interface {
	NewGuestToken(userID uuid.UUID, name string) (string, error)
}

// Service implements the UserService connect handlers
type Service struct {
	app    UsersApp
	tokens TokenIssuer
}

// NewService creates a new users service
func NewService(app UsersApp, tokens TokenIssuer) *Service {
	return &Service{
		app:    app,
		tokens: tokens,
	}
}

// NewUserServiceHandler builds an HTTP handler serving every UserService
// procedure and returns the path prefix to mount it on.
func NewUserServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = rpc.HandlerOptions(opts...)
	mux := http.NewServeMux()
	mux.Handle(UserServiceCreateGuestProcedure, connect.NewUnaryHandler(UserServiceCreateGuestProcedure, svc.CreateGuest, opts...))
	mux.Handle(UserServiceGetUserProcedure, connect.NewUnaryHandler(UserServiceGetUserProcedure, svc.GetUser, opts...))
	mux.Handle(UserServiceUpdatePreferencesProcedure, connect.NewUnaryHandler(UserServiceUpdatePreferencesProcedure, svc.UpdatePreferences, opts...))
	return "/" + UserServiceName + "/", mux
}

// CreateGuest creates a guest user and returns it with a session token
func (s *Service) CreateGuest(ctx context.Context, req *connect.Request[CreateGuestMsg]) (*connect.Response[GuestMsg], error) {
	prefs := models.DefaultPreferences()
	if req.Msg.Preferences != nil {
		prefs = preferencesFromMsg(*req.Msg.Preferences)
	}

	user, err := s.app.CreateGuest(ctx, CreateGuestRequest{
		Name:        req.Msg.Name,
		Preferences: prefs,
	})
	if err != nil {
		return nil, rpc.Error(err)
	}

	token, err := s.tokens.NewGuestToken(user.ID, user.Name)
	if err != nil {
		return nil, rpc.Error(err)
	}

	return connect.NewResponse(&GuestMsg{User: *user, Token: token}), nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, req *connect.Request[GetUserMsg]) (*connect.Response[UserMsg], error) {
	id, err := parseUserID(req.Msg.ID)
	if err != nil {
		return nil, rpc.Error(err)
	}

	user, err := s.app.GetUser(ctx, id)
	if err != nil {
		return nil, rpc.Error(err)
	}

	return connect.NewResponse(&UserMsg{User: *user}), nil
}

// UpdatePreferences replaces the caller's preferences
func (s *Service) UpdatePreferences(ctx context.Context, req *connect.Request[UpdatePreferencesMsg]) (*connect.Response[UserMsg], error) {
	actorID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseUserID(req.Msg.ID)
	if err != nil {
		return nil, rpc.Error(err)
	}

	user, err := s.app.UpdatePreferences(ctx, actorID, id, preferencesFromMsg(req.Msg.Preferences))
	if err != nil {
		return nil, rpc.Error(err)
	}

	return connect.NewResponse(&UserMsg{User: *user}), nil
}

func parseUserID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid user id %q", s)
	}
	return id, nil
}

// preferencesFromMsg copies the wire form; App validates it.
func preferencesFromMsg(m PreferencesMsg) models.Preferences {
	return models.Preferences{
		CuisineTypes:        m.CuisineTypes,
		PriceRange:          models.PriceRange(m.PriceRange),
		Atmosphere:          m.Atmosphere,
		DietaryRestrictions: m.DietaryRestrictions,
		MaxDistanceKm:       m.MaxDistanceKm,
	}
}
