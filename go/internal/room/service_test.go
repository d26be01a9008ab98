package room

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/auth"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/mcdev12/placepick/go/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	*appFixture
	srv    *httptest.Server
	issuer *auth.Issuer
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := newAppFixture(t, VotingOptions{})
	issuer := auth.NewIssuer("test-secret", time.Hour)
	path, handler := NewRoomServiceHandler(NewService(f.app), connect.WithInterceptors(auth.NewInterceptor(issuer)))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &serviceFixture{appFixture: f, srv: srv, issuer: issuer}
}

func (f *serviceFixture) token(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := f.issuer.NewGuestToken(u.ID, u.Name)
	require.NoError(t, err)
	return tok
}

func call[Req, Res any](t *testing.T, f *serviceFixture, procedure, token string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](f.srv.Client(), f.srv.URL+procedure, rpc.ClientOptions()...)
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	res, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func TestServiceRequiresAuthentication(t *testing.T) {
	f := newServiceFixture(t)
	_, err := call[CreateRoomMsg, RoomMsg](t, f, RoomServiceCreateRoomProcedure, "", &CreateRoomMsg{Name: "x"})
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = call[CreateRoomMsg, RoomMsg](t, f, RoomServiceCreateRoomProcedure, "garbage", &CreateRoomMsg{Name: "x"})
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestServiceRoomFlow(t *testing.T) {
	f := newServiceFixture(t)
	hostToken := f.token(t, f.host)
	guest := f.users.add("Guest")
	guestToken := f.token(t, guest)

	created, err := call[CreateRoomMsg, RoomMsg](t, f, RoomServiceCreateRoomProcedure, hostToken, &CreateRoomMsg{Name: "Lunch", Mood: "chill"})
	require.NoError(t, err)
	roomID := created.Room.ID.String()
	assert.Equal(t, "chill", created.Room.Mood)

	joined, err := call[JoinRoomMsg, RoomMsg](t, f, RoomServiceJoinRoomProcedure, guestToken, &JoinRoomMsg{Code: created.Room.Code})
	require.NoError(t, err)
	assert.Len(t, joined.Room.Members, 2)

	f.provider.set([]models.Place{place("a", 0.2), place("b", 0.1)}, nil)
	places, err := call[SuggestPlacesMsg, PlacesMsg](t, f, RoomServiceSuggestPlacesProcedure, guestToken, &SuggestPlacesMsg{RoomID: roomID})
	require.NoError(t, err)
	assert.Len(t, places.Places, 2)

	noAutoVote := false
	started, err := call[StartVotingMsg, RoomMsg](t, f, RoomServiceStartVotingProcedure, hostToken, &StartVotingMsg{RoomID: roomID, Mode: "browse", AutoVote: &noAutoVote})
	require.NoError(t, err)
	require.NotNil(t, started.Room.VotingSession)
	assert.Equal(t, models.CarouselManualBrowse, started.Room.VotingSession.Mode)
	assert.False(t, started.Room.VotingSession.AutoAdvance)

	voted, err := call[SubmitVoteMsg, VoteMsg](t, f, RoomServiceSubmitVoteProcedure, guestToken, &SubmitVoteMsg{RoomID: roomID, PlaceID: "a", Value: "love", Advance: true})
	require.NoError(t, err)
	assert.Equal(t, guest.ID, voted.Vote.UserID)

	next, err := call[RoomIDMsg, RoomMsg](t, f, RoomServiceNextPlaceProcedure, hostToken, &RoomIDMsg{RoomID: roomID})
	require.NoError(t, err)
	assert.Equal(t, 1, next.Room.VotingSession.CurrentPlaceIndex, "browse mode stays on the last card")

	prev, err := call[RoomIDMsg, RoomMsg](t, f, RoomServicePrevPlaceProcedure, hostToken, &RoomIDMsg{RoomID: roomID})
	require.NoError(t, err)
	assert.Equal(t, 0, prev.Room.VotingSession.CurrentPlaceIndex)

	ended, err := call[RoomIDMsg, RoomMsg](t, f, RoomServiceEndVotingProcedure, hostToken, &RoomIDMsg{RoomID: roomID})
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusResults, ended.Room.Status)

	results, err := call[RoomIDMsg, Results](t, f, RoomServiceGetResultsProcedure, "", &RoomIDMsg{RoomID: roomID})
	require.NoError(t, err)
	require.NotNil(t, results.LeadingChoice)
	assert.Equal(t, "a", results.LeadingChoice.Place.ID)

	got, err := call[RoomIDMsg, RoomMsg](t, f, RoomServiceGetRoomProcedure, "", &RoomIDMsg{RoomID: roomID})
	require.NoError(t, err)
	assert.Equal(t, created.Room.Code, got.Room.Code)
}

func TestServiceErrorCodes(t *testing.T) {
	f := newServiceFixture(t)
	hostToken := f.token(t, f.host)
	roomID := f.room.ID.String()

	_, err := call[RoomIDMsg, RoomMsg](t, f, RoomServiceGetRoomProcedure, "", &RoomIDMsg{RoomID: "not-a-uuid"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = call[RoomIDMsg, RoomMsg](t, f, RoomServiceGetRoomProcedure, "", &RoomIDMsg{RoomID: "00000000-0000-0000-0000-000000000001"})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = call[StartVotingMsg, RoomMsg](t, f, RoomServiceStartVotingProcedure, hostToken, &StartVotingMsg{RoomID: roomID})
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	_, err = call[SubmitVoteMsg, VoteMsg](t, f, RoomServiceSubmitVoteProcedure, hostToken, &SubmitVoteMsg{RoomID: roomID, PlaceID: "a", Value: "meh"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	f.provider.set(nil, apperr.Upstream(context.DeadlineExceeded, "places api"))
	_, err = call[SuggestPlacesMsg, PlacesMsg](t, f, RoomServiceSuggestPlacesProcedure, hostToken, &SuggestPlacesMsg{RoomID: roomID})
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))

	_, err = call[SuggestPlacesMsg, PlacesMsg](t, f, RoomServiceSuggestPlacesProcedure, hostToken, &SuggestPlacesMsg{RoomID: roomID, Mode: "shuffle"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestVotingOptionsFromMsg(t *testing.T) {
	defaults := VotingOptions{Mode: models.CarouselStrictTimed, AutoAdvance: true, AutoVote: true, CardSeconds: 30}

	opts, err := VotingOptionsFromMsg(defaults, StartVotingMsg{})
	require.NoError(t, err)
	assert.Nil(t, opts)

	opts, err = VotingOptionsFromMsg(defaults, StartVotingMsg{CardSeconds: 10})
	require.NoError(t, err)
	require.NotNil(t, opts)
	assert.Equal(t, 10, opts.CardSeconds)
	assert.True(t, opts.AutoVote)

	opts, err = VotingOptionsFromMsg(defaults, StartVotingMsg{Mode: "browse"})
	require.NoError(t, err)
	assert.Equal(t, models.CarouselManualBrowse, opts.Mode)
	assert.False(t, opts.AutoAdvance)

	yes := true
	opts, err = VotingOptionsFromMsg(defaults, StartVotingMsg{Mode: "browse", AutoAdvance: &yes})
	require.NoError(t, err)
	assert.True(t, opts.AutoAdvance)

	_, err = VotingOptionsFromMsg(defaults, StartVotingMsg{Mode: "random"})
	assert.True(t, apperr.IsValidation(err))

	_, err = VotingOptionsFromMsg(defaults, StartVotingMsg{CardSeconds: 601})
	assert.True(t, apperr.IsValidation(err))
}
