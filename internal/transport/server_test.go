package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evenodd-league/agents/internal/protocol"
	"github.com/evenodd-league/agents/internal/svcerr"
)

func registerRequestBody(t *testing.T) []byte {
	t.Helper()
	env := protocol.NewEnvelope(protocol.MsgLeagueRegisterRequest, protocol.RolePlayer, "P01", "conv-1", "", time.Now())
	payload := &protocol.LeagueRegisterRequest{
		RequestedPlayerID: "P01",
		PlayerMeta: protocol.PlayerMeta{
			DisplayName:     "Player One",
			Version:         "1.0",
			GameTypes:       []string{"even_odd"},
			ContactEndpoint: "http://player/mcp",
		},
	}
	params, err := protocol.Encode(env, payload)
	require.NoError(t, err)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: string(protocol.MsgLeagueRegisterRequest), Params: params, ID: "1"})
	require.NoError(t, err)
	return body
}

func TestHandleRPC_DispatchesDecodedMessageToHandler(t *testing.T) {
	var gotType protocol.MessageType
	handler := func(ctx context.Context, msg protocol.Message) (interface{}, error) {
		gotType = msg.Envelope.MessageType
		return &protocol.LeagueRegisterResponse{Status: protocol.RegistrationAccepted, PlayerID: "P01", AuthToken: "tok", LeagueID: "league-1"}, nil
	}
	srv := NewServer(handler, nil, nil, 0, 0)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(registerRequestBody(t)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, protocol.MsgLeagueRegisterRequest, gotType)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	var result protocol.LeagueRegisterResponse
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, protocol.RegistrationAccepted, result.Status)
}

func TestHandleRPC_HandlerErrorMapsToStatusCode(t *testing.T) {
	handler := func(ctx context.Context, msg protocol.Message) (interface{}, error) {
		return nil, svcerr.AuthTokenInvalid("expired")
	}
	srv := NewServer(handler, nil, nil, 0, 0)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(registerRequestBody(t)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleRPC_MalformedBodyRejected(t *testing.T) {
	srv := NewServer(func(ctx context.Context, msg protocol.Message) (interface{}, error) {
		t.Fatal("handler should not be called for malformed body")
		return nil, nil
	}, nil, nil, 0, 0)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz_ReturnsOK(t *testing.T) {
	srv := NewServer(nil, nil, nil, 0, 0)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminStandings_NotFoundWhenUnset(t *testing.T) {
	srv := NewServer(nil, nil, nil, 0, 0)
	req := httptest.NewRequest(http.MethodGet, "/admin/standings/league-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminStandings_ReturnsHandlerView(t *testing.T) {
	srv := NewServer(nil, nil, nil, 0, 0)
	var gotLeagueID string
	srv.WithAdmin(AdminHandlers{
		Standings: func(leagueID string) (interface{}, error) {
			gotLeagueID = leagueID
			return []protocol.StandingsEntryView{{Rank: 1, PlayerID: "P01", Points: 3}}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/standings/league-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "league-1", gotLeagueID)
	var view []protocol.StandingsEntryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view, 1)
	assert.Equal(t, "P01", view[0].PlayerID)
}

func TestAdminStart_PropagatesError(t *testing.T) {
	srv := NewServer(nil, nil, nil, 0, 0)
	srv.WithAdmin(AdminHandlers{
		StartLeague: func(ctx context.Context, leagueID string) error {
			return errors.New("league already started")
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/leagues/league-1/start", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminStart_AcceptedOnSuccess(t *testing.T) {
	srv := NewServer(nil, nil, nil, 0, 0)
	srv.WithAdmin(AdminHandlers{
		StartLeague: func(ctx context.Context, leagueID string) error { return nil },
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/leagues/league-1/start", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}
