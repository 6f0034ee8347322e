package player

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evenodd-league/agents/internal/auth"
	"github.com/evenodd-league/agents/internal/domain"
	"github.com/evenodd-league/agents/internal/protocol"
	"github.com/evenodd-league/agents/internal/repo"
	"github.com/evenodd-league/agents/internal/resilience"
	"github.com/evenodd-league/agents/internal/transport"
)

type fixedStrategy struct{ choice string }

func (s fixedStrategy) Choose(opponentID string, history []domain.PlayerHistoryRecord) string {
	return s.choice
}

func testPlayer(t *testing.T, managerEndpoint string) *Player {
	t.Helper()
	authSvc, err := auth.NewService([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	client := transport.NewClient(time.Second, resilience.RetryConfig{MaxAttempts: 0, Base: time.Millisecond}, resilience.DefaultConfig())
	history := repo.NewHistoryRepo(t.TempDir())

	cfg := Config{
		PlayerID:        "p1",
		LeagueID:        "L1",
		GameType:        "even_odd",
		DisplayName:     "p1",
		ContactEndpoint: "http://p1/mcp",
		ManagerEndpoint: managerEndpoint,
	}
	return New(cfg, fixedStrategy{choice: "even"}, history, client, authSvc, nil)
}

func rpcStub(t *testing.T, respond func(method string, params json.RawMessage) interface{}) (*httptest.Server, *[]string) {
	t.Helper()
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var rpcReq struct {
			Method string          `json:"method"`
			ID     string          `json:"id"`
			Params json.RawMessage `json:"params"`
		}
		_ = json.NewDecoder(req.Body).Decode(&rpcReq)
		methods = append(methods, rpcReq.Method)
		result := interface{}(map[string]interface{}{})
		if respond != nil {
			result = respond(rpcReq.Method, rpcReq.Params)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": rpcReq.ID, "result": result,
		})
	}))
	return srv, &methods
}

func TestRegister_AcceptedStoresToken(t *testing.T) {
	srv, _ := rpcStub(t, func(method string, params json.RawMessage) interface{} {
		return protocol.LeagueRegisterResponse{
			Status:    protocol.RegistrationAccepted,
			PlayerID:  "p1",
			AuthToken: "tok-123",
		}
	})
	defer srv.Close()

	p := testPlayer(t, srv.URL)
	require.NoError(t, p.Register(context.Background()))
	assert.Equal(t, "tok-123", p.authToken())
}

func TestRegister_RejectedReturnsError(t *testing.T) {
	srv, _ := rpcStub(t, func(method string, params json.RawMessage) interface{} {
		return protocol.LeagueRegisterResponse{
			Status:          protocol.RegistrationRejected,
			RejectionReason: "league full",
		}
	})
	defer srv.Close()

	p := testPlayer(t, srv.URL)
	err := p.Register(context.Background())
	assert.Error(t, err)
}

func TestHandleInvitation_AcceptsAndNotifiesReferee(t *testing.T) {
	refSrv, methods := rpcStub(t, nil)
	defer refSrv.Close()

	p := testPlayer(t, "")
	resp, err := p.HandleMessage(context.Background(), protocol.Message{
		Envelope: protocol.Envelope{MessageType: protocol.MsgGameInvitation},
		Payload: &protocol.GameInvitation{
			MatchID:         "M1",
			GameType:        "even_odd",
			RoleInMatch:     protocol.RolePlayerA,
			OpponentID:      "p2",
			RefereeEndpoint: refSrv.URL,
		},
	})
	require.NoError(t, err)
	ack := resp.(*protocol.GameJoinAck)
	assert.True(t, ack.Accept)
	assert.Equal(t, "M1", ack.MatchID)
	require.Contains(t, *methods, string(protocol.MsgGameJoinAck))

	p.mu.Lock()
	match, known := p.activeMatches["M1"]
	p.mu.Unlock()
	require.True(t, known)
	assert.Equal(t, "p2", match.OpponentID)
}

func TestHandleInvitation_DeclinesWhenShuttingDown(t *testing.T) {
	refSrv, _ := rpcStub(t, nil)
	defer refSrv.Close()

	p := testPlayer(t, "")
	p.Shutdown()
	resp, err := p.HandleMessage(context.Background(), protocol.Message{
		Envelope: protocol.Envelope{MessageType: protocol.MsgGameInvitation},
		Payload: &protocol.GameInvitation{
			MatchID:         "M1",
			GameType:        "even_odd",
			RoleInMatch:     protocol.RolePlayerA,
			OpponentID:      "p2",
			RefereeEndpoint: refSrv.URL,
		},
	})
	require.NoError(t, err)
	assert.False(t, resp.(*protocol.GameJoinAck).Accept)

	p.mu.Lock()
	_, known := p.activeMatches["M1"]
	p.mu.Unlock()
	assert.False(t, known, "a declined match must not be tracked")
}

func TestHandleChooseParity_UsesStrategyAndNotifiesReferee(t *testing.T) {
	refSrv, methods := rpcStub(t, nil)
	defer refSrv.Close()

	p := testPlayer(t, "")
	_, err := p.HandleMessage(context.Background(), protocol.Message{
		Envelope: protocol.Envelope{MessageType: protocol.MsgGameInvitation},
		Payload: &protocol.GameInvitation{
			MatchID:         "M1",
			GameType:        "even_odd",
			RoleInMatch:     protocol.RolePlayerA,
			OpponentID:      "p2",
			RefereeEndpoint: refSrv.URL,
		},
	})
	require.NoError(t, err)

	resp, err := p.HandleMessage(context.Background(), protocol.Message{
		Envelope: protocol.Envelope{MessageType: protocol.MsgChooseParityCall},
		Payload: &protocol.ChooseParityCall{
			MatchID:  "M1",
			GameType: "even_odd",
			Deadline: time.Now().Add(time.Second).Format(time.RFC3339Nano),
			Context:  protocol.ChooseParityContext{OpponentID: "p2", RoundID: "R1"},
		},
	})
	require.NoError(t, err)
	choice := resp.(*protocol.ChooseParityResponse)
	assert.Equal(t, protocol.Parity("even"), choice.ParityChoice)
	require.Contains(t, *methods, string(protocol.MsgChooseParityResponse))
}

func TestHandleGameOver_AppendsHistoryAndClearsMatch(t *testing.T) {
	p := testPlayer(t, "")
	p.mu.Lock()
	p.activeMatches["M1"] = activeMatch{OpponentID: "p2", Role: protocol.RolePlayerA}
	p.mu.Unlock()

	_, err := p.HandleMessage(context.Background(), protocol.Message{
		Envelope: protocol.Envelope{MessageType: protocol.MsgGameOver},
		Payload: &protocol.GameOver{
			MatchID: "M1",
			GameResult: protocol.GameResult{
				Status:         protocol.MatchStatusWin,
				WinnerPlayerID: "p1",
				DrawnNumber:    4,
				NumberParity:   protocol.ParityEven,
				Choices:        map[string]protocol.Parity{"p1": protocol.ParityEven, "p2": protocol.ParityOdd},
			},
		},
	})
	require.NoError(t, err)

	p.mu.Lock()
	_, known := p.activeMatches["M1"]
	p.mu.Unlock()
	assert.False(t, known)

	history, err := p.history.Get("p1")
	require.NoError(t, err)
	require.Len(t, history.Matches, 1)
	assert.Equal(t, "WIN", history.Matches[0].Result)
	assert.Equal(t, "p2", history.Matches[0].OpponentID)
	assert.Equal(t, 4, history.Matches[0].DrawnNumber)
}
