package referee

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evenodd-league/agents/internal/auth"
	"github.com/evenodd-league/agents/internal/game"
	"github.com/evenodd-league/agents/internal/protocol"
	"github.com/evenodd-league/agents/internal/repo"
	"github.com/evenodd-league/agents/internal/resilience"
	"github.com/evenodd-league/agents/internal/transport"
)

func samplePlayers() [2]playerEndpoint {
	return [2]playerEndpoint{
		{PlayerID: "p1", Endpoint: "http://p1/mcp"},
		{PlayerID: "p2", Endpoint: "http://p2/mcp"},
	}
}

func TestMissingPlayers_BothPresent(t *testing.T) {
	players := samplePlayers()
	present := map[string]bool{"p1": true, "p2": true}
	assert.Empty(t, missingPlayers(players, present))
}

func TestMissingPlayers_OneMissing(t *testing.T) {
	players := samplePlayers()
	present := map[string]bool{"p1": true}
	assert.Equal(t, []string{"p2"}, missingPlayers(players, present))
}

func TestPendingPlayers(t *testing.T) {
	players := samplePlayers()
	choices := map[string]string{"p1": "even"}
	assert.Equal(t, []string{"p2"}, pendingPlayers(players, choices))
}

func TestIndexOf(t *testing.T) {
	players := samplePlayers()
	assert.Equal(t, 0, indexOf(players, "p1"))
	assert.Equal(t, 1, indexOf(players, "p2"))
	assert.Equal(t, -1, indexOf(players, "p3"))
}

func TestAllExhausted_TrueWhenRetriesSpent(t *testing.T) {
	players := samplePlayers()
	choices := map[string]string{}
	retries := map[string]int{"p1": 4, "p2": 4}
	assert.True(t, allExhausted(players, choices, retries, 3))
}

func TestAllExhausted_FalseWhileRetriesRemain(t *testing.T) {
	players := samplePlayers()
	choices := map[string]string{}
	retries := map[string]int{"p1": 1, "p2": 4}
	assert.False(t, allExhausted(players, choices, retries, 3))
}

func TestAllExhausted_TrueWhenAllChose(t *testing.T) {
	players := samplePlayers()
	choices := map[string]string{"p1": "even", "p2": "odd"}
	assert.True(t, allExhausted(players, choices, map[string]int{}, 3))
}

func TestMatchSeed_DeterministicForSameID(t *testing.T) {
	id := "8f14e45f-ceea-467e-b7a9-fbcdcc2af21e"
	assert.Equal(t, matchSeed(id), matchSeed(id))
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}
	assert.Equal(t, 5*time.Second, c.joinAckTimeout())
	assert.Equal(t, 30*time.Second, c.moveTimeout())
}

// --- integration harness -----------------------------------------------------
//
// The tests below drive a real Referee end to end over HTTP: a referee
// server wraps a live *Referee, two stub player servers react to the
// messages it sends them, and a stub manager server captures the final
// MATCH_RESULT_REPORT. This is the only way to exercise runMatch's state
// machine rather than its pure helpers.

type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      string          `json:"id"`
}

type wireError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
	ID      string          `json:"id"`
}

func writeWireResult(w http.ResponseWriter, id string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(wireResponse{JSONRPC: "2.0", Result: json.RawMessage(`{}`), ID: id})
}

func writeWireError(w http.ResponseWriter, id string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(wireResponse{JSONRPC: "2.0", Error: &wireError{Code: 400, Message: err.Error()}, ID: id})
}

// stubPlayer fakes a player agent's /mcp endpoint: it optionally joins a
// match and optionally submits a parity choice, and records every GAME_OVER
// and GAME_ERROR it is sent.
type stubPlayer struct {
	t              *testing.T
	playerID       string
	leagueID       string
	authSvc        *auth.Service
	refereeURL     string
	joinOnInvite   bool
	ackTwice       bool
	choice         string

	mu         sync.Mutex
	gameOvers  []protocol.GameOver
	gameErrors []protocol.GameError
}

func newStubPlayer(t *testing.T, playerID, leagueID string, authSvc *auth.Service, refereeURL string) *stubPlayer {
	return &stubPlayer{t: t, playerID: playerID, leagueID: leagueID, authSvc: authSvc, refereeURL: refereeURL}
}

func (s *stubPlayer) handle(w http.ResponseWriter, r *http.Request) {
	var req wireRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	msg, err := protocol.Decode(req.Params)
	if err != nil {
		writeWireError(w, req.ID, err)
		return
	}
	switch p := msg.Payload.(type) {
	case *protocol.GameInvitation:
		if s.joinOnInvite {
			go s.sendJoinAck(p.MatchID)
			if s.ackTwice {
				go s.sendJoinAck(p.MatchID)
			}
		}
	case *protocol.ChooseParityCall:
		if s.choice != "" {
			go s.sendChoice(p.MatchID)
		}
	case *protocol.GameOver:
		s.mu.Lock()
		s.gameOvers = append(s.gameOvers, *p)
		s.mu.Unlock()
	case *protocol.GameError:
		s.mu.Lock()
		s.gameErrors = append(s.gameErrors, *p)
		s.mu.Unlock()
	}
	writeWireResult(w, req.ID)
}

func (s *stubPlayer) sendJoinAck(matchID string) {
	s.post(protocol.MsgGameJoinAck, &protocol.GameJoinAck{
		MatchID:          matchID,
		Accept:           true,
		ArrivalTimestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *stubPlayer) sendChoice(matchID string) {
	s.post(protocol.MsgChooseParityResponse, &protocol.ChooseParityResponse{
		MatchID:      matchID,
		ParityChoice: protocol.Parity(s.choice),
	})
}

func (s *stubPlayer) post(msgType protocol.MessageType, payload protocol.Payload) {
	tok, err := s.authSvc.Issue(s.playerID, s.leagueID, protocol.RolePlayer)
	if err != nil {
		return
	}
	env := protocol.NewEnvelope(msgType, protocol.RolePlayer, s.playerID, fmt.Sprintf("conv-%d", time.Now().UnixNano()), tok, time.Now())
	params, err := protocol.Encode(env, payload)
	if err != nil {
		return
	}
	body, err := json.Marshal(wireRequest{JSONRPC: "2.0", Method: string(msgType), Params: params, ID: "1"})
	if err != nil {
		return
	}
	resp, err := http.Post(s.refereeURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

func (s *stubPlayer) errorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gameErrors)
}

func (s *stubPlayer) overCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gameOvers)
}

// fakeManager fakes the league manager's /mcp endpoint, capturing every
// MATCH_RESULT_REPORT the referee sends it.
type fakeManager struct {
	mu      sync.Mutex
	reports []protocol.MatchResultReport
}

func (m *fakeManager) handle(w http.ResponseWriter, r *http.Request) {
	var req wireRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if msg, err := protocol.Decode(req.Params); err == nil {
		if rep, ok := msg.Payload.(*protocol.MatchResultReport); ok {
			m.mu.Lock()
			m.reports = append(m.reports, *rep)
			m.mu.Unlock()
		}
	}
	writeWireResult(w, req.ID)
}

func (m *fakeManager) reportCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

func (m *fakeManager) firstReport() protocol.MatchResultReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports[0]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// testReferee builds a live Referee behind its own httptest server, sharing
// authSvc with whatever stub players/manager the test wires up so bearer
// tokens issued by one side validate against the other.
func testReferee(t *testing.T, authSvc *auth.Service, managerURL string, cfg Config) (*Referee, string) {
	t.Helper()
	dir := t.TempDir()
	matchRepo := repo.NewMatchRepo(dir)
	client := transport.NewClient(2*time.Second, resilience.RetryConfig{MaxAttempts: 0, Base: time.Millisecond}, resilience.DefaultConfig())

	cfg.RefereeID = "ref-1"
	cfg.LeagueID = "L1"
	cfg.GameType = "even_odd"
	cfg.ManagerEndpoint = managerURL
	cfg.SelfEndpoint = "http://referee/mcp"
	if cfg.MaxConcurrentMatches == 0 {
		cfg.MaxConcurrentMatches = 4
	}
	cfg.Scoring = game.Scoring{Win: 3, Draw: 1, Loss: 0, TechnicalLoss: 0}
	cfg.NumberRange = game.NumberRange{Lo: 1, Hi: 100}

	ref := New(cfg, matchRepo, client, authSvc, nil, nil)
	srv := httptest.NewServer(transport.NewServer(ref.HandleMessage, nil, nil, 0, 0))
	t.Cleanup(srv.Close)
	return ref, srv.URL + "/mcp"
}

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	return svc
}

func TestRunMatch_HappyPath_BothJoinAndChoose(t *testing.T) {
	authSvc := newAuthService(t)
	mgr := &fakeManager{}
	mgrSrv := httptest.NewServer(http.HandlerFunc(mgr.handle))
	defer mgrSrv.Close()

	ref, refURL := testReferee(t, authSvc, mgrSrv.URL+"/mcp", Config{
		JoinAckTimeout: 200 * time.Millisecond,
		MoveTimeout:    200 * time.Millisecond,
		Retry:          resilience.RetryConfig{MaxAttempts: 2, Base: time.Millisecond},
	})

	p1 := newStubPlayer(t, "p1", "L1", authSvc, refURL)
	p1.joinOnInvite = true
	p1.choice = "even"
	p1Srv := httptest.NewServer(http.HandlerFunc(p1.handle))
	defer p1Srv.Close()

	p2 := newStubPlayer(t, "p2", "L1", authSvc, refURL)
	p2.joinOnInvite = true
	p2.choice = "odd"
	p2Srv := httptest.NewServer(http.HandlerFunc(p2.handle))
	defer p2Srv.Close()

	rm := protocol.RoundMatch{
		MatchID:         "M1",
		RoundID:         "R1",
		GameType:        "even_odd",
		PlayerAID:       "p1",
		PlayerBID:       "p2",
		PlayerAEndpoint: p1Srv.URL,
		PlayerBEndpoint: p2Srv.URL,
	}
	players := [2]playerEndpoint{{PlayerID: "p1", Endpoint: p1Srv.URL}, {PlayerID: "p2", Endpoint: p2Srv.URL}}
	require.NoError(t, ref.StartMatch("R1", rm, players))

	waitFor(t, 2*time.Second, func() bool { return mgr.reportCount() == 1 })

	report := mgr.firstReport()
	assert.Equal(t, "M1", report.MatchID)
	assert.Equal(t, protocol.MatchStatusWin, report.Result.Status)
	assert.Contains(t, []string{"p1", "p2"}, report.Result.WinnerPlayerID)

	waitFor(t, time.Second, func() bool { return p1.overCount() == 1 && p2.overCount() == 1 })
}

func TestRunMatch_OnePlayerFailsToJoin_TechnicalLoss(t *testing.T) {
	authSvc := newAuthService(t)
	mgr := &fakeManager{}
	mgrSrv := httptest.NewServer(http.HandlerFunc(mgr.handle))
	defer mgrSrv.Close()

	ref, refURL := testReferee(t, authSvc, mgrSrv.URL+"/mcp", Config{
		JoinAckTimeout: 100 * time.Millisecond,
		MoveTimeout:    100 * time.Millisecond,
		Retry:          resilience.RetryConfig{MaxAttempts: 1, Base: time.Millisecond},
	})

	p1 := newStubPlayer(t, "p1", "L1", authSvc, refURL)
	p1.joinOnInvite = true
	p1Srv := httptest.NewServer(http.HandlerFunc(p1.handle))
	defer p1Srv.Close()

	p2 := newStubPlayer(t, "p2", "L1", authSvc, "")
	// p2 never acknowledges the invitation.
	p2Srv := httptest.NewServer(http.HandlerFunc(p2.handle))
	defer p2Srv.Close()

	rm := protocol.RoundMatch{
		MatchID:         "M2",
		RoundID:         "R1",
		GameType:        "even_odd",
		PlayerAID:       "p1",
		PlayerBID:       "p2",
		PlayerAEndpoint: p1Srv.URL,
		PlayerBEndpoint: p2Srv.URL,
	}
	players := [2]playerEndpoint{{PlayerID: "p1", Endpoint: p1Srv.URL}, {PlayerID: "p2", Endpoint: p2Srv.URL}}
	require.NoError(t, ref.StartMatch("R1", rm, players))

	waitFor(t, 2*time.Second, func() bool { return mgr.reportCount() == 1 })

	report := mgr.firstReport()
	assert.Equal(t, protocol.MatchStatusWin, report.Result.Status)
	assert.Equal(t, "p1", report.Result.WinnerPlayerID)
	assert.Equal(t, 0, report.Result.Score["p2"])
	assert.Equal(t, 3, report.Result.Score["p1"])
}

func TestRunMatch_BothPlayersFailToJoin_Cancelled(t *testing.T) {
	authSvc := newAuthService(t)
	mgr := &fakeManager{}
	mgrSrv := httptest.NewServer(http.HandlerFunc(mgr.handle))
	defer mgrSrv.Close()

	ref, _ := testReferee(t, authSvc, mgrSrv.URL+"/mcp", Config{
		JoinAckTimeout: 80 * time.Millisecond,
		MoveTimeout:    80 * time.Millisecond,
		Retry:          resilience.RetryConfig{MaxAttempts: 1, Base: time.Millisecond},
	})

	p1Srv := httptest.NewServer(http.HandlerFunc(newStubPlayer(t, "p1", "L1", authSvc, "").handle))
	defer p1Srv.Close()
	p2Srv := httptest.NewServer(http.HandlerFunc(newStubPlayer(t, "p2", "L1", authSvc, "").handle))
	defer p2Srv.Close()

	rm := protocol.RoundMatch{
		MatchID:         "M3",
		RoundID:         "R1",
		GameType:        "even_odd",
		PlayerAID:       "p1",
		PlayerBID:       "p2",
		PlayerAEndpoint: p1Srv.URL,
		PlayerBEndpoint: p2Srv.URL,
	}
	players := [2]playerEndpoint{{PlayerID: "p1", Endpoint: p1Srv.URL}, {PlayerID: "p2", Endpoint: p2Srv.URL}}
	require.NoError(t, ref.StartMatch("R1", rm, players))

	waitFor(t, 2*time.Second, func() bool { return mgr.reportCount() == 1 })

	report := mgr.firstReport()
	assert.Equal(t, protocol.MatchStatusCancelled, report.Result.Status)
	assert.Equal(t, 0, report.Result.Score["p1"])
	assert.Equal(t, 0, report.Result.Score["p2"])
}

func TestRunMatch_DuplicateJoinAck_DoesNotBreakMatch(t *testing.T) {
	authSvc := newAuthService(t)
	mgr := &fakeManager{}
	mgrSrv := httptest.NewServer(http.HandlerFunc(mgr.handle))
	defer mgrSrv.Close()

	ref, refURL := testReferee(t, authSvc, mgrSrv.URL+"/mcp", Config{
		JoinAckTimeout: 200 * time.Millisecond,
		MoveTimeout:    200 * time.Millisecond,
		Retry:          resilience.RetryConfig{MaxAttempts: 2, Base: time.Millisecond},
	})

	p1 := newStubPlayer(t, "p1", "L1", authSvc, refURL)
	p1.joinOnInvite = true
	p1.ackTwice = true // simulates a replayed GAME_JOIN_ACK
	p1.choice = "even"
	p1Srv := httptest.NewServer(http.HandlerFunc(p1.handle))
	defer p1Srv.Close()

	p2 := newStubPlayer(t, "p2", "L1", authSvc, refURL)
	p2.joinOnInvite = true
	p2.choice = "even"
	p2Srv := httptest.NewServer(http.HandlerFunc(p2.handle))
	defer p2Srv.Close()

	rm := protocol.RoundMatch{
		MatchID:         "M4",
		RoundID:         "R1",
		GameType:        "even_odd",
		PlayerAID:       "p1",
		PlayerBID:       "p2",
		PlayerAEndpoint: p1Srv.URL,
		PlayerBEndpoint: p2Srv.URL,
	}
	players := [2]playerEndpoint{{PlayerID: "p1", Endpoint: p1Srv.URL}, {PlayerID: "p2", Endpoint: p2Srv.URL}}
	require.NoError(t, ref.StartMatch("R1", rm, players))

	waitFor(t, 2*time.Second, func() bool { return mgr.reportCount() == 1 })

	// Give the duplicate ack time to arrive and be dropped before asserting
	// no second report was ever produced.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, mgr.reportCount(), "a replayed GAME_JOIN_ACK must not double-report the match")
	assert.Equal(t, protocol.MatchStatusDraw, mgr.firstReport().Result.Status)
}

// TestRunMatch_MoveTimeout_TechnicalLossWithGameError exercises S4: a
// player that never answers CHOOSE_PARITY_CALL is retried up to
// Retry.MaxAttempts, is sent a GAME_ERROR on every retry and again when
// retries are exhausted, and the match ends in a technical loss against it.
func TestRunMatch_MoveTimeout_TechnicalLossWithGameError(t *testing.T) {
	authSvc := newAuthService(t)
	mgr := &fakeManager{}
	mgrSrv := httptest.NewServer(http.HandlerFunc(mgr.handle))
	defer mgrSrv.Close()

	const maxAttempts = 3
	ref, refURL := testReferee(t, authSvc, mgrSrv.URL+"/mcp", Config{
		JoinAckTimeout: 200 * time.Millisecond,
		MoveTimeout:    50 * time.Millisecond,
		Retry:          resilience.RetryConfig{MaxAttempts: maxAttempts, Base: time.Millisecond},
	})

	p1 := newStubPlayer(t, "p1", "L1", authSvc, refURL)
	p1.joinOnInvite = true
	p1.choice = "even"
	p1Srv := httptest.NewServer(http.HandlerFunc(p1.handle))
	defer p1Srv.Close()

	p2 := newStubPlayer(t, "p2", "L1", authSvc, refURL)
	p2.joinOnInvite = true
	// p2 never submits a parity choice.
	p2Srv := httptest.NewServer(http.HandlerFunc(p2.handle))
	defer p2Srv.Close()

	rm := protocol.RoundMatch{
		MatchID:         "M5",
		RoundID:         "R1",
		GameType:        "even_odd",
		PlayerAID:       "p1",
		PlayerBID:       "p2",
		PlayerAEndpoint: p1Srv.URL,
		PlayerBEndpoint: p2Srv.URL,
	}
	players := [2]playerEndpoint{{PlayerID: "p1", Endpoint: p1Srv.URL}, {PlayerID: "p2", Endpoint: p2Srv.URL}}
	require.NoError(t, ref.StartMatch("R1", rm, players))

	waitFor(t, 3*time.Second, func() bool { return mgr.reportCount() == 1 })
	waitFor(t, time.Second, func() bool { return p2.errorCount() == maxAttempts+1 })

	report := mgr.firstReport()
	assert.Equal(t, protocol.MatchStatusWin, report.Result.Status)
	assert.Equal(t, "p1", report.Result.WinnerPlayerID)
	assert.Equal(t, "exhausted choice retries", report.Result.Reason)

	p2.mu.Lock()
	errs := append([]protocol.GameError{}, p2.gameErrors...)
	p2.mu.Unlock()
	require.Len(t, errs, maxAttempts+1)
	for i, e := range errs {
		assert.Equal(t, "M5", e.MatchID)
		assert.Equal(t, "INVALID_CHOICE", e.ErrorCode)
		if i < maxAttempts {
			assert.NotEqual(t, "none", e.ActionRequired)
		}
	}
	last := errs[len(errs)-1]
	assert.Equal(t, maxAttempts, last.RetryCount)
	assert.Equal(t, maxAttempts, last.MaxRetries)
	assert.Equal(t, "none", last.ActionRequired)
	assert.Equal(t, "technical loss", last.Consequence)

	assert.Equal(t, 0, p1.errorCount(), "the responsive player must not be sent GAME_ERROR")
}
