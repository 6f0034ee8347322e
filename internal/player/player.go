// Package player implements the player agent skeleton (spec.md §4.10): it
// registers with the manager, accepts every game invitation, delegates its
// move to a pluggable Strategy, and keeps its own append-only match
// history. Unlike the referee, a player has no state machine of its own —
// each inbound message is handled independently. A repeated GAME_OVER for
// the same match is not de-duplicated and appends a second history record.
package player

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/evenodd-league/agents/internal/auth"
	"github.com/evenodd-league/agents/internal/domain"
	"github.com/evenodd-league/agents/internal/game"
	"github.com/evenodd-league/agents/internal/protocol"
	"github.com/evenodd-league/agents/internal/repo"
	"github.com/evenodd-league/agents/internal/svcerr"
	"github.com/evenodd-league/agents/internal/telemetry"
	"github.com/evenodd-league/agents/internal/transport"
)

// Config carries one player's identity and the manager it registers with.
type Config struct {
	PlayerID        string
	LeagueID        string
	GameType        string
	DisplayName     string
	ContactEndpoint string
	ManagerEndpoint string
	Scoring         game.Scoring
}

// activeMatch is what the player remembers about a match it has joined,
// scoped just to what CHOOSE_PARITY_CALL and GAME_OVER need (spec.md §4.10
// "Track (match_id, role, opponent_id)").
type activeMatch struct {
	OpponentID      string
	Role            protocol.RoleInMatch
	RefereeEndpoint string
}

// Player is one player agent process.
type Player struct {
	cfg      Config
	strategy Strategy
	history  *repo.HistoryRepo
	client   *transport.Client
	authSvc  *auth.Service
	logger   *telemetry.Logger

	mu            sync.Mutex
	token         string
	shuttingDown  bool
	activeMatches map[string]activeMatch
}

// New builds a Player. strategy must be safe for concurrent use; it is
// invoked from the HTTP handler goroutine for each CHOOSE_PARITY_CALL.
func New(cfg Config, strategy Strategy, history *repo.HistoryRepo, client *transport.Client, authSvc *auth.Service, logger *telemetry.Logger) *Player {
	return &Player{
		cfg:           cfg,
		strategy:      strategy,
		history:       history,
		client:        client,
		authSvc:       authSvc,
		logger:        logger,
		activeMatches: make(map[string]activeMatch),
	}
}

// Register sends LEAGUE_REGISTER_REQUEST to the manager and retains the
// returned token for every subsequent outbound call (spec.md §4.10
// "On startup").
func (p *Player) Register(ctx context.Context) error {
	payload := &protocol.LeagueRegisterRequest{
		RequestedPlayerID: p.cfg.PlayerID,
		PlayerMeta: protocol.PlayerMeta{
			DisplayName:     p.cfg.DisplayName,
			Version:         "1.0",
			GameTypes:       []string{p.cfg.GameType},
			ContactEndpoint: p.cfg.ContactEndpoint,
		},
	}
	env := protocol.NewEnvelope(protocol.MsgLeagueRegisterRequest, protocol.RolePlayer, p.cfg.PlayerID, newConversationID(), "", time.Now())
	raw, err := protocol.Encode(env, payload)
	if err != nil {
		return err
	}
	result, err := p.client.Call(ctx, p.cfg.ManagerEndpoint, string(protocol.MsgLeagueRegisterRequest), raw)
	if err != nil {
		return err
	}

	var resp protocol.LeagueRegisterResponse
	if err := decodeResult(result, &resp); err != nil {
		return err
	}
	if resp.Status != protocol.RegistrationAccepted {
		return svcerr.New(svcerr.CodeProtocolError, "registration rejected: "+resp.RejectionReason)
	}

	p.mu.Lock()
	p.cfg.PlayerID = resp.PlayerID
	p.token = resp.AuthToken
	p.mu.Unlock()
	return nil
}

// Shutdown marks the player as shutting down; subsequent invitations are
// declined (spec.md §4.10 "accept=true unless shutting down").
func (p *Player) Shutdown() {
	p.mu.Lock()
	p.shuttingDown = true
	p.mu.Unlock()
}

// HandleMessage implements transport.Handler for the player's /mcp
// endpoint.
func (p *Player) HandleMessage(ctx context.Context, msg protocol.Message) (interface{}, error) {
	if err := p.authenticate(msg); err != nil {
		return nil, err
	}
	switch payload := msg.Payload.(type) {
	case *protocol.GameInvitation:
		return p.handleInvitation(ctx, payload)
	case *protocol.ChooseParityCall:
		return p.handleChooseParity(ctx, payload)
	case *protocol.GameOver:
		return p.handleGameOver(payload)
	case *protocol.RoundAnnouncement, *protocol.RoundCompleted, *protocol.LeagueStandingsUpdate, *protocol.LeagueCompleted:
		// informational (spec.md §4.10)
		return struct{}{}, nil
	default:
		return nil, svcerr.Protocol(fmt.Sprintf("player does not accept message_type %s", msg.Envelope.MessageType))
	}
}

// handleInvitation accepts every invitation unless the player is shutting
// down (spec.md §4.10 "accept=true unless shutting down"). The ack is
// delivered back to the referee as its own outbound call, mirroring how
// the referee ignores the synchronous result of its pushes and instead
// waits on its mailbox for GAME_JOIN_ACK.
func (p *Player) handleInvitation(ctx context.Context, inv *protocol.GameInvitation) (*protocol.GameJoinAck, error) {
	p.mu.Lock()
	accept := !p.shuttingDown
	if accept {
		p.activeMatches[inv.MatchID] = activeMatch{
			OpponentID:      inv.OpponentID,
			Role:            inv.RoleInMatch,
			RefereeEndpoint: inv.RefereeEndpoint,
		}
	}
	p.mu.Unlock()

	ack := &protocol.GameJoinAck{
		MatchID:          inv.MatchID,
		Accept:           accept,
		ArrivalTimestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	p.sendToReferee(ctx, inv.RefereeEndpoint, protocol.MsgGameJoinAck, ack)
	return ack, nil
}

func (p *Player) handleChooseParity(ctx context.Context, call *protocol.ChooseParityCall) (*protocol.ChooseParityResponse, error) {
	p.mu.Lock()
	match, known := p.activeMatches[call.MatchID]
	p.mu.Unlock()

	opponentID := call.Context.OpponentID
	refereeEndpoint := call.RefereeEndpoint
	if known {
		opponentID = match.OpponentID
		refereeEndpoint = match.RefereeEndpoint
	}

	history, err := p.history.Get(p.cfg.PlayerID)
	if err != nil {
		return nil, err
	}

	choice := p.strategy.Choose(opponentID, history.Matches)
	resp := &protocol.ChooseParityResponse{
		MatchID:      call.MatchID,
		ParityChoice: protocol.Parity(choice),
	}
	p.sendToReferee(ctx, refereeEndpoint, protocol.MsgChooseParityResponse, resp)
	return resp, nil
}

func (p *Player) handleGameOver(over *protocol.GameOver) (interface{}, error) {
	p.mu.Lock()
	match, known := p.activeMatches[over.MatchID]
	delete(p.activeMatches, over.MatchID)
	p.mu.Unlock()

	opponentID := match.OpponentID
	ownChoice, opponentChoice := "", ""
	if known {
		ownChoice = string(over.GameResult.Choices[p.cfg.PlayerID])
		opponentChoice = string(over.GameResult.Choices[opponentID])
	}

	result := "LOSS"
	switch {
	case over.GameResult.Status == protocol.MatchStatusDraw:
		result = "DRAW"
	case over.GameResult.WinnerPlayerID == p.cfg.PlayerID:
		result = "WIN"
	}

	points := p.cfg.Scoring.Loss
	switch result {
	case "WIN":
		points = p.cfg.Scoring.Win
	case "DRAW":
		points = p.cfg.Scoring.Draw
	}
	rec := domain.PlayerHistoryRecord{
		MatchID:        over.MatchID,
		OpponentID:     opponentID,
		OwnChoice:      ownChoice,
		OpponentChoice: opponentChoice,
		DrawnNumber:    over.GameResult.DrawnNumber,
		Result:         result,
		Points:         points,
	}
	if err := p.history.Append(p.cfg.PlayerID, rec); err != nil && p.logger != nil {
		p.logger.WithFields(map[string]interface{}{"match_id": over.MatchID, "error": err.Error()}).Warn("failed to append match history")
	}
	return struct{}{}, nil
}

// authenticate validates the envelope's bearer token against the claimed
// sender identity (spec.md §4.1 edge case S5).
func (p *Player) authenticate(msg protocol.Message) error {
	if msg.Envelope.AuthToken == "" {
		return nil
	}
	sender, err := protocol.ParseSender(msg.Envelope.Sender)
	if err != nil {
		return err
	}
	_, err = p.authSvc.Validate(msg.Envelope.AuthToken, sender.AgentID, p.cfg.LeagueID)
	return err
}

// sendToReferee delivers a GAME_JOIN_ACK or CHOOSE_PARITY_RESPONSE back to
// the referee that invited this player. Failures are logged, not
// returned: the caller has already answered its own inbound HTTP request
// and the referee will time the match out if this never arrives.
func (p *Player) sendToReferee(ctx context.Context, endpoint string, msgType protocol.MessageType, payload protocol.Payload) {
	if endpoint == "" {
		return
	}
	env := protocol.NewEnvelope(msgType, protocol.RolePlayer, p.cfg.PlayerID, newConversationID(), p.authToken(), time.Now())
	raw, err := protocol.Encode(env, payload)
	if err != nil {
		return
	}
	if _, err := p.client.Call(ctx, endpoint, string(msgType), raw); err != nil && p.logger != nil {
		p.logger.WithFields(map[string]interface{}{"endpoint": endpoint, "message_type": string(msgType), "error": err.Error()}).Warn("failed to deliver reply to referee")
	}
}

func (p *Player) authToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func newConversationID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// decodeResult unmarshals a JSON-RPC result payload into dest, wrapping
// malformed responses as a protocol error (spec.md §4.1 "the envelope is
// never trusted past Decode").
func decodeResult(raw json.RawMessage, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return svcerr.Protocol("malformed result: " + err.Error())
	}
	return nil
}
