// Package referee implements the match state machine (spec.md §4.8): the
// referee is the hardest subsystem in the system, driving each match
// through CREATED -> WAITING_FOR_PLAYERS -> COLLECTING_CHOICES ->
// DRAWING_NUMBER -> FINISHED/CANCELLED under strict deadlines. Each match
// is a single-owner mailbox actor (spec.md §9 REDESIGN FLAGS): one
// goroutine per match processes its inbound events sequentially, so there
// is no shared mutable match state to lock.
package referee

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evenodd-league/agents/internal/auth"
	"github.com/evenodd-league/agents/internal/domain"
	"github.com/evenodd-league/agents/internal/game"
	"github.com/evenodd-league/agents/internal/protocol"
	"github.com/evenodd-league/agents/internal/repo"
	"github.com/evenodd-league/agents/internal/resilience"
	"github.com/evenodd-league/agents/internal/svcerr"
	"github.com/evenodd-league/agents/internal/telemetry"
	"github.com/evenodd-league/agents/internal/telemetry/metrics"
	"github.com/evenodd-league/agents/internal/transport"
)

// Config carries one referee's operating parameters, assembled from its
// registration response and the league configuration it announces
// (spec.md §6 "Configuration").
type Config struct {
	RefereeID            string
	LeagueID             string
	GameType             string
	ManagerEndpoint      string
	SelfEndpoint         string
	MaxConcurrentMatches int
	JoinAckTimeout       time.Duration
	MoveTimeout          time.Duration
	Retry                resilience.RetryConfig
	Scoring              game.Scoring
	NumberRange          game.NumberRange
	DrawOnBothWrong      bool
}

// playerEndpoint is what the referee needs to reach an invited player.
type playerEndpoint struct {
	PlayerID string
	Endpoint string
}

// inboundEvent is one message routed to a running match's mailbox.
type inboundEvent struct {
	joinAck  *protocol.GameJoinAck
	fromID   string
	response *protocol.ChooseParityResponse
}

// Referee owns the set of matches currently in flight and dispatches
// inbound GAME_JOIN_ACK / CHOOSE_PARITY_RESPONSE messages to the right
// match actor.
type Referee struct {
	cfg     Config
	repo    *repo.MatchRepo
	client  *transport.Client
	authSvc *auth.Service
	logger  *telemetry.Logger
	metrics *metrics.Metrics

	sem chan struct{}

	mu        sync.Mutex
	mailboxes map[string]chan inboundEvent
}

// New builds a Referee. repo must be rooted at this referee's own match
// store (spec.md §3 "the refereeing agent owns its own match records").
func New(cfg Config, matchRepo *repo.MatchRepo, client *transport.Client, authSvc *auth.Service, logger *telemetry.Logger, m *metrics.Metrics) *Referee {
	capacity := cfg.MaxConcurrentMatches
	if capacity <= 0 {
		capacity = 1
	}
	return &Referee{
		cfg:       cfg,
		repo:      matchRepo,
		client:    client,
		authSvc:   authSvc,
		logger:    logger,
		metrics:   m,
		sem:       make(chan struct{}, capacity),
		mailboxes: make(map[string]chan inboundEvent),
	}
}

// HandleMessage implements transport.Handler for the referee's /mcp
// endpoint (spec.md §4.8 concurrency: matches are independent; no
// cross-match ordering is required).
func (r *Referee) HandleMessage(ctx context.Context, msg protocol.Message) (interface{}, error) {
	if err := r.authenticate(msg); err != nil {
		return nil, err
	}
	switch p := msg.Payload.(type) {
	case *protocol.RoundAnnouncement:
		// The manager addresses this referee with only the matches it has
		// been assigned for the round (spec.md §4.9 "instructs each assigned
		// referee to start its matches"; see DESIGN.md on reusing
		// ROUND_ANNOUNCEMENT for this internal hand-off).
		for _, rm := range p.Matches {
			players := [2]playerEndpoint{
				{PlayerID: rm.PlayerAID, Endpoint: rm.PlayerAEndpoint},
				{PlayerID: rm.PlayerBID, Endpoint: rm.PlayerBEndpoint},
			}
			if err := r.StartMatch(p.RoundID, rm, players); err != nil && r.logger != nil {
				r.logger.WithFields(map[string]interface{}{"match_id": rm.MatchID, "error": err.Error()}).Error("failed to start assigned match")
			}
		}
		return struct{}{}, nil
	case *protocol.GameJoinAck:
		sender, err := protocol.ParseSender(msg.Envelope.Sender)
		if err != nil {
			return nil, err
		}
		r.deliver(p.MatchID, inboundEvent{joinAck: p, fromID: sender.AgentID})
		return struct{}{}, nil
	case *protocol.ChooseParityResponse:
		sender, err := protocol.ParseSender(msg.Envelope.Sender)
		if err != nil {
			return nil, err
		}
		r.deliver(p.MatchID, inboundEvent{response: p, fromID: sender.AgentID})
		return struct{}{}, nil
	default:
		return nil, svcerr.Protocol(fmt.Sprintf("referee does not accept message_type %s", msg.Envelope.MessageType))
	}
}

func (r *Referee) deliver(matchID string, ev inboundEvent) {
	r.mu.Lock()
	mbox, ok := r.mailboxes[matchID]
	r.mu.Unlock()
	if !ok {
		return // match unknown or already finished; duplicate/stale message (spec.md §4.8 idempotency)
	}
	select {
	case mbox <- ev:
	default:
		// actor is mid-processing; drop rather than block the HTTP handler.
		// A legitimate response will be resent by the player's own retry logic
		// is not assumed here, but a full mailbox only happens under replay
		// storms, which spec.md treats as safe to ignore once a step has advanced.
	}
}

// StartMatch assigns a new match to this referee and begins driving its
// state machine asynchronously (spec.md §4.8 "CREATED"). It returns once
// the match has been persisted and its actor launched; the caller does
// not block on the match completing.
func (r *Referee) StartMatch(roundID string, rm protocol.RoundMatch, players [2]playerEndpoint) error {
	match := domain.Match{
		MatchID:   rm.MatchID,
		RoundID:   roundID,
		LeagueID:  r.cfg.LeagueID,
		GameType:  rm.GameType,
		RefereeID: r.cfg.RefereeID,
		PlayerAID: players[0].PlayerID,
		PlayerBID: players[1].PlayerID,
		State:     domain.MatchCreated,
	}
	if err := r.repo.Create(match); err != nil {
		return err
	}
	if err := r.repo.AppendTransition(match.MatchID, domain.MatchCreated, time.Now().UTC()); err != nil {
		return err
	}

	mbox := make(chan inboundEvent, 8)
	r.mu.Lock()
	r.mailboxes[match.MatchID] = mbox
	r.mu.Unlock()

	go r.runMatch(rm, players, mbox)
	return nil
}

func (r *Referee) finishMatch(matchID string) {
	r.mu.Lock()
	delete(r.mailboxes, matchID)
	r.mu.Unlock()
}

// runMatch drives one match end to end. It is the sole writer of this
// match's state for its lifetime (spec.md §9 REDESIGN FLAGS: single-owner
// task instead of a file-per-match lock).
func (r *Referee) runMatch(rm protocol.RoundMatch, players [2]playerEndpoint, mbox chan inboundEvent) {
	r.sem <- struct{}{}
	defer func() { <-r.sem }()
	defer r.finishMatch(rm.MatchID)

	ctx := context.Background()
	matchID := rm.MatchID

	roleFor := func(idx int) protocol.RoleInMatch {
		if idx == 0 {
			return protocol.RolePlayerA
		}
		return protocol.RolePlayerB
	}

	// WAITING_FOR_PLAYERS: invite both players and await their acks.
	r.transition(matchID, domain.MatchWaitingForPlayers)
	for i, p := range players {
		opponent := players[1-i].PlayerID
		r.sendTo(ctx, p.Endpoint, matchID, protocol.MsgGameInvitation, p.PlayerID, &protocol.GameInvitation{
			MatchID:         matchID,
			GameType:        rm.GameType,
			RoleInMatch:     roleFor(i),
			OpponentID:      opponent,
			RefereeEndpoint: r.cfg.SelfEndpoint,
		})
	}
	joined := r.awaitJoins(mbox, players)

	failedToJoin := missingPlayers(players, joined)
	if len(failedToJoin) == 2 {
		r.cancelMatch(ctx, rm, players, "both players failed to join")
		return
	}
	if len(failedToJoin) == 1 {
		r.technicalLoss(ctx, rm, players, failedToJoin[0], "did not join before deadline")
		return
	}

	// COLLECTING_CHOICES: call for parity choices, retrying invalid/missing
	// responses up to the configured retry policy (spec.md §4.8 rules).
	r.transition(matchID, domain.MatchCollectingChoices)
	choices, failed := r.collectChoices(ctx, mbox, rm, players)
	if len(failed) == 2 {
		r.cancelMatch(ctx, rm, players, "both players exhausted retries")
		return
	}
	if len(failed) == 1 {
		r.technicalLoss(ctx, rm, players, failed[0], "exhausted choice retries")
		return
	}

	// DRAWING_NUMBER: compute the outcome.
	r.transition(matchID, domain.MatchDrawingNumber)
	rng := rand.New(rand.NewSource(matchSeed(matchID)))
	drawn := game.Draw(r.cfg.NumberRange, rng)
	outcome := game.Evaluate(players[0].PlayerID, choices[players[0].PlayerID], players[1].PlayerID, choices[players[1].PlayerID], drawn, r.cfg.Scoring, r.cfg.DrawOnBothWrong)

	r.finish(ctx, rm, players, outcome, choices)
}

func matchSeed(matchID string) int64 {
	u, err := uuid.Parse(matchID)
	if err != nil {
		return time.Now().UnixNano()
	}
	var s int64
	for _, b := range u[:8] {
		s = s<<8 | int64(b)
	}
	return s
}

func missingPlayers(players [2]playerEndpoint, present map[string]bool) []string {
	var missing []string
	for _, p := range players {
		if !present[p.PlayerID] {
			missing = append(missing, p.PlayerID)
		}
	}
	return missing
}

func (r *Referee) awaitJoins(mbox chan inboundEvent, players [2]playerEndpoint) map[string]bool {
	joined := make(map[string]bool, 2)
	deadline := time.After(r.cfg.joinAckTimeout())
	for len(joined) < 2 {
		select {
		case ev := <-mbox:
			if ev.joinAck == nil {
				continue // stale choice response from a prior step; ignore
			}
			// The ack's match_id already scoped this mailbox and its sender
			// identifies the player. A second ack from the same player is a
			// no-op because the set already contains it.
			if ev.joinAck.Accept && indexOf(players, ev.fromID) >= 0 {
				joined[ev.fromID] = true
			}
		case <-deadline:
			return joined
		}
	}
	return joined
}

func (r *Referee) collectChoices(ctx context.Context, mbox chan inboundEvent, rm protocol.RoundMatch, players [2]playerEndpoint) (map[string]string, []string) {
	choices := make(map[string]string, 2)
	retries := make(map[string]int)

	for i, p := range players {
		r.sendChoiceCall(ctx, p, rm, players[1-i].PlayerID)
	}

	maxAttempts := r.cfg.Retry.MaxAttempts
	for len(choices) < 2 {
		remaining := pendingPlayers(players, choices)
		if len(remaining) == 0 {
			break
		}
		select {
		case ev := <-mbox:
			if ev.response == nil {
				continue
			}
			if _, already := choices[ev.fromID]; already {
				continue // duplicate response for an advanced step; ignore
			}
			choices[ev.fromID] = string(ev.response.ParityChoice)
		case <-time.After(r.cfg.moveTimeout()):
			for _, id := range remaining {
				if _, ok := choices[id]; ok {
					continue
				}
				retries[id]++
				if retries[id] > maxAttempts {
					r.sendGameError(ctx, rm, id, maxAttempts, maxAttempts, "technical loss")
					continue
				}
				r.sendGameError(ctx, rm, id, retries[id], maxAttempts, "CHOOSE_PARITY_CALL will be retried")
				time.Sleep(r.cfg.Retry.Delay(retries[id] - 1))
				idx := indexOf(players, id)
				r.sendChoiceCall(ctx, players[idx], rm, players[1-idx].PlayerID)
			}
		}
		if allExhausted(players, choices, retries, maxAttempts) {
			break
		}
	}

	var failed []string
	for _, p := range players {
		if _, ok := choices[p.PlayerID]; !ok {
			failed = append(failed, p.PlayerID)
		}
	}
	return choices, failed
}

func pendingPlayers(players [2]playerEndpoint, choices map[string]string) []string {
	var out []string
	for _, p := range players {
		if _, ok := choices[p.PlayerID]; !ok {
			out = append(out, p.PlayerID)
		}
	}
	return out
}

func allExhausted(players [2]playerEndpoint, choices map[string]string, retries map[string]int, maxAttempts int) bool {
	for _, p := range players {
		if _, ok := choices[p.PlayerID]; ok {
			continue
		}
		if retries[p.PlayerID] <= maxAttempts {
			return false
		}
	}
	return true
}

func indexOf(players [2]playerEndpoint, playerID string) int {
	for i, p := range players {
		if p.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (r *Referee) sendChoiceCall(ctx context.Context, p playerEndpoint, rm protocol.RoundMatch, opponentID string) {
	deadline := time.Now().Add(r.cfg.moveTimeout()).UTC().Format(time.RFC3339Nano)
	r.sendTo(ctx, p.Endpoint, rm.MatchID, protocol.MsgChooseParityCall, p.PlayerID, &protocol.ChooseParityCall{
		MatchID:         rm.MatchID,
		GameType:        rm.GameType,
		Deadline:        deadline,
		Context:         protocol.ChooseParityContext{OpponentID: opponentID, RoundID: rm.RoundID},
		RefereeEndpoint: r.cfg.SelfEndpoint,
	})
}

// sendGameError notifies offenderID that its parity choice was missing or
// invalid at a move deadline (spec.md §4.8 GAME_ERROR/INVALID_CHOICE). The
// wire payload can't distinguish "sent nothing" from "sent something the
// decoder rejected" — both surface identically as an empty choices entry
// at the deadline — so both are reported under the same code.
func (r *Referee) sendGameError(ctx context.Context, rm protocol.RoundMatch, offenderID string, retryCount, maxRetries int, consequence string) {
	actionRequired := "resubmit CHOOSE_PARITY_RESPONSE"
	if consequence == "technical loss" {
		actionRequired = "none"
	}
	r.sendTo(ctx, r.endpointFor(rm, offenderID), rm.MatchID, protocol.MsgGameError, offenderID, &protocol.GameError{
		MatchID:          rm.MatchID,
		ErrorCode:        string(svcerr.CodeInvalidChoice),
		ErrorDescription: "no valid parity choice received before the move deadline",
		AffectedPlayer:   offenderID,
		ActionRequired:   actionRequired,
		RetryCount:       retryCount,
		MaxRetries:       maxRetries,
		Consequence:      consequence,
	})
}

func (r *Referee) endpointFor(rm protocol.RoundMatch, playerID string) string {
	if playerID == rm.PlayerAID {
		return rm.PlayerAEndpoint
	}
	return rm.PlayerBEndpoint
}

func (r *Referee) technicalLoss(ctx context.Context, rm protocol.RoundMatch, players [2]playerEndpoint, offenderID, reason string) {
	opponentID := rm.PlayerAID
	if offenderID == rm.PlayerAID {
		opponentID = rm.PlayerBID
	}
	outcome := game.TechnicalLossOutcome(offenderID, opponentID, false, r.cfg.Scoring)
	outcome.Reason = reason
	r.finish(ctx, rm, players, outcome, map[string]string{})
}

func (r *Referee) cancelMatch(ctx context.Context, rm protocol.RoundMatch, players [2]playerEndpoint, reason string) {
	r.transition(rm.MatchID, domain.MatchCancelled)
	result := domain.MatchResult{Status: "CANCELLED", Reason: reason, Score: map[string]int{
		players[0].PlayerID: 0,
		players[1].PlayerID: 0,
	}}
	_ = r.repo.SaveResult(rm.MatchID, result)
	if r.metrics != nil {
		r.metrics.MatchOutcomesTotal.WithLabelValues("CANCELLED").Inc()
	}
	r.reportResult(ctx, rm.MatchID, rm.RoundID, result)
}

func (r *Referee) finish(ctx context.Context, rm protocol.RoundMatch, players [2]playerEndpoint, outcome game.Outcome, choices map[string]string) {
	r.transition(rm.MatchID, domain.MatchFinished)

	parityChoices := make(map[string]protocol.Parity, len(choices))
	for id, c := range choices {
		parityChoices[id] = protocol.Parity(c)
	}

	result := domain.MatchResult{
		Status:         outcome.Status,
		WinnerPlayerID: outcome.WinnerID,
		DrawnNumber:    outcome.DrawnNumber,
		NumberParity:   string(outcome.Parity),
		Choices:        choices,
		Reason:         outcome.Reason,
		Score:          outcome.Score,
	}
	_ = r.repo.SaveResult(rm.MatchID, result)

	gameResult := protocol.GameResult{
		Status:         protocol.MatchResultStatus(outcome.Status),
		WinnerPlayerID: outcome.WinnerID,
		DrawnNumber:    outcome.DrawnNumber,
		NumberParity:   protocol.Parity(outcome.Parity),
		Choices:        parityChoices,
		Reason:         outcome.Reason,
	}
	for _, p := range players {
		r.sendTo(ctx, p.Endpoint, rm.MatchID, protocol.MsgGameOver, p.PlayerID, &protocol.GameOver{
			MatchID:    rm.MatchID,
			GameResult: gameResult,
		})
	}

	if r.metrics != nil {
		r.metrics.MatchOutcomesTotal.WithLabelValues(outcome.Status).Inc()
	}

	r.reportResult(ctx, rm.MatchID, rm.RoundID, result)
}

func (r *Referee) reportResult(ctx context.Context, matchID, roundID string, result domain.MatchResult) {
	protoChoices := make(map[string]protocol.Parity, len(result.Choices))
	for id, c := range result.Choices {
		protoChoices[id] = protocol.Parity(c)
	}
	payload := &protocol.MatchResultReport{
		MatchID:  matchID,
		RoundID:  roundID,
		LeagueID: r.cfg.LeagueID,
		Result: protocol.MatchResult{
			Status:         protocol.MatchResultStatus(result.Status),
			WinnerPlayerID: result.WinnerPlayerID,
			DrawnNumber:    result.DrawnNumber,
			NumberParity:   protocol.Parity(result.NumberParity),
			Choices:        protoChoices,
			Reason:         result.Reason,
			Score:          result.Score,
		},
	}
	r.sendToManager(ctx, protocol.MsgMatchResultReport, payload)
}

func (r *Referee) transition(matchID string, state domain.MatchState) {
	_ = r.repo.AppendTransition(matchID, state, time.Now().UTC())
	if r.logger != nil {
		r.logger.WithFields(map[string]interface{}{"match_id": matchID, "state": string(state)}).Info("match state transition")
	}
}

func (r *Referee) sendTo(ctx context.Context, endpoint, matchID string, msgType protocol.MessageType, toPlayerID string, payload protocol.Payload) {
	env := r.envelope(msgType, matchID)
	raw, err := protocol.Encode(env, payload)
	if err != nil {
		return
	}
	_, _ = r.client.Call(ctx, endpoint, string(msgType), raw)
	_ = r.repo.AppendTranscript(matchID, domain.TranscriptEntry{
		Timestamp:   time.Now().UTC(),
		From:        env.Sender,
		To:          toPlayerID,
		MessageType: string(msgType),
	})
}

func (r *Referee) sendToManager(ctx context.Context, msgType protocol.MessageType, payload protocol.Payload) {
	env := r.envelope(msgType, uuid.NewString())
	raw, err := protocol.Encode(env, payload)
	if err != nil {
		return
	}
	_, _ = r.client.Call(ctx, r.cfg.ManagerEndpoint, string(msgType), raw)
}

// authenticate validates the envelope's bearer token against the claimed
// sender identity (spec.md §4.1 edge case S5). Messages decoded from the
// wire always carry a token here, the manager's calls included, because
// Decode rejects an empty one outside registration; an envelope with no
// token is accepted without a check.
func (r *Referee) authenticate(msg protocol.Message) error {
	if msg.Envelope.AuthToken == "" {
		return nil
	}
	sender, err := protocol.ParseSender(msg.Envelope.Sender)
	if err != nil {
		return err
	}
	_, err = r.authSvc.Validate(msg.Envelope.AuthToken, sender.AgentID, r.cfg.LeagueID)
	return err
}

func (r *Referee) envelope(msgType protocol.MessageType, conversationID string) protocol.Envelope {
	token, _ := r.authSvc.Issue(r.cfg.RefereeID, r.cfg.LeagueID, protocol.RoleReferee)
	return protocol.NewEnvelope(msgType, protocol.RoleReferee, r.cfg.RefereeID, conversationID, token, time.Now())
}

func (c Config) joinAckTimeout() time.Duration {
	if c.JoinAckTimeout <= 0 {
		return 5 * time.Second
	}
	return c.JoinAckTimeout
}

func (c Config) moveTimeout() time.Duration {
	if c.MoveTimeout <= 0 {
		return 30 * time.Second
	}
	return c.MoveTimeout
}
