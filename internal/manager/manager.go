// Package manager implements the league manager orchestrator (spec.md
// §4.9): registration, result intake, scheduling, and round/league
// lifecycle. Registration, result handling, and broadcasts all run
// concurrently; the standings and rounds journals are the only critical
// section and are serialized behind a single mutex (spec.md §5 "single
// writer").
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/evenodd-league/agents/internal/auth"
	"github.com/evenodd-league/agents/internal/config"
	"github.com/evenodd-league/agents/internal/domain"
	"github.com/evenodd-league/agents/internal/protocol"
	"github.com/evenodd-league/agents/internal/repo"
	"github.com/evenodd-league/agents/internal/scheduler"
	"github.com/evenodd-league/agents/internal/standings"
	"github.com/evenodd-league/agents/internal/svcerr"
	"github.com/evenodd-league/agents/internal/telemetry"
	"github.com/evenodd-league/agents/internal/telemetry/metrics"
	"github.com/evenodd-league/agents/internal/transport"
)

// refereeRecord is the manager's registry entry for one referee.
type refereeRecord struct {
	RefereeID            string
	Endpoint             string
	MaxConcurrentMatches int
}

// playerRecord is the manager's registry entry for one player.
type playerRecord struct {
	PlayerID string
	Endpoint string
}

// Manager is the single league manager process (spec.md §3 "a single
// League Manager").
type Manager struct {
	cfg      config.LeagueConfig
	timeouts config.Timeouts
	authSvc  *auth.Service
	client   *transport.Client

	standingsRepo *repo.StandingsRepo
	roundsRepo    *repo.RoundsRepo
	standingsEng  *standings.Engine

	logger  *telemetry.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	state    domain.LeagueState
	referees map[string]*refereeRecord
	players  map[string]*playerRecord
	schedule [][][2]string
	roundIDs []string
	assigner *scheduler.RefereeAssigner

	sweeper *cron.Cron
	audit   *telemetry.FileLogger
}

// SetAudit attaches a JSONL audit sink for league-lifecycle events
// (spec.md §4.4). Optional: a nil audit sink is a no-op.
func (mgr *Manager) SetAudit(fl *telemetry.FileLogger) {
	mgr.audit = fl
}

func (mgr *Manager) logAudit(event string, fields map[string]interface{}) {
	if mgr.audit == nil {
		return
	}
	_ = mgr.audit.Log("info", event, fields)
}

// New builds a Manager in the INITIALIZED state.
func New(cfg config.LeagueConfig, timeouts config.Timeouts, authSvc *auth.Service, client *transport.Client, standingsRepo *repo.StandingsRepo, roundsRepo *repo.RoundsRepo, logger *telemetry.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		cfg:           cfg,
		timeouts:      timeouts,
		authSvc:       authSvc,
		client:        client,
		standingsRepo: standingsRepo,
		roundsRepo:    roundsRepo,
		standingsEng:  standings.New(domain.ScoringWeights(cfg.Scoring)),
		logger:        logger,
		metrics:       m,
		state:         domain.LeagueInitialized,
		referees:      make(map[string]*refereeRecord),
		players:       make(map[string]*playerRecord),
	}
}

// HandleMessage implements transport.Handler for the manager's /mcp
// endpoint.
func (mgr *Manager) HandleMessage(ctx context.Context, msg protocol.Message) (interface{}, error) {
	if err := mgr.authenticate(msg); err != nil {
		return nil, err
	}
	switch p := msg.Payload.(type) {
	case *protocol.RefereeRegisterRequest:
		return mgr.RegisterReferee(p)
	case *protocol.LeagueRegisterRequest:
		return mgr.RegisterPlayer(p)
	case *protocol.MatchResultReport:
		return struct{}{}, mgr.ReportMatchResult(ctx, p)
	default:
		return nil, svcerr.Protocol(fmt.Sprintf("manager does not accept message_type %s", msg.Envelope.MessageType))
	}
}

// authenticate validates the envelope's bearer token against the claimed
// sender identity (spec.md §4.1 edge case S5). The two registration
// requests carry an empty auth_token by design and are exempt; Decode has
// already rejected any other message type with an empty token, so a
// non-empty check here is sufficient to tell the two cases apart.
func (mgr *Manager) authenticate(msg protocol.Message) error {
	if msg.Envelope.AuthToken == "" {
		return nil
	}
	sender, err := protocol.ParseSender(msg.Envelope.Sender)
	if err != nil {
		return err
	}
	_, err = mgr.authSvc.Validate(msg.Envelope.AuthToken, sender.AgentID, mgr.cfg.LeagueID)
	return err
}

// RegisterReferee validates and admits a referee (spec.md §4.9
// "register_referee"). Idempotent for an already-registered referee_id
// presenting the same contact endpoint.
func (mgr *Manager) RegisterReferee(req *protocol.RefereeRegisterRequest) (*protocol.RefereeRegisterResponse, error) {
	found := false
	for _, gt := range req.RefereeMeta.GameTypes {
		if gt == mgr.cfg.GameType {
			found = true
			break
		}
	}
	if !found {
		return &protocol.RefereeRegisterResponse{
			Status:          protocol.RegistrationRejected,
			RejectionReason: fmt.Sprintf("game_type %s not offered", mgr.cfg.GameType),
		}, nil
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	refereeID := req.RequestedRefereeID
	if refereeID == "" {
		refereeID = uuid.NewString()
	}
	if existing, ok := mgr.referees[refereeID]; ok && existing.Endpoint != req.RefereeMeta.ContactEndpoint {
		return &protocol.RefereeRegisterResponse{
			Status:          protocol.RegistrationRejected,
			RejectionReason: "referee_id already registered with a different endpoint",
		}, nil
	}

	token, err := mgr.authSvc.Issue(refereeID, mgr.cfg.LeagueID, protocol.RoleReferee)
	if err != nil {
		return nil, err
	}
	mgr.referees[refereeID] = &refereeRecord{
		RefereeID:            refereeID,
		Endpoint:             req.RefereeMeta.ContactEndpoint,
		MaxConcurrentMatches: req.RefereeMeta.MaxConcurrentMatches,
	}

	return &protocol.RefereeRegisterResponse{
		Status:    protocol.RegistrationAccepted,
		RefereeID: refereeID,
		AuthToken: token,
		LeagueID:  mgr.cfg.LeagueID,
	}, nil
}

// RegisterPlayer validates and admits a player (spec.md §4.9
// "register_player"). min_players/max_players are enforced at league
// start, not at registration time.
func (mgr *Manager) RegisterPlayer(req *protocol.LeagueRegisterRequest) (*protocol.LeagueRegisterResponse, error) {
	found := false
	for _, gt := range req.PlayerMeta.GameTypes {
		if gt == mgr.cfg.GameType {
			found = true
			break
		}
	}
	if !found {
		return &protocol.LeagueRegisterResponse{
			Status:          protocol.RegistrationRejected,
			RejectionReason: fmt.Sprintf("game_type %s not offered", mgr.cfg.GameType),
		}, nil
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.state != domain.LeagueInitialized && mgr.state != domain.LeagueAccepting {
		return &protocol.LeagueRegisterResponse{
			Status:          protocol.RegistrationRejected,
			RejectionReason: "league is no longer accepting registrations",
		}, nil
	}
	if len(mgr.players) >= mgr.cfg.MaxPlayers && mgr.cfg.MaxPlayers > 0 {
		return &protocol.LeagueRegisterResponse{
			Status:          protocol.RegistrationRejected,
			RejectionReason: "league is full",
		}, nil
	}

	playerID := req.RequestedPlayerID
	if playerID == "" {
		playerID = uuid.NewString()
	}
	if existing, ok := mgr.players[playerID]; ok && existing.Endpoint != req.PlayerMeta.ContactEndpoint {
		return &protocol.LeagueRegisterResponse{
			Status:          protocol.RegistrationRejected,
			RejectionReason: "player_id already registered with a different endpoint",
		}, nil
	}

	token, err := mgr.authSvc.Issue(playerID, mgr.cfg.LeagueID, protocol.RolePlayer)
	if err != nil {
		return nil, err
	}
	mgr.players[playerID] = &playerRecord{PlayerID: playerID, Endpoint: req.PlayerMeta.ContactEndpoint}
	mgr.state = domain.LeagueAccepting

	return &protocol.LeagueRegisterResponse{
		Status:    protocol.RegistrationAccepted,
		PlayerID:  playerID,
		AuthToken: token,
		LeagueID:  mgr.cfg.LeagueID,
	}, nil
}

// ReportMatchResult records a referee's authoritative match outcome
// (spec.md §4.9 "report_match_result"): idempotent on match_id, applies
// to standings, persists the rounds journal, and checks round/league
// completion predicates.
func (mgr *Manager) ReportMatchResult(ctx context.Context, report *protocol.MatchResultReport) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	already, err := mgr.roundsRepo.AlreadyReported(mgr.cfg.LeagueID, report.MatchID)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	result := domain.MatchResult{
		Status:         string(report.Result.Status),
		WinnerPlayerID: report.Result.WinnerPlayerID,
		DrawnNumber:    report.Result.DrawnNumber,
		NumberParity:   string(report.Result.NumberParity),
		Reason:         report.Result.Reason,
		Score:          report.Result.Score,
		Choices:        make(map[string]string, len(report.Result.Choices)),
	}
	for id, c := range report.Result.Choices {
		result.Choices[id] = string(c)
	}

	if err := mgr.roundsRepo.MarkMatchCompleted(mgr.cfg.LeagueID, report.RoundID, report.MatchID, result); err != nil {
		return err
	}

	if result.Status != "CANCELLED" {
		s, err := mgr.standingsRepo.Load(mgr.cfg.LeagueID)
		if err != nil {
			return err
		}
		// A technical loss is reported as a normal WIN with Reason set
		// (spec.md §4.8); the offender still scores the technical-loss
		// weight rather than the ordinary loss weight.
		technicalLoss := result.Reason != ""
		for playerID := range result.Score {
			outcome := "LOSS"
			switch {
			case result.Status == "DRAW":
				outcome = "DRAW"
			case playerID == result.WinnerPlayerID:
				outcome = "WIN"
			}
			s = mgr.standingsEng.Update(s, playerID, outcome, outcome == "LOSS" && technicalLoss)
		}
		if _, err := mgr.standingsRepo.Save(s); err != nil {
			return err
		}
		if mgr.metrics != nil {
			mgr.metrics.StandingsVersion.Set(float64(s.Version))
		}
	}

	mgr.logAudit("match_result_reported", map[string]interface{}{
		"match_id": report.MatchID, "round_id": report.RoundID, "status": string(report.Result.Status),
	})

	complete, err := mgr.roundsRepo.RoundComplete(mgr.cfg.LeagueID, report.RoundID)
	if err != nil {
		return err
	}
	if complete {
		go mgr.onRoundComplete(ctx, report.RoundID)
	}
	return nil
}

// StartLeague builds the round-robin schedule and begins round 1
// (spec.md §4.9 "start_league").
func (mgr *Manager) StartLeague(ctx context.Context) error {
	mgr.mu.Lock()
	if mgr.state != domain.LeagueAccepting && mgr.state != domain.LeagueInitialized {
		mgr.mu.Unlock()
		return svcerr.New(svcerr.CodeProtocolError, "league already started")
	}
	if len(mgr.players) < mgr.cfg.MinPlayers {
		mgr.mu.Unlock()
		return svcerr.New(svcerr.CodeProtocolError, "not enough registered players")
	}

	playerIDs := make([]string, 0, len(mgr.players))
	for id := range mgr.players {
		playerIDs = append(playerIDs, id)
	}
	refIDs := make([]string, 0, len(mgr.referees))
	maxLoad := make(map[string]int, len(mgr.referees))
	for id, r := range mgr.referees {
		refIDs = append(refIDs, id)
		maxLoad[id] = r.MaxConcurrentMatches
	}

	mgr.schedule = scheduler.RoundRobin(playerIDs)
	mgr.assigner = scheduler.NewRefereeAssigner(refIDs, maxLoad)
	mgr.roundIDs = make([]string, len(mgr.schedule))
	for i := range mgr.roundIDs {
		mgr.roundIDs[i] = uuid.NewString()
	}
	mgr.state = domain.LeagueScheduled

	snapshot := mgr.standingsEng.Initialize(mgr.cfg.LeagueID, playerIDs)
	mgr.mu.Unlock()

	if _, err := mgr.standingsRepo.Save(snapshot); err != nil {
		return err
	}

	mgr.mu.Lock()
	mgr.state = domain.LeagueInProgress
	mgr.mu.Unlock()

	return mgr.announceRound(ctx, 0)
}

// StartSweeper launches a background cron tick that sweeps the active
// round for matches whose referee never reported a result before
// timeouts.RoundDeadline, and force-cancels them. This runs independent
// of each match's own join-ack/move timers, which only protect against a
// slow player, not a referee that has died or been partitioned from the
// manager. schedule is a standard cron expression, e.g. "@every 15s".
func (mgr *Manager) StartSweeper(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() { mgr.sweepDeadlines(ctx) })
	if err != nil {
		return svcerr.New(svcerr.CodeProtocolError, "invalid sweeper schedule: "+err.Error())
	}
	c.Start()
	mgr.mu.Lock()
	mgr.sweeper = c
	mgr.mu.Unlock()
	return nil
}

// StopSweeper halts the cron tick started by StartSweeper, if any.
func (mgr *Manager) StopSweeper() {
	mgr.mu.Lock()
	c := mgr.sweeper
	mgr.sweeper = nil
	mgr.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (mgr *Manager) sweepDeadlines(ctx context.Context) {
	mgr.mu.Lock()
	inProgress := mgr.state == domain.LeagueInProgress
	leagueID := mgr.cfg.LeagueID
	deadline := mgr.timeouts.RoundDeadline
	mgr.mu.Unlock()
	if !inProgress || deadline <= 0 {
		return
	}

	journal, err := mgr.roundsRepo.Get(leagueID)
	if err != nil {
		mgr.logWarn("sweeper: failed to load rounds journal", leagueID, err)
		return
	}

	for _, round := range journal.Rounds {
		if round.Status != domain.RoundActive || round.StartTime == nil {
			continue
		}
		if time.Since(*round.StartTime) < deadline {
			continue
		}
		for _, m := range round.Matches {
			if m.Result != nil {
				continue
			}
			report := &protocol.MatchResultReport{
				MatchID:  m.MatchID,
				RoundID:  round.RoundID,
				LeagueID: leagueID,
				Result: protocol.MatchResult{
					Status: protocol.MatchStatusCancelled,
					Reason: "round deadline exceeded without a referee report",
				},
			}
			if err := mgr.ReportMatchResult(ctx, report); err != nil {
				mgr.logWarn("sweeper: failed to force-cancel stale match", m.MatchID, err)
			}
		}
	}
}

// announceRound broadcasts ROUND_ANNOUNCEMENT to every player and
// instructs each assigned referee to start its matches (spec.md §4.9
// "announce_round"). Broadcasts run in parallel; individual failures are
// logged but do not abort the round.
func (mgr *Manager) announceRound(ctx context.Context, idx int) error {
	mgr.mu.Lock()
	pairings := mgr.schedule[idx]
	roundID := mgr.roundIDs[idx]
	matches := make([]protocol.RoundMatch, 0, len(pairings))
	byReferee := make(map[string][]protocol.RoundMatch)

	round, err := mgr.assigner.Assign(roundID, pairings, func(a, b string) string { return uuid.NewString() })
	if err != nil {
		mgr.mu.Unlock()
		return err
	}
	journalMatches := make([]domain.RoundMatchRef, 0, len(round.Matches))
	for _, sm := range round.Matches {
		refEndpoint := ""
		if r, ok := mgr.referees[sm.RefereeID]; ok {
			refEndpoint = r.Endpoint
		}
		rm := protocol.RoundMatch{
			MatchID:         sm.MatchID,
			RoundID:         roundID,
			GameType:        mgr.cfg.GameType,
			PlayerAID:       sm.PlayerAID,
			PlayerBID:       sm.PlayerBID,
			RefereeEndpoint: refEndpoint,
			PlayerAEndpoint: mgr.players[sm.PlayerAID].Endpoint,
			PlayerBEndpoint: mgr.players[sm.PlayerBID].Endpoint,
		}
		matches = append(matches, rm)
		byReferee[sm.RefereeID] = append(byReferee[sm.RefereeID], rm)
		journalMatches = append(journalMatches, domain.RoundMatchRef{
			MatchID: sm.MatchID, PlayerAID: sm.PlayerAID, PlayerBID: sm.PlayerBID, RefereeID: sm.RefereeID,
		})
	}

	recipients := make([]playerRecord, 0, len(mgr.players))
	for _, p := range mgr.players {
		recipients = append(recipients, *p)
	}
	refRecords := make(map[string]refereeRecord, len(mgr.referees))
	for id, r := range mgr.referees {
		refRecords[id] = *r
	}
	mgr.mu.Unlock()

	if err := mgr.roundsRepo.AddRound(mgr.cfg.LeagueID, domain.Round{
		RoundID:   roundID,
		Status:    domain.RoundActive,
		StartTime: timePtr(time.Now().UTC()),
		Matches:   journalMatches,
	}); err != nil {
		return err
	}

	var wg sync.WaitGroup
	announcement := &protocol.RoundAnnouncement{RoundID: roundID, LeagueID: mgr.cfg.LeagueID, Matches: matches}
	for _, p := range recipients {
		wg.Add(1)
		go func(p playerRecord) {
			defer wg.Done()
			mgr.sendTo(ctx, p.Endpoint, protocol.MsgRoundAnnouncement, announcement)
		}(p)
	}
	for refID, refMatches := range byReferee {
		ref, ok := refRecords[refID]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(ref refereeRecord, refMatches []protocol.RoundMatch) {
			defer wg.Done()
			mgr.sendTo(ctx, ref.Endpoint, protocol.MsgRoundAnnouncement, &protocol.RoundAnnouncement{
				RoundID: roundID, LeagueID: mgr.cfg.LeagueID, Matches: refMatches,
			})
		}(ref, refMatches)
	}
	wg.Wait()
	return nil
}

func (mgr *Manager) onRoundComplete(ctx context.Context, roundID string) {
	if err := mgr.roundsRepo.MarkRoundCompleted(mgr.cfg.LeagueID, roundID); err != nil {
		mgr.logWarn("mark round completed failed", roundID, err)
		return
	}

	s, err := mgr.standingsRepo.Load(mgr.cfg.LeagueID)
	if err != nil {
		mgr.logWarn("load standings failed", roundID, err)
		return
	}
	s.RoundsCompleted++
	if _, err := mgr.standingsRepo.Save(s); err != nil {
		mgr.logWarn("save standings failed", roundID, err)
		return
	}

	mgr.broadcastStandings(ctx, roundID, s)

	mgr.mu.Lock()
	idx := mgr.roundIndex(roundID)
	hasNext := idx >= 0 && idx+1 < len(mgr.schedule)
	mgr.mu.Unlock()

	mgr.broadcastRoundCompleted(ctx, roundID)

	if hasNext {
		if err := mgr.announceRound(ctx, idx+1); err != nil {
			mgr.logWarn("announce next round failed", roundID, err)
		}
		return
	}
	mgr.completeLeague(ctx)
}

func (mgr *Manager) roundIndex(roundID string) int {
	for i, id := range mgr.roundIDs {
		if id == roundID {
			return i
		}
	}
	return -1
}

// completeLeague computes the champion and broadcasts LEAGUE_COMPLETED
// (spec.md §4.9 "complete_league").
func (mgr *Manager) completeLeague(ctx context.Context) {
	s, err := mgr.standingsRepo.Load(mgr.cfg.LeagueID)
	if err != nil {
		mgr.logWarn("load standings failed", "", err)
		return
	}
	champion, _ := mgr.standingsEng.Champion(s)
	mgr.logAudit("league_completed", map[string]interface{}{"league_id": mgr.cfg.LeagueID, "champion": champion})

	mgr.mu.Lock()
	mgr.state = domain.LeagueFinished
	recipients := make([]playerRecord, 0, len(mgr.players))
	for _, p := range mgr.players {
		recipients = append(recipients, *p)
	}
	totalRounds := len(mgr.schedule)
	mgr.mu.Unlock()

	totalMatches := 0
	for _, r := range mgr.schedule {
		totalMatches += len(r)
	}

	payload := &protocol.LeagueCompleted{
		LeagueID:       mgr.cfg.LeagueID,
		TotalRounds:    totalRounds,
		TotalMatches:   totalMatches,
		Champion:       champion,
		FinalStandings: viewOf(s),
	}
	var wg sync.WaitGroup
	for _, p := range recipients {
		wg.Add(1)
		go func(p playerRecord) {
			defer wg.Done()
			mgr.sendTo(ctx, p.Endpoint, protocol.MsgLeagueCompleted, payload)
		}(p)
	}
	wg.Wait()
}

func (mgr *Manager) broadcastStandings(ctx context.Context, roundID string, s domain.Standings) {
	mgr.mu.Lock()
	recipients := make([]playerRecord, 0, len(mgr.players))
	for _, p := range mgr.players {
		recipients = append(recipients, *p)
	}
	mgr.mu.Unlock()

	payload := &protocol.LeagueStandingsUpdate{LeagueID: mgr.cfg.LeagueID, RoundID: roundID, Standings: viewOf(s)}
	var wg sync.WaitGroup
	for _, p := range recipients {
		wg.Add(1)
		go func(p playerRecord) {
			defer wg.Done()
			mgr.sendTo(ctx, p.Endpoint, protocol.MsgLeagueStandingsUpdate, payload)
		}(p)
	}
	wg.Wait()
}

func (mgr *Manager) broadcastRoundCompleted(ctx context.Context, roundID string) {
	mgr.mu.Lock()
	recipients := make([]playerRecord, 0, len(mgr.players))
	for _, p := range mgr.players {
		recipients = append(recipients, *p)
	}
	journal, err := mgr.roundsRepo.Get(mgr.cfg.LeagueID)
	var nextRoundID string
	idx := mgr.roundIndex(roundID)
	if idx >= 0 && idx+1 < len(mgr.roundIDs) {
		nextRoundID = mgr.roundIDs[idx+1]
	}
	mgr.mu.Unlock()
	if err != nil {
		mgr.logWarn("load rounds journal failed", roundID, err)
		return
	}

	var completed []string
	for _, r := range journal.Rounds {
		if r.RoundID != roundID {
			continue
		}
		for _, m := range r.Matches {
			completed = append(completed, m.MatchID)
		}
	}

	payload := &protocol.RoundCompleted{
		RoundID:          roundID,
		LeagueID:         mgr.cfg.LeagueID,
		CompletedMatches: completed,
		NextRoundID:      nextRoundID,
	}
	var wg sync.WaitGroup
	for _, p := range recipients {
		wg.Add(1)
		go func(p playerRecord) {
			defer wg.Done()
			mgr.sendTo(ctx, p.Endpoint, protocol.MsgRoundCompleted, payload)
		}(p)
	}
	wg.Wait()
}

func (mgr *Manager) sendTo(ctx context.Context, endpoint string, msgType protocol.MessageType, payload protocol.Payload) {
	token, err := mgr.authSvc.Issue("0", mgr.cfg.LeagueID, protocol.RoleLeagueManager)
	if err != nil {
		mgr.logWarn("issue token failed", endpoint, err)
		return
	}
	env := protocol.NewEnvelope(msgType, protocol.RoleLeagueManager, "0", uuid.NewString(), token, time.Now())
	raw, err := protocol.Encode(env, payload)
	if err != nil {
		mgr.logWarn("encode message failed", endpoint, err)
		return
	}
	if _, err := mgr.client.Call(ctx, endpoint, string(msgType), raw); err != nil {
		mgr.logWarn("broadcast failed", endpoint, err)
	}
}

func (mgr *Manager) logWarn(msg, detail string, err error) {
	if mgr.logger == nil {
		return
	}
	mgr.logger.WithFields(map[string]interface{}{"context": detail, "error": err.Error()}).Warn(msg)
}

// Standings returns the current standings snapshot, for the admin CLI.
func (mgr *Manager) Standings() (domain.Standings, error) {
	return mgr.standingsRepo.Load(mgr.cfg.LeagueID)
}

// StandingsView returns the wire-shaped standings table consumed by
// GET /admin/standings/{league_id} (spec.md §7 admin endpoints).
func (mgr *Manager) StandingsView() ([]protocol.StandingsEntryView, error) {
	s, err := mgr.Standings()
	if err != nil {
		return nil, err
	}
	return viewOf(s), nil
}

func viewOf(s domain.Standings) []protocol.StandingsEntryView {
	out := make([]protocol.StandingsEntryView, 0, len(s.Standings))
	for _, e := range s.Standings {
		out = append(out, protocol.StandingsEntryView{
			Rank: e.Rank, PlayerID: e.PlayerID, Played: e.Played,
			Wins: e.Wins, Draws: e.Draws, Losses: e.Losses, Points: e.Points,
		})
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
