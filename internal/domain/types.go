// Package domain defines the shared entities of spec.md §3 that are
// exchanged between the repositories, the scheduler, the standings engine,
// the referee match engine, and the manager orchestrator.
package domain

import "time"

// MatchState is one of the referee's per-match state machine states
// (spec.md §4.8).
type MatchState string

const (
	MatchCreated             MatchState = "CREATED"
	MatchWaitingForPlayers   MatchState = "WAITING_FOR_PLAYERS"
	MatchCollectingChoices   MatchState = "COLLECTING_CHOICES"
	MatchDrawingNumber       MatchState = "DRAWING_NUMBER"
	MatchFinished            MatchState = "FINISHED"
	MatchCancelled           MatchState = "CANCELLED"
)

// LeagueState is the league lifecycle (spec.md §3).
type LeagueState string

const (
	LeagueInitialized LeagueState = "INITIALIZED"
	LeagueAccepting   LeagueState = "ACCEPTING"
	LeagueScheduled   LeagueState = "SCHEDULED"
	LeagueInProgress  LeagueState = "IN_PROGRESS"
	LeagueFinished    LeagueState = "FINISHED"
	LeagueClosed      LeagueState = "CLOSED"
)

// LifecycleEntry is one append-only (state, timestamp) record on a match.
type LifecycleEntry struct {
	State     MatchState `json:"state"`
	Timestamp time.Time  `json:"timestamp"`
}

// TranscriptEntry is one append-only protocol-exchange record on a match
// (spec.md §3 "transcript").
type TranscriptEntry struct {
	Seq         int       `json:"seq"`
	Timestamp   time.Time `json:"timestamp"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	MessageType string    `json:"message_type"`
}

// MatchResult is the outcome recorded once a match reaches a terminal
// state (spec.md §3, §4.8 "Match report contract").
type MatchResult struct {
	Status         string         `json:"status"`
	WinnerPlayerID string         `json:"winner_player_id,omitempty"`
	DrawnNumber    int            `json:"drawn_number"`
	NumberParity   string         `json:"number_parity"`
	Choices        map[string]string `json:"choices"`
	Reason         string         `json:"reason,omitempty"`
	Score          map[string]int `json:"score"`
}

// Match is the persisted per-match record (spec.md §3, §6).
type Match struct {
	MatchID    string            `json:"match_id"`
	RoundID    string            `json:"round_id"`
	LeagueID   string            `json:"league_id"`
	GameType   string            `json:"game_type"`
	RefereeID  string            `json:"referee_id"`
	PlayerAID  string            `json:"player_A_id"`
	PlayerBID  string            `json:"player_B_id"`
	State      MatchState        `json:"state"`
	Lifecycle  []LifecycleEntry  `json:"lifecycle"`
	Transcript []TranscriptEntry `json:"transcript"`
	Result     *MatchResult      `json:"result,omitempty"`
}

// RoundMatchRef is a scheduled (or completed) match reference within a
// round of the rounds journal.
type RoundMatchRef struct {
	MatchID   string       `json:"match_id"`
	PlayerAID string       `json:"player_A_id"`
	PlayerBID string       `json:"player_B_id"`
	RefereeID string       `json:"referee_id"`
	Result    *MatchResult `json:"result,omitempty"`
}

// RoundStatus is the rounds-journal lifecycle of a single round.
type RoundStatus string

const (
	RoundScheduled RoundStatus = "SCHEDULED"
	RoundActive    RoundStatus = "ACTIVE"
	RoundComplete  RoundStatus = "COMPLETE"
)

// Round is one entry of the rounds journal (spec.md §6).
type Round struct {
	RoundID   string          `json:"round_id"`
	Status    RoundStatus     `json:"status"`
	StartTime *time.Time      `json:"start_time,omitempty"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
	Matches   []RoundMatchRef `json:"matches"`
}

// RoundsJournal is the manager's full schedule-and-progress record.
type RoundsJournal struct {
	LeagueID string  `json:"league_id"`
	Rounds   []Round `json:"rounds"`
}

// StandingsEntry is one player's row in the standings table (spec.md §3).
type StandingsEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Played   int    `json:"played"`
	Wins     int    `json:"wins"`
	Draws    int    `json:"draws"`
	Losses   int    `json:"losses"`
	Points   int    `json:"points"`
}

// Standings is the full per-league standings snapshot (spec.md §6).
type Standings struct {
	LeagueID        string           `json:"league_id"`
	Version         int              `json:"version"`
	LastUpdated     time.Time        `json:"last_updated"`
	RoundsCompleted int              `json:"rounds_completed"`
	Standings       []StandingsEntry `json:"standings"`
}

// PlayerHistoryRecord is one completed match as recorded by the player
// itself (spec.md §3 "Player history").
type PlayerHistoryRecord struct {
	MatchID         string `json:"match_id"`
	OpponentID      string `json:"opponent_id"`
	OwnChoice       string `json:"own_choice"`
	OpponentChoice  string `json:"opponent_choice"`
	DrawnNumber     int    `json:"drawn_number"`
	Result          string `json:"result"`
	Points          int    `json:"points"`
}

// PlayerHistory is the full per-player append-only history file.
type PlayerHistory struct {
	PlayerID string                 `json:"player_id"`
	Stats    PlayerStats            `json:"stats"`
	Matches  []PlayerHistoryRecord  `json:"matches"`
	OpponentPatterns map[string]OpponentPattern `json:"opponent_patterns"`
}

// PlayerStats is the running summary carried alongside the match list.
type PlayerStats struct {
	Played int `json:"played"`
	Wins   int `json:"wins"`
	Draws  int `json:"draws"`
	Losses int `json:"losses"`
	Points int `json:"points"`
}

// OpponentPattern tracks a per-opponent choice tally, available to
// strategies that want to exploit observed opponent behavior.
type OpponentPattern struct {
	EvenCount int `json:"even_count"`
	OddCount  int `json:"odd_count"`
}

// ScoringWeights mirrors config.ScoringWeights to avoid a repo->config
// import; kept identical in shape.
type ScoringWeights struct {
	Win           int
	Draw          int
	Loss          int
	TechnicalLoss int
}

// ScheduledMatch is the scheduler's output unit (spec.md §4.6).
type ScheduledMatch struct {
	PlayerAID string
	PlayerBID string
	RefereeID string
	MatchID   string
}

// ScheduledRound groups disjoint matches dispatched together.
type ScheduledRound struct {
	RoundID string
	Matches []ScheduledMatch
}
