package protocol

import "github.com/evenodd-league/agents/internal/svcerr"

// Parity is the Even/Odd choice enum; schemas require lowercase values
// (spec.md §4.1).
type Parity string

const (
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
)

func (p Parity) valid() bool { return p == ParityEven || p == ParityOdd }

// RegistrationStatus is the accept/reject outcome for both registration
// response types.
type RegistrationStatus string

const (
	RegistrationAccepted RegistrationStatus = "ACCEPTED"
	RegistrationRejected RegistrationStatus = "REJECTED"
)

// RoleInMatch tags which side of a match a player plays (spec.md §6 #7).
type RoleInMatch string

const (
	RolePlayerA RoleInMatch = "PLAYER_A"
	RolePlayerB RoleInMatch = "PLAYER_B"
)

// MatchResultStatus is the terminal outcome recorded on a match.
type MatchResultStatus string

const (
	MatchStatusWin       MatchResultStatus = "WIN"
	MatchStatusDraw      MatchResultStatus = "DRAW"
	MatchStatusCancelled MatchResultStatus = "CANCELLED"
)

func nonEmpty(fields map[string]string) error {
	for name, v := range fields {
		if v == "" {
			return svcerr.MissingField(name)
		}
	}
	return nil
}

// --- 1/2: referee registration ---------------------------------------------

type RefereeMeta struct {
	DisplayName          string   `json:"display_name"`
	Version              string   `json:"version"`
	GameTypes            []string `json:"game_types"`
	ContactEndpoint      string   `json:"contact_endpoint"`
	MaxConcurrentMatches int      `json:"max_concurrent_matches"`
}

type RefereeRegisterRequest struct {
	RequestedRefereeID string      `json:"referee_id,omitempty"`
	RefereeMeta        RefereeMeta `json:"referee_meta"`
}

func (*RefereeRegisterRequest) Type() MessageType { return MsgRefereeRegisterRequest }

func (p *RefereeRegisterRequest) Validate() error {
	if err := nonEmpty(map[string]string{
		"referee_meta.display_name":     p.RefereeMeta.DisplayName,
		"referee_meta.version":          p.RefereeMeta.Version,
		"referee_meta.contact_endpoint": p.RefereeMeta.ContactEndpoint,
	}); err != nil {
		return err
	}
	if len(p.RefereeMeta.GameTypes) == 0 {
		return svcerr.MissingField("referee_meta.game_types")
	}
	if p.RefereeMeta.MaxConcurrentMatches <= 0 {
		return svcerr.New(svcerr.CodeProtocolError, "max_concurrent_matches must be positive")
	}
	return nil
}

type RefereeRegisterResponse struct {
	Status           RegistrationStatus `json:"status"`
	RefereeID        string             `json:"referee_id,omitempty"`
	AuthToken        string             `json:"auth_token,omitempty"`
	LeagueID         string             `json:"league_id,omitempty"`
	RejectionReason  string             `json:"rejection_reason,omitempty"`
}

func (*RefereeRegisterResponse) Type() MessageType { return MsgRefereeRegisterResponse }

func (p *RefereeRegisterResponse) Validate() error {
	if p.Status != RegistrationAccepted && p.Status != RegistrationRejected {
		return svcerr.New(svcerr.CodeProtocolError, "status must be ACCEPTED or REJECTED")
	}
	if p.Status == RegistrationAccepted {
		return nonEmpty(map[string]string{"referee_id": p.RefereeID, "auth_token": p.AuthToken, "league_id": p.LeagueID})
	}
	return nonEmpty(map[string]string{"rejection_reason": p.RejectionReason})
}

// --- 3/4: player registration -----------------------------------------------

type PlayerMeta struct {
	DisplayName     string   `json:"display_name"`
	Version         string   `json:"version"`
	GameTypes       []string `json:"game_types"`
	ContactEndpoint string   `json:"contact_endpoint"`
}

type LeagueRegisterRequest struct {
	RequestedPlayerID string     `json:"player_id,omitempty"`
	PlayerMeta        PlayerMeta `json:"player_meta"`
}

func (*LeagueRegisterRequest) Type() MessageType { return MsgLeagueRegisterRequest }

func (p *LeagueRegisterRequest) Validate() error {
	if err := nonEmpty(map[string]string{
		"player_meta.display_name":     p.PlayerMeta.DisplayName,
		"player_meta.version":          p.PlayerMeta.Version,
		"player_meta.contact_endpoint": p.PlayerMeta.ContactEndpoint,
	}); err != nil {
		return err
	}
	if len(p.PlayerMeta.GameTypes) == 0 {
		return svcerr.MissingField("player_meta.game_types")
	}
	return nil
}

type LeagueRegisterResponse struct {
	Status          RegistrationStatus `json:"status"`
	PlayerID        string             `json:"player_id,omitempty"`
	AuthToken       string             `json:"auth_token,omitempty"`
	LeagueID        string             `json:"league_id,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
}

func (*LeagueRegisterResponse) Type() MessageType { return MsgLeagueRegisterResponse }

func (p *LeagueRegisterResponse) Validate() error {
	if p.Status != RegistrationAccepted && p.Status != RegistrationRejected {
		return svcerr.New(svcerr.CodeProtocolError, "status must be ACCEPTED or REJECTED")
	}
	if p.Status == RegistrationAccepted {
		return nonEmpty(map[string]string{"player_id": p.PlayerID, "auth_token": p.AuthToken, "league_id": p.LeagueID})
	}
	return nonEmpty(map[string]string{"rejection_reason": p.RejectionReason})
}

// --- 5/6: round lifecycle ----------------------------------------------------

// RoundMatch is the schedule entry broadcast to players (spec.md §6 #5).
// PlayerAEndpoint/PlayerBEndpoint are an enrichment beyond the documented
// minimum payload: the assigned referee needs player contact endpoints to
// send GAME_INVITATION, and ROUND_ANNOUNCEMENT is the only message the
// spec's catalogue gives it for that purpose (see DESIGN.md). Players
// ignore the two fields.
type RoundMatch struct {
	MatchID         string `json:"match_id"`
	RoundID         string `json:"round_id"`
	GameType        string `json:"game_type"`
	PlayerAID       string `json:"player_A_id"`
	PlayerBID       string `json:"player_B_id"`
	RefereeEndpoint string `json:"referee_endpoint"`
	PlayerAEndpoint string `json:"player_A_endpoint,omitempty"`
	PlayerBEndpoint string `json:"player_B_endpoint,omitempty"`
}

type RoundAnnouncement struct {
	RoundID  string       `json:"round_id"`
	LeagueID string       `json:"league_id"`
	Matches  []RoundMatch `json:"matches"`
}

func (*RoundAnnouncement) Type() MessageType { return MsgRoundAnnouncement }

func (p *RoundAnnouncement) Validate() error {
	return nonEmpty(map[string]string{"round_id": p.RoundID, "league_id": p.LeagueID})
}

type RoundCompleted struct {
	RoundID           string   `json:"round_id"`
	LeagueID          string   `json:"league_id"`
	CompletedMatches  []string `json:"completed_matches"`
	NextRoundID       string   `json:"next_round_id,omitempty"`
}

func (*RoundCompleted) Type() MessageType { return MsgRoundCompleted }

func (p *RoundCompleted) Validate() error {
	return nonEmpty(map[string]string{"round_id": p.RoundID, "league_id": p.LeagueID})
}

// --- 7/8: invitation / join ---------------------------------------------------

type GameInvitation struct {
	MatchID         string      `json:"match_id"`
	GameType        string      `json:"game_type"`
	RoleInMatch     RoleInMatch `json:"role_in_match"`
	OpponentID      string      `json:"opponent_id"`
	RefereeEndpoint string      `json:"referee_endpoint"`
}

func (*GameInvitation) Type() MessageType { return MsgGameInvitation }

func (p *GameInvitation) Validate() error {
	if err := nonEmpty(map[string]string{"match_id": p.MatchID, "game_type": p.GameType, "opponent_id": p.OpponentID}); err != nil {
		return err
	}
	if p.RoleInMatch != RolePlayerA && p.RoleInMatch != RolePlayerB {
		return svcerr.New(svcerr.CodeProtocolError, "role_in_match must be PLAYER_A or PLAYER_B")
	}
	return nil
}

type GameJoinAck struct {
	MatchID          string `json:"match_id"`
	Accept           bool   `json:"accept"`
	ArrivalTimestamp string `json:"arrival_timestamp"`
}

func (*GameJoinAck) Type() MessageType { return MsgGameJoinAck }

func (p *GameJoinAck) Validate() error {
	return nonEmpty(map[string]string{"match_id": p.MatchID, "arrival_timestamp": p.ArrivalTimestamp})
}

// --- 9/10: parity call / response --------------------------------------------

type ChooseParityContext struct {
	OpponentID string `json:"opponent_id"`
	RoundID    string `json:"round_id"`
}

type ChooseParityCall struct {
	MatchID         string              `json:"match_id"`
	GameType        string              `json:"game_type"`
	Deadline        string              `json:"deadline"`
	Context         ChooseParityContext `json:"context"`
	RefereeEndpoint string              `json:"referee_endpoint"`
}

func (*ChooseParityCall) Type() MessageType { return MsgChooseParityCall }

func (p *ChooseParityCall) Validate() error {
	return nonEmpty(map[string]string{"match_id": p.MatchID, "game_type": p.GameType, "deadline": p.Deadline})
}

type ChooseParityResponse struct {
	MatchID      string `json:"match_id"`
	ParityChoice Parity `json:"parity_choice"`
}

func (*ChooseParityResponse) Type() MessageType { return MsgChooseParityResponse }

func (p *ChooseParityResponse) Validate() error {
	if p.MatchID == "" {
		return svcerr.MissingField("match_id")
	}
	if !p.ParityChoice.valid() {
		return svcerr.InvalidChoice(string(p.ParityChoice))
	}
	return nil
}

// --- 11: game over ------------------------------------------------------------

type GameResult struct {
	Status          MatchResultStatus `json:"status"`
	WinnerPlayerID  string            `json:"winner_player_id,omitempty"`
	DrawnNumber     int               `json:"drawn_number"`
	NumberParity    Parity            `json:"number_parity"`
	Choices         map[string]Parity `json:"choices"`
	Reason          string            `json:"reason,omitempty"`
}

type GameOver struct {
	MatchID    string     `json:"match_id"`
	GameResult GameResult `json:"game_result"`
}

func (*GameOver) Type() MessageType { return MsgGameOver }

func (p *GameOver) Validate() error {
	if p.MatchID == "" {
		return svcerr.MissingField("match_id")
	}
	switch p.GameResult.Status {
	case MatchStatusWin, MatchStatusDraw, MatchStatusCancelled:
	default:
		return svcerr.New(svcerr.CodeProtocolError, "game_result.status invalid")
	}
	return nil
}

// --- 12: match result report ---------------------------------------------------

type MatchResult struct {
	Status         MatchResultStatus `json:"status"`
	WinnerPlayerID string            `json:"winner_player_id,omitempty"`
	DrawnNumber    int               `json:"drawn_number"`
	NumberParity   Parity            `json:"number_parity"`
	Choices        map[string]Parity `json:"choices"`
	Reason         string            `json:"reason,omitempty"`
	Score          map[string]int    `json:"score"`
}

type MatchResultReport struct {
	MatchID  string      `json:"match_id"`
	RoundID  string      `json:"round_id"`
	LeagueID string      `json:"league_id"`
	Result   MatchResult `json:"result"`
}

func (*MatchResultReport) Type() MessageType { return MsgMatchResultReport }

func (p *MatchResultReport) Validate() error {
	if err := nonEmpty(map[string]string{"match_id": p.MatchID, "round_id": p.RoundID, "league_id": p.LeagueID}); err != nil {
		return err
	}
	switch p.Result.Status {
	case MatchStatusWin, MatchStatusDraw, MatchStatusCancelled:
	default:
		return svcerr.New(svcerr.CodeProtocolError, "result.status invalid")
	}
	return nil
}

// --- 13/14: standings / completion ----------------------------------------------

type StandingsEntryView struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Played   int    `json:"played"`
	Wins     int    `json:"wins"`
	Draws    int    `json:"draws"`
	Losses   int    `json:"losses"`
	Points   int    `json:"points"`
}

type LeagueStandingsUpdate struct {
	LeagueID  string               `json:"league_id"`
	RoundID   string               `json:"round_id"`
	Standings []StandingsEntryView `json:"standings"`
}

func (*LeagueStandingsUpdate) Type() MessageType { return MsgLeagueStandingsUpdate }

func (p *LeagueStandingsUpdate) Validate() error {
	return nonEmpty(map[string]string{"league_id": p.LeagueID, "round_id": p.RoundID})
}

type LeagueCompleted struct {
	LeagueID        string               `json:"league_id"`
	TotalRounds     int                  `json:"total_rounds"`
	TotalMatches    int                  `json:"total_matches"`
	Champion        string               `json:"champion"`
	FinalStandings  []StandingsEntryView `json:"final_standings"`
}

func (*LeagueCompleted) Type() MessageType { return MsgLeagueCompleted }

func (p *LeagueCompleted) Validate() error {
	return nonEmpty(map[string]string{"league_id": p.LeagueID, "champion": p.Champion})
}

// --- 15/16: errors ----------------------------------------------------------------

type LeagueError struct {
	ErrorCode        string                 `json:"error_code"`
	ErrorDescription string                 `json:"error_description"`
	Context          map[string]interface{} `json:"context,omitempty"`
}

func (*LeagueError) Type() MessageType { return MsgLeagueError }

func (p *LeagueError) Validate() error {
	return nonEmpty(map[string]string{"error_code": p.ErrorCode, "error_description": p.ErrorDescription})
}

type GameError struct {
	MatchID          string `json:"match_id"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	AffectedPlayer   string `json:"affected_player,omitempty"`
	ActionRequired   string `json:"action_required"`
	RetryCount       int    `json:"retry_count"`
	MaxRetries       int    `json:"max_retries"`
	Consequence      string `json:"consequence"`
}

func (*GameError) Type() MessageType { return MsgGameError }

func (p *GameError) Validate() error {
	return nonEmpty(map[string]string{
		"match_id": p.MatchID, "error_code": p.ErrorCode,
		"error_description": p.ErrorDescription, "action_required": p.ActionRequired,
	})
}
