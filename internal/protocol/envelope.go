// Package protocol implements the league.v2 wire format (spec.md §4.1,
// §6): a fixed envelope wrapping one of 16 typed payload variants. Routing
// is a total switch over the message_type tag rather than a dictionary of
// handlers (spec.md §9 REDESIGN FLAGS), so the compiler flags any payload
// type left unhandled in Decode.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/evenodd-league/agents/internal/svcerr"
)

// ProtocolVersion is the fixed protocol identifier (spec.md §3).
const ProtocolVersion = "league.v2"

// Role is the sender's class (spec.md §3).
type Role string

const (
	RolePlayer        Role = "player"
	RoleReferee       Role = "referee"
	RoleLeagueManager Role = "league_manager"
)

// MessageType tags each of the 16 catalogued payload variants (spec.md §6).
type MessageType string

const (
	MsgRefereeRegisterRequest  MessageType = "REFEREE_REGISTER_REQUEST"
	MsgRefereeRegisterResponse MessageType = "REFEREE_REGISTER_RESPONSE"
	MsgLeagueRegisterRequest   MessageType = "LEAGUE_REGISTER_REQUEST"
	MsgLeagueRegisterResponse  MessageType = "LEAGUE_REGISTER_RESPONSE"
	MsgRoundAnnouncement       MessageType = "ROUND_ANNOUNCEMENT"
	MsgRoundCompleted          MessageType = "ROUND_COMPLETED"
	MsgGameInvitation          MessageType = "GAME_INVITATION"
	MsgGameJoinAck             MessageType = "GAME_JOIN_ACK"
	MsgChooseParityCall        MessageType = "CHOOSE_PARITY_CALL"
	MsgChooseParityResponse    MessageType = "CHOOSE_PARITY_RESPONSE"
	MsgGameOver                MessageType = "GAME_OVER"
	MsgMatchResultReport       MessageType = "MATCH_RESULT_REPORT"
	MsgLeagueStandingsUpdate   MessageType = "LEAGUE_STANDINGS_UPDATE"
	MsgLeagueCompleted         MessageType = "LEAGUE_COMPLETED"
	MsgLeagueError             MessageType = "LEAGUE_ERROR"
	MsgGameError               MessageType = "GAME_ERROR"
)

// registrationTypes carry an empty auth_token (spec.md §4.2 invariant).
var registrationTypes = map[MessageType]bool{
	MsgRefereeRegisterRequest: true,
	MsgLeagueRegisterRequest:  true,
}

// Envelope carries the fields present on every league.v2 message
// (spec.md §3 "Message envelope").
type Envelope struct {
	Protocol       string      `json:"protocol"`
	MessageType    MessageType `json:"message_type"`
	Sender         string      `json:"sender"`
	Timestamp      string      `json:"timestamp"`
	ConversationID string      `json:"conversation_id"`
	AuthToken      string      `json:"auth_token"`
}

// NewEnvelope builds an envelope for the given sender role+id, stamping now
// (in UTC) as the timestamp and copying conversationID as given; an empty
// conversationID is not replaced.
func NewEnvelope(msgType MessageType, role Role, agentID, conversationID, authToken string, now time.Time) Envelope {
	return Envelope{
		Protocol:       ProtocolVersion,
		MessageType:    msgType,
		Sender:         fmt.Sprintf("%s:%s", NormalizeSenderRole(role), agentID),
		Timestamp:      now.UTC().Format(time.RFC3339Nano),
		ConversationID: conversationID,
		AuthToken:      authToken,
	}
}

// NormalizeSenderRole always emits the qualified manager role string
// (spec.md §9 Open Questions: accept both "league_manager" and
// "league_manager:<id>" on ingress, but always emit the qualified form —
// qualification happens at the sender-string level via agentID, so this
// just fixes the role token itself).
func NormalizeSenderRole(r Role) string {
	return string(r)
}

// ParsedSender is the decomposed `sender` field: "<role>:<agent_id>".
type ParsedSender struct {
	Role    Role
	AgentID string
}

// ParseSender splits and validates the sender field (spec.md §4.1).
// It accepts both "league_manager" and "league_manager:<id>" for the
// manager role, per spec.md §9 Open Questions.
func ParseSender(sender string) (ParsedSender, error) {
	parts := strings.SplitN(sender, ":", 2)
	role := Role(parts[0])
	var agentID string
	if len(parts) == 2 {
		agentID = parts[1]
	}

	switch role {
	case RolePlayer, RoleReferee:
		if agentID == "" {
			return ParsedSender{}, svcerr.Protocol("sender missing agent_id")
		}
	case RoleLeagueManager:
		// agentID may be empty; accept the bare "league_manager" form.
	default:
		return ParsedSender{}, svcerr.Protocol("sender has unknown role: " + string(role))
	}

	return ParsedSender{Role: role, AgentID: agentID}, nil
}

// QualifiedSender always emits "<role>:<agent_id>", defaulting agentID to
// "0" for the manager's singleton identity when none is configured.
func QualifiedSender(role Role, agentID string) string {
	if agentID == "" {
		agentID = "0"
	}
	return fmt.Sprintf("%s:%s", role, agentID)
}

// ValidateEnvelope checks the universal envelope rules (spec.md §4.1):
// protocol must be "league.v2", timestamp must be a valid UTC RFC-3339
// instant with a "Z" suffix, sender must parse, and the auth token must be
// empty iff msgType is one of the two registration requests.
func ValidateEnvelope(e Envelope) error {
	if e.Protocol != ProtocolVersion {
		return svcerr.Protocol("unsupported protocol: " + e.Protocol)
	}
	if !strings.HasSuffix(e.Timestamp, "Z") {
		return svcerr.Protocol("timestamp must be UTC with Z suffix")
	}
	if _, err := time.Parse(time.RFC3339Nano, e.Timestamp); err != nil {
		if _, err2 := time.Parse(time.RFC3339, e.Timestamp); err2 != nil {
			return svcerr.Protocol("timestamp is not a valid RFC-3339 instant")
		}
	}
	if _, err := ParseSender(e.Sender); err != nil {
		return err
	}
	if e.ConversationID == "" {
		return svcerr.Protocol("conversation_id is required")
	}

	isRegistration := registrationTypes[e.MessageType]
	if isRegistration && e.AuthToken != "" {
		return svcerr.Protocol("registration requests must carry an empty auth_token")
	}
	if !isRegistration && e.AuthToken == "" {
		return svcerr.AuthTokenMissing()
	}
	return nil
}

// Message pairs a decoded Envelope with its typed Payload.
type Message struct {
	Envelope Envelope
	Payload  Payload
}

// Payload is implemented by each of the 16 concrete payload types. Schema
// validation is per-type; envelope validation is universal (ValidateEnvelope).
type Payload interface {
	Type() MessageType
	Validate() error
}

// rawEnvelope is used to decode params before dispatching on message_type.
type rawEnvelope struct {
	Envelope
	Payload json.RawMessage `json:"payload"`
}

// Decode parses a JSON-RPC params object into an Envelope+Payload pair,
// validating both the envelope and the payload schema for message_type.
func Decode(params []byte) (Message, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(params, &raw); err != nil {
		return Message{}, svcerr.Protocol("malformed params: " + err.Error())
	}
	if err := ValidateEnvelope(raw.Envelope); err != nil {
		return Message{}, err
	}

	payload, err := decodePayload(raw.Envelope.MessageType, raw.Payload)
	if err != nil {
		return Message{}, err
	}
	if err := payload.Validate(); err != nil {
		return Message{}, err
	}
	return Message{Envelope: raw.Envelope, Payload: payload}, nil
}

// Encode serializes an Envelope+Payload pair into a JSON-RPC params object.
func Encode(env Envelope, payload Payload) ([]byte, error) {
	type wire struct {
		Envelope
		Payload Payload `json:"payload"`
	}
	return json.Marshal(wire{Envelope: env, Payload: payload})
}

func decodePayload(t MessageType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case MsgRefereeRegisterRequest:
		p = &RefereeRegisterRequest{}
	case MsgRefereeRegisterResponse:
		p = &RefereeRegisterResponse{}
	case MsgLeagueRegisterRequest:
		p = &LeagueRegisterRequest{}
	case MsgLeagueRegisterResponse:
		p = &LeagueRegisterResponse{}
	case MsgRoundAnnouncement:
		p = &RoundAnnouncement{}
	case MsgRoundCompleted:
		p = &RoundCompleted{}
	case MsgGameInvitation:
		p = &GameInvitation{}
	case MsgGameJoinAck:
		p = &GameJoinAck{}
	case MsgChooseParityCall:
		p = &ChooseParityCall{}
	case MsgChooseParityResponse:
		p = &ChooseParityResponse{}
	case MsgGameOver:
		p = &GameOver{}
	case MsgMatchResultReport:
		p = &MatchResultReport{}
	case MsgLeagueStandingsUpdate:
		p = &LeagueStandingsUpdate{}
	case MsgLeagueCompleted:
		p = &LeagueCompleted{}
	case MsgLeagueError:
		p = &LeagueError{}
	case MsgGameError:
		p = &GameError{}
	default:
		return nil, svcerr.Protocol("unknown message_type: " + string(t))
	}
	if len(raw) == 0 {
		return nil, svcerr.MissingField("payload")
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, svcerr.Protocol("malformed payload: " + err.Error())
	}
	return p, nil
}
