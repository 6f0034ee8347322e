package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnvelope(msgType MessageType, sender, token string) Envelope {
	return Envelope{
		Protocol:       ProtocolVersion,
		MessageType:    msgType,
		Sender:         sender,
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
		ConversationID: "conv-1",
		AuthToken:      token,
	}
}

func TestDecode_ValidRegistration(t *testing.T) {
	env := validEnvelope(MsgLeagueRegisterRequest, "player:P01", "")
	payload := LeagueRegisterRequest{
		PlayerMeta: PlayerMeta{
			DisplayName:     "Bot",
			Version:         "1.0",
			GameTypes:       []string{"even_odd"},
			ContactEndpoint: "http://localhost:9001",
		},
	}
	raw, err := Encode(env, &payload)
	require.NoError(t, err)

	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, MsgLeagueRegisterRequest, msg.Envelope.MessageType)
	got, ok := msg.Payload.(*LeagueRegisterRequest)
	require.True(t, ok)
	assert.Equal(t, "Bot", got.PlayerMeta.DisplayName)
}

func TestDecode_RejectsWrongProtocol(t *testing.T) {
	env := validEnvelope(MsgGameJoinAck, "player:P01", "tok")
	env.Protocol = "league.v1"
	raw, _ := json.Marshal(struct {
		Envelope
		Payload GameJoinAck `json:"payload"`
	}{env, GameJoinAck{MatchID: "R1M1", Accept: true, ArrivalTimestamp: env.Timestamp}})

	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecode_RejectsBadTimestamp(t *testing.T) {
	env := validEnvelope(MsgGameJoinAck, "player:P01", "tok")
	env.Timestamp = "not-a-timestamp"
	raw, _ := json.Marshal(struct {
		Envelope
		Payload GameJoinAck `json:"payload"`
	}{env, GameJoinAck{MatchID: "R1M1", Accept: true, ArrivalTimestamp: "2026-01-01T00:00:00Z"}})

	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecode_RegistrationRequestsMustHaveEmptyToken(t *testing.T) {
	env := validEnvelope(MsgLeagueRegisterRequest, "player:P01", "should-be-empty")
	payload := LeagueRegisterRequest{PlayerMeta: PlayerMeta{
		DisplayName: "Bot", Version: "1.0", GameTypes: []string{"even_odd"}, ContactEndpoint: "http://x",
	}}
	raw, _ := Encode(env, &payload)

	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecode_NonRegistrationRequiresToken(t *testing.T) {
	env := validEnvelope(MsgGameJoinAck, "player:P01", "")
	payload := GameJoinAck{MatchID: "R1M1", Accept: true, ArrivalTimestamp: env.Timestamp}
	raw, _ := Encode(env, &payload)

	_, err := Decode(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_TOKEN_MISSING")
}

func TestParseSender_AcceptsBothManagerForms(t *testing.T) {
	ps, err := ParseSender("league_manager")
	require.NoError(t, err)
	assert.Equal(t, RoleLeagueManager, ps.Role)

	ps2, err := ParseSender("league_manager:0")
	require.NoError(t, err)
	assert.Equal(t, RoleLeagueManager, ps2.Role)
	assert.Equal(t, "0", ps2.AgentID)
}

func TestChooseParityResponse_RejectsInvalidChoice(t *testing.T) {
	p := ChooseParityResponse{MatchID: "R1M1", ParityChoice: "maybe"}
	err := p.Validate()
	require.Error(t, err)
	se, ok := err.(interface{ Error() string })
	require.True(t, ok)
	assert.Contains(t, se.Error(), "INVALID_CHOICE")
}
