package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evenodd-league/agents/internal/protocol"
)

func TestIssueAndValidate(t *testing.T) {
	svc, err := NewService([]byte("test-secret"), time.Hour)
	require.NoError(t, err)

	tok, err := svc.Issue("P01", "league-1", protocol.RolePlayer)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := svc.Validate(tok, "P01", "league-1")
	require.NoError(t, err)
	assert.Equal(t, "league-1", claims.LeagueID)
	assert.Equal(t, protocol.RolePlayer, claims.Role)
}

func TestValidate_RejectsWrongAgent(t *testing.T) {
	svc, _ := NewService([]byte("s"), time.Hour)
	tok, _ := svc.Issue("P01", "league-1", protocol.RolePlayer)

	_, err := svc.Validate(tok, "P02", "league-1")
	require.Error(t, err)
}

func TestValidate_RejectsBadSignature(t *testing.T) {
	svc1, _ := NewService([]byte("secret-one"), time.Hour)
	svc2, _ := NewService([]byte("secret-two"), time.Hour)

	tok, _ := svc1.Issue("P01", "league-1", protocol.RolePlayer)
	_, err := svc2.Validate(tok, "", "")
	require.Error(t, err)
}

func TestValidate_RejectsExpired(t *testing.T) {
	svc, _ := NewService([]byte("s"), -time.Second)
	tok, _ := svc.Issue("P01", "league-1", protocol.RolePlayer)

	_, err := svc.Validate(tok, "", "")
	require.Error(t, err)
}

func TestValidate_EmptyTokenIsMissing(t *testing.T) {
	svc, _ := NewService([]byte("s"), time.Hour)
	_, err := svc.Validate("", "", "")
	require.Error(t, err)
}
