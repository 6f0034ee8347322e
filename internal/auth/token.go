// Package auth implements the league.v2 bearer token service (spec.md
// §4.2): symmetric HS256 JWTs scoped to (agent_id, league_id, role),
// grounded on r3e-network-service_layer's cmd/gateway JWT helpers
// (generateJWT/validateJWT) and infrastructure/serviceauth's claims shape.
// The teacher's RS256 asymmetric variant is not used: spec.md §9 Open
// Questions specifies a process-wide symmetric secret.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/evenodd-league/agents/internal/protocol"
	"github.com/evenodd-league/agents/internal/svcerr"
)

// Claims is the JWT claim set (spec.md §4.2): sub=agent_id, plus
// league_id, role, iat, exp, jti.
type Claims struct {
	LeagueID string        `json:"league_id"`
	Role     protocol.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates bearer tokens for one process-wide secret.
type Service struct {
	secret []byte
	expiry time.Duration
}

// NewService creates a token Service. secret must be non-empty.
func NewService(secret []byte, expiry time.Duration) (*Service, error) {
	if len(secret) == 0 {
		return nil, svcerr.New(svcerr.CodeProtocolError, "auth secret must not be empty")
	}
	if expiry == 0 {
		expiry = 24 * time.Hour
	}
	return &Service{secret: secret, expiry: expiry}, nil
}

// Issue mints a new token scoped to (agentID, leagueID, role).
func (s *Service) Issue(agentID, leagueID string, role protocol.Role) (string, error) {
	now := time.Now()
	claims := &Claims{
		LeagueID: leagueID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", svcerr.Wrap(svcerr.CodeAuthTokenInvalid, "failed to sign token", err)
	}
	return signed, nil
}

// Validate checks signature, expiry, and (when non-empty) that the claims
// match the expected agent/league identity (spec.md §4.2).
func (s *Service) Validate(tokenString, expectedAgentID, expectedLeagueID string) (*Claims, error) {
	if tokenString == "" {
		return nil, svcerr.AuthTokenMissing()
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, svcerr.AuthTokenInvalid("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, svcerr.AuthTokenInvalid("signature or expiry check failed")
	}

	if expectedAgentID != "" && claims.Subject != expectedAgentID {
		return nil, svcerr.AuthTokenInvalid("subject does not match expected agent")
	}
	if expectedLeagueID != "" && claims.LeagueID != expectedLeagueID {
		return nil, svcerr.AuthTokenInvalid("league_id does not match expected league")
	}
	return claims, nil
}
