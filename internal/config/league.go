package config

import "time"

// ScoringWeights are the points awarded per outcome (spec.md §3, §6).
type ScoringWeights struct {
	Win            int
	Draw           int
	Loss           int
	TechnicalLoss  int
}

// DefaultScoringWeights returns the spec's documented defaults (3/1/0/0).
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{Win: 3, Draw: 1, Loss: 0, TechnicalLoss: 0}
}

// NumberRange is the inclusive range the referee draws from (spec.md §4.8,
// §9 Open Questions: treated as league configuration, defaulting to the
// documented working-code value of [0,99]).
type NumberRange struct {
	Lo int
	Hi int
}

// DefaultNumberRange is the spec's documented working-code default.
func DefaultNumberRange() NumberRange { return NumberRange{Lo: 0, Hi: 99} }

// LeagueConfig is the immutable per-league configuration fixed at
// ACCEPTING->SCHEDULED transition (spec.md §3 "League").
type LeagueConfig struct {
	LeagueID        string
	GameType        string
	MinPlayers      int
	MaxPlayers      int
	Scoring         ScoringWeights
	NumberRange     NumberRange
	DrawOnBothWrong bool
}

// Timeouts holds the wall-clock deadlines from spec.md §6.
type Timeouts struct {
	JoinAck time.Duration
	Move    time.Duration
	Generic time.Duration
	HTTP    time.Duration

	// RoundDeadline bounds how long a round may run before the manager's
	// sweeper force-cancels whatever matches never reported a result,
	// independent of each match's own per-step timers (referee crash,
	// dropped network partition).
	RoundDeadline time.Duration
}

// DefaultTimeouts returns the spec's documented defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		JoinAck:       5 * time.Second,
		Move:          30 * time.Second,
		Generic:       10 * time.Second,
		HTTP:          5 * time.Second,
		RoundDeadline: 5 * time.Minute,
	}
}

// RetryConfig mirrors spec.md §4.3's retry policy.
type RetryConfig struct {
	MaxAttempts int
	Base        time.Duration
}

// DefaultRetryConfig returns the spec's documented defaults (3 attempts, 1s base).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Base: 1 * time.Second}
}

// CircuitBreakerConfig mirrors spec.md §4.3's circuit-breaker policy.
type CircuitBreakerConfig struct {
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenProbes   int
}

// DefaultCircuitBreakerConfig returns the spec's documented defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, OpenTimeout: 30 * time.Second, HalfOpenProbes: 1}
}

// AuthConfig configures the bearer-token service (spec.md §4.2, §6, §9).
type AuthConfig struct {
	Secret       []byte
	TokenExpiry  time.Duration
}

// NetworkConfig holds per-process listen addresses (spec.md §6 "Network").
type NetworkConfig struct {
	ManagerPort int
	RefereePort int
	PlayerPort  int
}

// LoadAuthConfig builds an AuthConfig from the environment. The secret is
// required; token expiry defaults to 24h.
func LoadAuthConfig() AuthConfig {
	secret := GetEnv("LEAGUE_AUTH_SECRET", "")
	expiryHours := GetEnvInt("LEAGUE_AUTH_EXPIRY_HOURS", 24)
	return AuthConfig{
		Secret:      []byte(secret),
		TokenExpiry: time.Duration(expiryHours) * time.Hour,
	}
}
