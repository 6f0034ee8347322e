package player

import (
	"math/rand"

	"github.com/evenodd-league/agents/internal/domain"
)

// Strategy chooses a parity for one match. Choose must be pure with respect
// to its inputs and return quickly: a choice that has not reached the
// referee when its move timeout elapses counts against the player's retries
// (spec.md §4.10).
type Strategy interface {
	Choose(opponentID string, history []domain.PlayerHistoryRecord) string
}

// RandomStrategy picks even/odd uniformly at random, ignoring history. It
// is the default strategy for a player that has not been configured with a
// smarter one.
type RandomStrategy struct {
	rng *rand.Rand
}

// NewRandomStrategy builds a RandomStrategy seeded from seed.
func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomStrategy) Choose(opponentID string, history []domain.PlayerHistoryRecord) string {
	if s.rng.Intn(2) == 0 {
		return "even"
	}
	return "odd"
}

// FixedStrategy always returns Choice, regardless of opponent or history.
// Useful for deterministic demo/test players.
type FixedStrategy struct {
	Choice string
}

func (s FixedStrategy) Choose(opponentID string, history []domain.PlayerHistoryRecord) string {
	return s.Choice
}

// FrequencyStrategy exploits the opponent's historical choice pattern,
// counting OpponentChoice over the history records played against that
// opponent: it picks whichever parity the opponent has favored most often,
// breaking ties randomly (spec.md §3 "player history"
// is carried exactly so a strategy can do this).
type FrequencyStrategy struct {
	rng *rand.Rand
}

// NewFrequencyStrategy builds a FrequencyStrategy seeded from seed.
func NewFrequencyStrategy(seed int64) *FrequencyStrategy {
	return &FrequencyStrategy{rng: rand.New(rand.NewSource(seed))}
}

func (s *FrequencyStrategy) Choose(opponentID string, history []domain.PlayerHistoryRecord) string {
	evenCount, oddCount := 0, 0
	for _, rec := range history {
		if rec.OpponentID != opponentID {
			continue
		}
		switch rec.OpponentChoice {
		case "even":
			evenCount++
		case "odd":
			oddCount++
		}
	}
	switch {
	case evenCount == oddCount:
		if s.rng.Intn(2) == 0 {
			return "even"
		}
		return "odd"
	case evenCount > oddCount:
		return "even"
	default:
		return "odd"
	}
}
