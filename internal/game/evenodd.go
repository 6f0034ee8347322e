// Package game implements the Even/Odd rule module: a pure function from
// two parity choices and a drawn number to a match outcome (spec.md §4.8
// "Outcome computation"). It holds no state and performs no I/O.
package game

import "math/rand"

// Parity is the evaluated parity of a drawn number.
type Parity string

const (
	Even Parity = "even"
	Odd  Parity = "odd"
)

// NumberRange is the league's configured inclusive draw range (spec.md §6
// "number_range").
type NumberRange struct {
	Lo int
	Hi int
}

// Draw picks a uniform integer in [r.Lo, r.Hi] using rng. Callers pass a
// *rand.Rand seeded per-match so draws are reproducible in tests.
func Draw(r NumberRange, rng *rand.Rand) int {
	if r.Hi <= r.Lo {
		return r.Lo
	}
	return r.Lo + rng.Intn(r.Hi-r.Lo+1)
}

// ParityOf reports whether n is even or odd.
func ParityOf(n int) Parity {
	if n%2 == 0 {
		return Even
	}
	return Odd
}

// Scoring carries the points awarded for each outcome (spec.md §6
// "scoring").
type Scoring struct {
	Win           int
	Draw          int
	Loss          int
	TechnicalLoss int
}

// Outcome is the evaluated result of one match draw (spec.md §4.8 rules
// 2-4): status, optional winner, the drawn number and its parity, and the
// per-player point awards.
type Outcome struct {
	Status      string // "WIN", "DRAW", or "CANCELLED"
	WinnerID    string // empty when Status is DRAW or CANCELLED
	DrawnNumber int
	Parity      Parity
	Score       map[string]int
	Reason      string // set for technical-loss and cancellation outcomes
}

// Evaluate applies spec.md §4.8 rules 3-4 to the two players' choices and
// the drawn number. drawOnBothWrong mirrors the league's configured
// draw_on_both_wrong flag (spec.md §6): when the two choices agree, the
// match is a draw regardless of whether that shared choice was correct,
// which is the only behavior the source documents for this flag.
func Evaluate(playerAID, choiceA, playerBID, choiceB string, drawnNumber int, scoring Scoring, drawOnBothWrong bool) Outcome {
	parity := ParityOf(drawnNumber)

	if choiceA == choiceB {
		return Outcome{
			Status:      "DRAW",
			DrawnNumber: drawnNumber,
			Parity:      parity,
			Score: map[string]int{
				playerAID: scoring.Draw,
				playerBID: scoring.Draw,
			},
		}
	}

	winnerID, loserID := playerBID, playerAID
	if choiceA == string(parity) {
		winnerID, loserID = playerAID, playerBID
	}
	return Outcome{
		Status:      "WIN",
		WinnerID:    winnerID,
		DrawnNumber: drawnNumber,
		Parity:      parity,
		Score: map[string]int{
			winnerID: scoring.Win,
			loserID:  scoring.Loss,
		},
	}
}

// TechnicalLossOutcome builds the outcome for a match ending by forfeit
// (spec.md §4.8 "Technical loss scoring"): the offender scores the
// technical-loss weight, the opponent scores a win. When bothFailed is
// true neither side scores and the caller must mark the match CANCELLED
// rather than FINISHED.
func TechnicalLossOutcome(offenderID, opponentID string, bothFailed bool, scoring Scoring) Outcome {
	if bothFailed {
		return Outcome{
			Status: "CANCELLED",
			Score: map[string]int{
				offenderID: 0,
				opponentID: 0,
			},
		}
	}
	return Outcome{
		Status:   "WIN",
		WinnerID: opponentID,
		Score: map[string]int{
			offenderID: scoring.TechnicalLoss,
			opponentID: scoring.Win,
		},
	}
}
