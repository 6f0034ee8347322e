package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultScoring() Scoring {
	return Scoring{Win: 3, Draw: 1, Loss: 0, TechnicalLoss: 0}
}

func TestEvaluate_DrawWhenChoicesAgree(t *testing.T) {
	out := Evaluate("p1", "even", "p2", "even", 7, defaultScoring(), true)
	assert.Equal(t, "DRAW", out.Status)
	assert.Empty(t, out.WinnerID)
	assert.Equal(t, 1, out.Score["p1"])
	assert.Equal(t, 1, out.Score["p2"])
}

func TestEvaluate_WinnerMatchesParity(t *testing.T) {
	out := Evaluate("p1", "even", "p2", "odd", 8, defaultScoring(), true)
	assert.Equal(t, "WIN", out.Status)
	assert.Equal(t, "p1", out.WinnerID)
	assert.Equal(t, 3, out.Score["p1"])
	assert.Equal(t, 0, out.Score["p2"])
}

func TestEvaluate_OtherPlayerWinsOnOddDraw(t *testing.T) {
	out := Evaluate("p1", "even", "p2", "odd", 7, defaultScoring(), true)
	assert.Equal(t, "p2", out.WinnerID)
}

func TestParityOf(t *testing.T) {
	assert.Equal(t, Even, ParityOf(0))
	assert.Equal(t, Even, ParityOf(100))
	assert.Equal(t, Odd, ParityOf(99))
}

func TestDraw_StaysWithinRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	r := NumberRange{Lo: 0, Hi: 99}
	for i := 0; i < 1000; i++ {
		n := Draw(r, rng)
		assert.GreaterOrEqual(t, n, r.Lo)
		assert.LessOrEqual(t, n, r.Hi)
	}
}

func TestDraw_DegenerateRangeReturnsLo(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, 5, Draw(NumberRange{Lo: 5, Hi: 5}, rng))
}

func TestTechnicalLossOutcome_OffenderLoses(t *testing.T) {
	out := TechnicalLossOutcome("p1", "p2", false, defaultScoring())
	assert.Equal(t, "WIN", out.Status)
	assert.Equal(t, "p2", out.WinnerID)
	assert.Equal(t, 0, out.Score["p1"])
	assert.Equal(t, 3, out.Score["p2"])
}

func TestTechnicalLossOutcome_BothFailedCancelsWithZeroScore(t *testing.T) {
	out := TechnicalLossOutcome("p1", "p2", true, defaultScoring())
	assert.Equal(t, "CANCELLED", out.Status)
	assert.Empty(t, out.WinnerID)
	assert.Equal(t, 0, out.Score["p1"])
	assert.Equal(t, 0, out.Score["p2"])
}
