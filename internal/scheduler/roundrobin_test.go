package scheduler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobin_EvenPlayers(t *testing.T) {
	rounds := RoundRobin([]string{"p1", "p2", "p3", "p4"})
	require.Len(t, rounds, 3)
	for _, round := range rounds {
		assert.Len(t, round, 2)
	}

	seen := map[[2]string]bool{}
	for _, round := range rounds {
		for _, pair := range round {
			key := pair
			if key[0] > key[1] {
				key = [2]string{key[1], key[0]}
			}
			assert.False(t, seen[key], "pair %v scheduled more than once", key)
			seen[key] = true
		}
	}
	assert.Len(t, seen, 6) // C(4,2)
}

func TestRoundRobin_OddPlayersGetByes(t *testing.T) {
	rounds := RoundRobin([]string{"p1", "p2", "p3"})
	require.Len(t, rounds, 3)

	played := map[string]int{"p1": 0, "p2": 0, "p3": 0}
	for _, round := range rounds {
		assert.LessOrEqual(t, len(round), 1)
		for _, pair := range round {
			played[pair[0]]++
			played[pair[1]]++
		}
	}
	for id, count := range played {
		assert.Equal(t, 2, count, "player %s should play every other player exactly once", id)
	}
}

func TestRoundRobin_Deterministic(t *testing.T) {
	a := RoundRobin([]string{"p3", "p1", "p2", "p4"})
	b := RoundRobin([]string{"p1", "p2", "p3", "p4"})
	assert.Equal(t, a, b)
}

func TestRoundRobin_EmptyAndSingle(t *testing.T) {
	assert.Nil(t, RoundRobin(nil))
	rounds := RoundRobin([]string{"p1"})
	require.Len(t, rounds, 0)
}

func TestRefereeAssigner_RespectsMaxConcurrent(t *testing.T) {
	a := NewRefereeAssigner([]string{"ref-a", "ref-b"}, map[string]int{"ref-a": 1, "ref-b": 1})
	pairings := [][2]string{{"p1", "p2"}, {"p3", "p4"}}

	round, err := a.Assign("round-1", pairings, func(x, y string) string {
		return fmt.Sprintf("match-%s-%s", x, y)
	})
	require.NoError(t, err)
	require.Len(t, round.Matches, 2)
	assert.NotEqual(t, round.Matches[0].RefereeID, round.Matches[1].RefereeID)
}

func TestRefereeAssigner_OverLoadFallsBackToLeastLoaded(t *testing.T) {
	a := NewRefereeAssigner([]string{"ref-a"}, map[string]int{"ref-a": 1})
	pairings := [][2]string{{"p1", "p2"}, {"p3", "p4"}}

	round, err := a.Assign("round-1", pairings, func(x, y string) string {
		return fmt.Sprintf("match-%s-%s", x, y)
	})
	require.NoError(t, err)
	require.Len(t, round.Matches, 2)
	assert.Equal(t, "ref-a", round.Matches[0].RefereeID)
	assert.Equal(t, "ref-a", round.Matches[1].RefereeID)
}

func TestRefereeAssigner_NoRefereesErrors(t *testing.T) {
	a := NewRefereeAssigner(nil, nil)
	_, err := a.Assign("round-1", [][2]string{{"p1", "p2"}}, func(x, y string) string { return "m" })
	assert.Error(t, err)
}
