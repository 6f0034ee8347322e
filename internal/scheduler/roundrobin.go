// Package scheduler builds the round-robin match schedule for a league
// (spec.md §4.6) and assigns referees to scheduled matches.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/evenodd-league/agents/internal/domain"
)

// byeID marks the synthetic opponent a player draws in a bye slot.
const byeID = ""

// RoundRobin generates the full round-robin schedule for playerIDs using the
// standard circle method: player 0 is fixed, the remaining players rotate
// one position each round. An odd player count gets a synthetic bye seat
// appended so every round has an even number of seats; whoever draws it
// sits that round out (spec.md §4.6 "bye for odd N").
//
// The returned rounds are deterministic for a given (sorted) input slice,
// which keeps schedules reproducible across manager restarts.
func RoundRobin(playerIDs []string) [][][2]string {
	ids := make([]string, len(playerIDs))
	copy(ids, playerIDs)
	sort.Strings(ids)

	if len(ids) < 2 {
		return nil
	}
	if len(ids)%2 == 1 {
		ids = append(ids, byeID)
	}
	n := len(ids)
	if n == 0 {
		return nil
	}
	numRounds := n - 1
	half := n / 2

	rounds := make([][][2]string, 0, numRounds)
	arr := make([]string, n)
	copy(arr, ids)

	for r := 0; r < numRounds; r++ {
		round := make([][2]string, 0, half)
		for i := 0; i < half; i++ {
			a, b := arr[i], arr[n-1-i]
			if a != byeID && b != byeID {
				round = append(round, [2]string{a, b})
			}
		}
		rounds = append(rounds, round)

		// Rotate all but the fixed first element one position clockwise.
		fixed := arr[0]
		rest := append([]string{}, arr[1:]...)
		last := rest[len(rest)-1]
		rest = append([]string{last}, rest[:len(rest)-1]...)
		arr = append([]string{fixed}, rest...)
	}
	return rounds
}

// RefereeAssigner hands out referees to a round's pairings in round-robin
// order, respecting each referee's MaxConcurrentMatches (spec.md §4.6,
// §6 "max_concurrent_matches").
type RefereeAssigner struct {
	refereeIDs []string
	maxLoad    map[string]int
	nextIdx    int
}

// NewRefereeAssigner builds an assigner over the given referee IDs and
// their advertised concurrency caps.
func NewRefereeAssigner(refereeIDs []string, maxConcurrent map[string]int) *RefereeAssigner {
	ids := make([]string, len(refereeIDs))
	copy(ids, refereeIDs)
	sort.Strings(ids)
	return &RefereeAssigner{refereeIDs: ids, maxLoad: maxConcurrent}
}

// Assign builds one ScheduledRound from a round's pairings, cycling through
// referees and skipping any already at their max concurrent load within
// this round while another is still under its cap; when all are at
// capacity the match goes to the least-loaded referee (see pick).
func (a *RefereeAssigner) Assign(roundID string, pairings [][2]string, matchIDFor func(a, b string) string) (domain.ScheduledRound, error) {
	if len(a.refereeIDs) == 0 {
		return domain.ScheduledRound{}, fmt.Errorf("scheduler: no referees registered")
	}

	inRoundLoad := make(map[string]int, len(a.refereeIDs))
	matches := make([]domain.ScheduledMatch, 0, len(pairings))

	for _, pair := range pairings {
		ref, err := a.pick(inRoundLoad)
		if err != nil {
			return domain.ScheduledRound{}, err
		}
		inRoundLoad[ref]++
		matches = append(matches, domain.ScheduledMatch{
			PlayerAID: pair[0],
			PlayerBID: pair[1],
			RefereeID: ref,
			MatchID:   matchIDFor(pair[0], pair[1]),
		})
	}
	return domain.ScheduledRound{RoundID: roundID, Matches: matches}, nil
}

// pick hands out the next referee in round-robin order among those still
// under their max_concurrent_matches cap for this round. When every referee
// is already at capacity, the round has more matches than the pool can run
// concurrently; rather than failing the round, pick falls back to the
// least-loaded referee so the overflow match is queued onto it and runs
// sequentially once that referee's earlier matches finish (spec.md §4.6
// "scheduled sequentially within the same logical round").
func (a *RefereeAssigner) pick(inRoundLoad map[string]int) (string, error) {
	n := len(a.refereeIDs)
	for i := 0; i < n; i++ {
		idx := (a.nextIdx + i) % n
		ref := a.refereeIDs[idx]
		limit := a.maxLoad[ref]
		if limit <= 0 {
			limit = 1
		}
		if inRoundLoad[ref] < limit {
			a.nextIdx = (idx + 1) % n
			return ref, nil
		}
	}

	best := -1
	for i := 0; i < n; i++ {
		idx := (a.nextIdx + i) % n
		if best == -1 || inRoundLoad[a.refereeIDs[idx]] < inRoundLoad[a.refereeIDs[best]] {
			best = idx
		}
	}
	a.nextIdx = (best + 1) % n
	return a.refereeIDs[best], nil
}
