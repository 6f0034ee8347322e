// Package standings implements the league standings engine: applying match
// results to running per-player totals and producing a ranked table
// (spec.md §4.7).
package standings

import (
	"sort"

	"github.com/evenodd-league/agents/internal/domain"
)

// Engine computes standings updates from scoring weights (spec.md §6
// "scoring"). It holds no state of its own; callers own persistence via
// internal/repo.
type Engine struct {
	weights domain.ScoringWeights
}

// New builds an Engine using the given scoring weights.
func New(weights domain.ScoringWeights) *Engine {
	return &Engine{weights: weights}
}

// Initialize seeds a standings table with one zeroed row per player
// (spec.md §4.7 "initialize").
func (e *Engine) Initialize(leagueID string, playerIDs []string) domain.Standings {
	entries := make([]domain.StandingsEntry, 0, len(playerIDs))
	for _, id := range playerIDs {
		entries = append(entries, domain.StandingsEntry{PlayerID: id})
	}
	s := domain.Standings{LeagueID: leagueID, Standings: entries}
	return e.Rank(s)
}

// PointsFor returns the points a player earns for a given match status
// (spec.md §4.7, §6 "scoring"): WIN, DRAW, LOSS, or a technical loss.
func (e *Engine) PointsFor(status string, technicalLoss bool) int {
	if technicalLoss {
		return e.weights.TechnicalLoss
	}
	switch status {
	case "WIN":
		return e.weights.Win
	case "DRAW":
		return e.weights.Draw
	default:
		return e.weights.Loss
	}
}

// Update folds one player's match outcome into the standings table
// (spec.md §4.7 "update"). outcome is one of WIN, DRAW, LOSS as seen from
// playerID's perspective; technicalLoss marks a forfeited match for the
// purpose of scoring (spec.md §4.8 technical-loss rule).
func (e *Engine) Update(s domain.Standings, playerID, outcome string, technicalLoss bool) domain.Standings {
	found := false
	for i := range s.Standings {
		if s.Standings[i].PlayerID != playerID {
			continue
		}
		found = true
		entry := &s.Standings[i]
		entry.Played++
		switch outcome {
		case "WIN":
			entry.Wins++
		case "DRAW":
			entry.Draws++
		default:
			entry.Losses++
		}
		entry.Points += e.PointsFor(outcome, technicalLoss)
	}
	if !found {
		entry := domain.StandingsEntry{PlayerID: playerID, Played: 1}
		switch outcome {
		case "WIN":
			entry.Wins = 1
		case "DRAW":
			entry.Draws = 1
		default:
			entry.Losses = 1
		}
		entry.Points = e.PointsFor(outcome, technicalLoss)
		s.Standings = append(s.Standings, entry)
	}
	return e.Rank(s)
}

// Rank sorts the standings table by points desc, then wins desc, then
// player_id asc, and assigns dense ranks: tied rows (equal points and wins)
// share a rank and the next distinct row takes the next rank, so two tied
// leaders followed by one other row rank 1, 1, 2 (spec.md §4.7 "rank",
// tie-break rules).
func (e *Engine) Rank(s domain.Standings) domain.Standings {
	sort.SliceStable(s.Standings, func(i, j int) bool {
		a, b := s.Standings[i], s.Standings[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.PlayerID < b.PlayerID
	})

	rank := 0
	for i := range s.Standings {
		if i == 0 || !tied(s.Standings[i-1], s.Standings[i]) {
			rank++
		}
		s.Standings[i].Rank = rank
	}
	return s
}

func tied(a, b domain.StandingsEntry) bool {
	return a.Points == b.Points && a.Wins == b.Wins
}

// Champion returns the player_id ranked first once the league has
// finished, per the same tie-break order used by Rank (spec.md §4.7
// "champion").
func (e *Engine) Champion(s domain.Standings) (string, bool) {
	ranked := e.Rank(s)
	if len(ranked.Standings) == 0 {
		return "", false
	}
	return ranked.Standings[0].PlayerID, true
}
