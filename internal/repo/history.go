package repo

import (
	"path/filepath"
	"sync"

	"github.com/evenodd-league/agents/internal/domain"
)

// HistoryRepo owns one append-only history file per player (spec.md §3:
// "each player owns its own history").
type HistoryRepo struct {
	mu   sync.Mutex
	root string
}

// NewHistoryRepo roots player histories under dir.
func NewHistoryRepo(dir string) *HistoryRepo {
	return &HistoryRepo{root: dir}
}

func (r *HistoryRepo) path(playerID string) string {
	return filepath.Join(r.root, playerID+".json")
}

// Append records one completed match and updates running stats.
func (r *HistoryRepo) Append(playerID string, rec domain.PlayerHistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var h domain.PlayerHistory
	found, err := readJSON(r.path(playerID), &h)
	if err != nil {
		return err
	}
	if !found {
		h = domain.PlayerHistory{PlayerID: playerID, OpponentPatterns: map[string]domain.OpponentPattern{}}
	}
	if h.OpponentPatterns == nil {
		h.OpponentPatterns = map[string]domain.OpponentPattern{}
	}

	h.Matches = append(h.Matches, rec)
	h.Stats.Played++
	h.Stats.Points += rec.Points
	switch rec.Result {
	case "WIN":
		h.Stats.Wins++
	case "DRAW":
		h.Stats.Draws++
	case "LOSS":
		h.Stats.Losses++
	}

	pattern := h.OpponentPatterns[rec.OpponentID]
	switch rec.OpponentChoice {
	case "even":
		pattern.EvenCount++
	case "odd":
		pattern.OddCount++
	}
	h.OpponentPatterns[rec.OpponentID] = pattern

	return writeJSONAtomic(r.path(playerID), h)
}

// Get loads a player's history, or an empty one if none exists yet.
func (r *HistoryRepo) Get(playerID string) (domain.PlayerHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var h domain.PlayerHistory
	found, err := readJSON(r.path(playerID), &h)
	if err != nil {
		return domain.PlayerHistory{}, err
	}
	if !found {
		return domain.PlayerHistory{PlayerID: playerID}, nil
	}
	return h, nil
}
