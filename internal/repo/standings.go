package repo

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/evenodd-league/agents/internal/domain"
)

// StandingsRepo owns the single standings snapshot file per league
// (spec.md §3: "the manager exclusively owns the standings... journals").
type StandingsRepo struct {
	mu   sync.Mutex
	root string
}

// NewStandingsRepo roots standings snapshots under dir.
func NewStandingsRepo(dir string) *StandingsRepo {
	return &StandingsRepo{root: dir}
}

func (r *StandingsRepo) path(leagueID string) string {
	return filepath.Join(r.root, leagueID, "standings.json")
}

// Load returns the current standings snapshot, or a zero-valued standings
// table if none has been saved yet.
func (r *StandingsRepo) Load(leagueID string) (domain.Standings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s domain.Standings
	found, err := readJSON(r.path(leagueID), &s)
	if err != nil {
		return domain.Standings{}, err
	}
	if !found {
		return domain.Standings{LeagueID: leagueID}, nil
	}
	return s, nil
}

// Save persists s, bumping version and last_updated (spec.md §4.5).
func (r *StandingsRepo) Save(s domain.Standings) (domain.Standings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.Version++
	s.LastUpdated = time.Now().UTC()
	if err := writeJSONAtomic(r.path(s.LeagueID), s); err != nil {
		return domain.Standings{}, err
	}
	return s, nil
}
