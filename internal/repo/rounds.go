package repo

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/evenodd-league/agents/internal/domain"
)

// RoundsRepo owns the single rounds-journal file per league.
type RoundsRepo struct {
	mu   sync.Mutex
	root string
}

// NewRoundsRepo roots rounds journals under dir.
func NewRoundsRepo(dir string) *RoundsRepo {
	return &RoundsRepo{root: dir}
}

func (r *RoundsRepo) path(leagueID string) string {
	return filepath.Join(r.root, leagueID, "rounds.json")
}

func (r *RoundsRepo) load(leagueID string) (domain.RoundsJournal, error) {
	var j domain.RoundsJournal
	found, err := readJSON(r.path(leagueID), &j)
	if err != nil {
		return domain.RoundsJournal{}, err
	}
	if !found {
		j = domain.RoundsJournal{LeagueID: leagueID}
	}
	return j, nil
}

func (r *RoundsRepo) save(j domain.RoundsJournal) error {
	return writeJSONAtomic(r.path(j.LeagueID), j)
}

// AddRound appends a newly scheduled round to the journal.
func (r *RoundsRepo) AddRound(leagueID string, round domain.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, err := r.load(leagueID)
	if err != nil {
		return err
	}
	j.Rounds = append(j.Rounds, round)
	return r.save(j)
}

// MarkMatchCompleted records a match's result within its round.
func (r *RoundsRepo) MarkMatchCompleted(leagueID, roundID, matchID string, result domain.MatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, err := r.load(leagueID)
	if err != nil {
		return err
	}
	for ri := range j.Rounds {
		if j.Rounds[ri].RoundID != roundID {
			continue
		}
		for mi := range j.Rounds[ri].Matches {
			if j.Rounds[ri].Matches[mi].MatchID == matchID {
				result := result
				j.Rounds[ri].Matches[mi].Result = &result
				return r.save(j)
			}
		}
		return fmt.Errorf("repo: match %s not found in round %s", matchID, roundID)
	}
	return fmt.Errorf("repo: round %s not found", roundID)
}

// MarkRoundCompleted stamps a round COMPLETE with its end time.
func (r *RoundsRepo) MarkRoundCompleted(leagueID, roundID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, err := r.load(leagueID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for ri := range j.Rounds {
		if j.Rounds[ri].RoundID == roundID {
			j.Rounds[ri].Status = domain.RoundComplete
			j.Rounds[ri].EndTime = &now
			return r.save(j)
		}
	}
	return fmt.Errorf("repo: round %s not found", roundID)
}

// Get returns the full journal for a league.
func (r *RoundsRepo) Get(leagueID string) (domain.RoundsJournal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(leagueID)
}

// RoundComplete reports whether every match in roundID has a recorded
// result (spec.md §4.9 "round_complete" predicate).
func (r *RoundsRepo) RoundComplete(leagueID, roundID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, err := r.load(leagueID)
	if err != nil {
		return false, err
	}
	for _, round := range j.Rounds {
		if round.RoundID != roundID {
			continue
		}
		for _, m := range round.Matches {
			if m.Result == nil {
				return false, nil
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("repo: round %s not found", roundID)
}

// AlreadyReported reports whether matchID already has a result recorded
// anywhere in the journal (spec.md §4.9 idempotence on duplicate reports).
func (r *RoundsRepo) AlreadyReported(leagueID, matchID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, err := r.load(leagueID)
	if err != nil {
		return false, err
	}
	for _, round := range j.Rounds {
		for _, m := range round.Matches {
			if m.MatchID == matchID {
				return m.Result != nil, nil
			}
		}
	}
	return false, nil
}
