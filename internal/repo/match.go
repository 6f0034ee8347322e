package repo

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/evenodd-league/agents/internal/domain"
)

// MatchRepo owns one match record file per match, under the referee that
// adjudicates it (spec.md §3: "the refereeing agent owns its own match
// records").
type MatchRepo struct {
	mu   sync.Mutex
	root string
}

// NewMatchRepo roots match records under dir.
func NewMatchRepo(dir string) *MatchRepo {
	return &MatchRepo{root: dir}
}

func (r *MatchRepo) path(matchID string) string {
	return filepath.Join(r.root, matchID+".json")
}

// Create persists a newly assigned match in the CREATED state.
func (r *MatchRepo) Create(m domain.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return writeJSONAtomic(r.path(m.MatchID), m)
}

// Get loads a match record.
func (r *MatchRepo) Get(matchID string) (domain.Match, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var m domain.Match
	found, err := readJSON(r.path(matchID), &m)
	return m, found, err
}

// AppendTransition appends a lifecycle entry and updates the match's
// current state (spec.md §3 "lifecycle is an append-only list").
func (r *MatchRepo) AppendTransition(matchID string, state domain.MatchState, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, found, err := r.getLocked(matchID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("repo: match %s not found", matchID)
	}
	m.State = state
	m.Lifecycle = append(m.Lifecycle, domain.LifecycleEntry{State: state, Timestamp: ts})
	return writeJSONAtomic(r.path(matchID), m)
}

// AppendTranscript appends one protocol-exchange record.
func (r *MatchRepo) AppendTranscript(matchID string, entry domain.TranscriptEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, found, err := r.getLocked(matchID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("repo: match %s not found", matchID)
	}
	entry.Seq = len(m.Transcript) + 1
	m.Transcript = append(m.Transcript, entry)
	return writeJSONAtomic(r.path(matchID), m)
}

// SaveResult records the terminal result exactly once per match.
func (r *MatchRepo) SaveResult(matchID string, result domain.MatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, found, err := r.getLocked(matchID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("repo: match %s not found", matchID)
	}
	if m.Result != nil {
		return nil // idempotent: exactly one result per match (spec.md §3 invariant)
	}
	m.Result = &result
	return writeJSONAtomic(r.path(matchID), m)
}

func (r *MatchRepo) getLocked(matchID string) (domain.Match, bool, error) {
	var m domain.Match
	found, err := readJSON(r.path(matchID), &m)
	return m, found, err
}
