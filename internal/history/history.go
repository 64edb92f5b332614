// Package history persists run transcripts so past tasks can be
// reviewed after the fact.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when a transcript does not exist.
var ErrNotFound = errors.New("transcript not found")

// StepRecord is one step of a saved transcript.
type StepRecord struct {
	Kind    string `json:"kind"`
	Text    string `json:"text,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Args    string `json:"args,omitempty"`
	Success bool   `json:"success,omitempty"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Transcript is one complete run.
type Transcript struct {
	ID        string       `json:"id"`
	Task      string       `json:"task"`
	Outcome   string       `json:"outcome"`
	Summary   string       `json:"summary,omitempty"`
	StartedAt time.Time    `json:"startedAt"`
	EndedAt   time.Time    `json:"endedAt"`
	Steps     []StepRecord `json:"steps"`
}

// Store reads and writes transcripts under a base directory, one JSON
// file per run. ULID file names keep lexical order chronological.
type Store struct {
	dir string
}

// NewStore creates a transcript store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes the transcript atomically and returns its ID.
func (s *Store) Save(t *Transcript) (string, error) {
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}

	path := s.path(t.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return t.ID, nil
}

// Load reads one transcript by ID.
func (s *Store) Load(id string) (*Transcript, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("corrupt transcript %s: %w", id, err)
	}
	return &t, nil
}

// List returns transcript IDs, most recent first, up to limit (all when
// limit <= 0). Unreadable entries are skipped.
func (s *Store) List(limit int) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Latest returns the most recent transcript.
func (s *Store) Latest() (*Transcript, error) {
	ids, err := s.List(1)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return s.Load(ids[0])
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
