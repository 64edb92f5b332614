package permission

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptline-ai/promptline/internal/logging"
)

// ErrNotDurable is returned when a once-scoped decision is handed to the
// store. Only AllowAlways/DenyAlways records are persisted.
var ErrNotDurable = errors.New("decision is not durable")

// storeDocument is the on-disk shape. Unknown fields in the file are
// ignored on load so hand-edited or future files never hard-fail.
type storeDocument struct {
	Records []Record `yaml:"records"`
}

// Store is the durable permission store: a YAML document mapping permission
// keys to always-decisions, loaded once at startup and flushed synchronously
// on every durable decision. Operators may hand-edit the file; edits are
// authoritative on (re)load.
type Store struct {
	path string

	mu      sync.Mutex
	records map[Key]Record
	order   []Key // serialization order, insertion-stable for readability
	lock    *instanceLock
}

// OpenStore loads the store at path. A missing file yields an empty store.
// An unreadable or corrupt file also yields an empty store (fail closed:
// every decision degrades to ask-again) with a logged warning. A held
// instance lock is reported the same way.
func OpenStore(path string) *Store {
	s := &Store{
		path:    path,
		records: make(map[Key]Record),
		lock:    newInstanceLock(path),
	}

	if !s.lock.TryAcquire() {
		logging.Warn().Str("path", path).
			Msg("permission store is locked by another instance; decisions will still persist")
	}

	if err := s.reload(); err != nil {
		logging.Warn().Err(err).Str("path", path).
			Msg("permission store unreadable; starting with an empty store (fail closed)")
	}

	return s
}

// reload replaces in-memory state with the file contents.
func (s *Store) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.records = make(map[Key]Record)
			s.order = nil
			return nil
		}
		return fmt.Errorf("read permission store: %w", err)
	}

	var doc storeDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse permission store: %w", err)
	}

	records := make(map[Key]Record, len(doc.Records))
	var order []Key
	for _, r := range doc.Records {
		if !r.Decision.Durable() {
			// Hand-edited once-decisions have no durable meaning; drop them.
			logging.Warn().Str("key", r.Key().String()).Str("decision", string(r.Decision)).
				Msg("ignoring non-durable record in permission store")
			continue
		}
		if _, exists := records[r.Key()]; !exists {
			order = append(order, r.Key())
		}
		records[r.Key()] = r
	}

	s.records = records
	s.order = order
	return nil
}

// Reload re-reads the file, treating hand edits as authoritative.
func (s *Store) Reload() error {
	return s.reload()
}

// Lookup returns the stored record for a key.
func (s *Store) Lookup(key Key) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	return r, ok
}

// Records returns all records in serialization order.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.records[k])
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Upsert stores a durable record and flushes synchronously. The write must
// complete (or error) before the caller proceeds, so a crash between
// decision and write degrades to ask-again rather than a silent grant.
func (s *Store) Upsert(r Record) error {
	if !r.Decision.Durable() {
		return ErrNotDurable
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	if _, exists := s.records[r.Key()]; !exists {
		s.order = append(s.order, r.Key())
	}
	s.records[r.Key()] = r
	s.mu.Unlock()

	return s.Flush()
}

// Remove drops records. With scope == "" every record for the tool goes;
// with tool == "" the whole store is cleared. Returns the number removed.
func (s *Store) Remove(tool, scope string) (int, error) {
	s.mu.Lock()
	removed := 0
	var kept []Key
	for _, k := range s.order {
		drop := (tool == "" || k.Tool == tool) && (scope == "" || k.Scope == scope)
		if drop {
			delete(s.records, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	s.order = kept
	s.mu.Unlock()

	if removed == 0 {
		return 0, nil
	}
	return removed, s.Flush()
}

// Flush writes the document atomically: temp file in the same directory,
// then rename.
func (s *Store) Flush() error {
	s.mu.Lock()
	doc := storeDocument{Records: make([]Record, 0, len(s.order))}
	for _, k := range s.order {
		doc.Records = append(doc.Records, s.records[k])
	}
	s.mu.Unlock()

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal permission store: %w", err)
	}

	header := []byte("# promptline permission policy. One record per tool/scope.\n" +
		"# Edit freely; records are reloaded on change and hand edits win.\n")
	data = append(header, data...)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write permission store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace permission store: %w", err)
	}

	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Close releases the instance lock.
func (s *Store) Close() {
	s.lock.Release()
}
