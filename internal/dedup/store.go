package dedup

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vkuzmenko/dexleads/internal/model"
)

// Outcome is a terminal pipeline decision for a pair. Once recorded it is
// never revisited: a notified pair is never re-notified, a skipped pair is
// never re-enriched.
type Outcome string

// OutcomeNotified marks a pair whose lead was handed to the notifier.
const OutcomeNotified Outcome = "notified"

// SkipOutcome builds the terminal outcome for a skipped pair.
func SkipOutcome(reason string) Outcome {
	return Outcome("skipped:" + reason)
}

// Entry is one ledger record.
type Entry struct {
	Key           string      `json:"key"`
	Outcome       Outcome     `json:"outcome"`
	FirstSeenAt   time.Time   `json:"first_seen_at"`
	LastUpdatedAt time.Time   `json:"last_updated_at"`
	Lead          *model.Lead `json:"lead,omitempty"`
}

// ConflictError reports an attempt to overwrite an existing terminal outcome
// with a different one. This is a logic-invariant violation, not an
// operational error: it means a pair was processed twice.
type ConflictError struct {
	Key       string
	Existing  Outcome
	Attempted Outcome
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("dedup conflict for %s: recorded %q, attempted %q", e.Key, e.Existing, e.Attempted)
}

// nowFunc is injectable for tests.
var nowFunc = time.Now

// Store is the durable record of every pair ever finalized. Entries are
// appended to a JSON-lines ledger and indexed in memory; the ledger is
// replayed on startup so restarts never re-notify.
type Store struct {
	// mu serializes the write path only. Every terminal write lands in the
	// same append-only file through the same buffered writer, so per-key
	// insert guards would still converge on this one lock for the append;
	// the check-and-insert stays under it to keep the two atomic. The read
	// fast path goes straight to the index, which is internally
	// synchronized.
	mu    sync.Mutex
	index *gocache.Cache
	order []string

	path string
	file *os.File
	w    *bufio.Writer
}

// Open loads the ledger at path, creating it (and its directory) if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	s := &Store{
		index: gocache.New(gocache.NoExpiration, 0),
		path:  path,
	}
	if err := s.replay(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	s.file = file
	s.w = bufio.NewWriter(file)
	return s, nil
}

// replay restores the index from an existing ledger. A duplicate key during
// replay keeps the later record (a crash between flush and fsync can leave a
// repeated line; the outcomes are identical by the write-path invariant).
func (s *Store) replay() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open ledger for replay: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			// A torn final line from a crashed run is tolerated.
			continue
		}
		if _, exists := s.index.Get(entry.Key); !exists {
			s.order = append(s.order, entry.Key)
		}
		s.index.Set(entry.Key, entry, gocache.NoExpiration)
	}
	return scanner.Err()
}

// Close flushes and closes the ledger.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// HasTerminal reports whether the pair already has a terminal outcome. This
// is the idempotency fast path and takes no lock on the write path.
func (s *Store) HasTerminal(key string) bool {
	_, exists := s.index.Get(key)
	return exists
}

// Get returns the entry for a pair, if any.
func (s *Store) Get(key string) (Entry, bool) {
	if v, exists := s.index.Get(key); exists {
		return v.(Entry), true
	}
	return Entry{}, false
}

// RecordTerminal finalizes a pair and reports whether this call performed
// the insert. Recording the identical outcome twice is a no-op that reports
// false; of N concurrent calls with the same outcome exactly one reports
// true, so the caller can gate its side effect (the notification) on it.
// Recording a different outcome fails with *ConflictError and leaves the
// existing record untouched. The lead payload is optional and only kept for
// notified pairs.
func (s *Store) RecordTerminal(key string, outcome Outcome, lead *model.Lead) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, exists := s.index.Get(key); exists {
		existing := v.(Entry)
		if existing.Outcome == outcome {
			return false, nil
		}
		return false, &ConflictError{Key: key, Existing: existing.Outcome, Attempted: outcome}
	}

	now := nowFunc().UTC()
	entry := Entry{
		Key:           key,
		Outcome:       outcome,
		FirstSeenAt:   now,
		LastUpdatedAt: now,
		Lead:          lead,
	}
	if err := s.append(entry); err != nil {
		return false, err
	}
	s.index.Set(key, entry, gocache.NoExpiration)
	s.order = append(s.order, key)
	return true, nil
}

// RecordSkip finalizes a pair as skipped with the given reason.
func (s *Store) RecordSkip(key, reason string) error {
	_, err := s.RecordTerminal(key, SkipOutcome(reason), nil)
	return err
}

// append writes one ledger line and flushes it. Called with mu held.
func (s *Store) append(entry Entry) error {
	if s.file == nil {
		return fmt.Errorf("ledger is closed")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return s.w.Flush()
}

// Len returns the number of finalized pairs.
func (s *Store) Len() int {
	return s.index.ItemCount()
}

// Recent returns up to n most recently finalized entries, newest first.
func (s *Store) Recent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.order) {
		n = len(s.order)
	}
	entries := make([]Entry, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(entries) < n; i-- {
		if v, exists := s.index.Get(s.order[i]); exists {
			entries = append(entries, v.(Entry))
		}
	}
	return entries
}
