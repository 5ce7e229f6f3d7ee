// Package worklog is the instance's local work record: the queue of
// current work items surfaced by wake signals or synthesized on idle
// ticks, plus a history of tick outcomes. Items are consumed downstream
// and archived; this package only records them.
package worklog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Item kinds. KindSelfGenerated marks momentum work manufactured by the
// idle synthesizer; consumers use it to tell filler from real signals.
const (
	KindWork          = "work"
	KindTodo          = "todo"
	KindCoordination  = "coordination"
	KindSelfGenerated = "self_generated"
)

// Item is a single unit of pending work.
type Item struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// SelfGenerated reports whether the item is synthesized momentum work.
func (i Item) SelfGenerated() bool { return i.Kind == KindSelfGenerated }

// TickRecord is one history entry per loop tick.
type TickRecord struct {
	Cycle      int64     `json:"cycle"`
	Mode       string    `json:"mode"`
	Outcome    string    `json:"outcome"`
	Restarted  bool      `json:"restarted"`
	DenyReason string    `json:"deny_reason,omitempty"`
	At         time.Time `json:"at"`
}

// Store handles local worklog storage for one instance.
type Store struct {
	basePath string
	instance string
}

// NewStore creates a Store rooted at the project base path. Files live in
// .pacer/worklog/<instance>/.
func NewStore(basePath, instance string) *Store {
	return &Store{basePath: basePath, instance: instance}
}

func (s *Store) dir() string {
	return filepath.Join(s.basePath, ".pacer", "worklog", sanitize(s.instance))
}

// sanitize converts an instance ID to a safe directory name.
func sanitize(instance string) string {
	result := make([]byte, len(instance))
	for i := 0; i < len(instance); i++ {
		switch instance[i] {
		case '/', ':', '%':
			result[i] = '-'
		default:
			result[i] = instance[i]
		}
	}
	return string(result)
}

// Current reads the pending work items (empty slice if none recorded yet).
func (s *Store) Current() ([]Item, error) {
	path := filepath.Join(s.dir(), "current.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Item{}, nil
		}
		return nil, fmt.Errorf("failed to read work items: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse work items: %w", err)
	}
	return items, nil
}

// Add appends items to the pending work record.
func (s *Store) Add(items []Item) error {
	if len(items) == 0 {
		return nil
	}
	current, err := s.Current()
	if err != nil {
		return err
	}
	return s.write("current.json", append(current, items...))
}

// Archive moves every pending item into archive.json and clears the
// current record.
func (s *Store) Archive() error {
	current, err := s.Current()
	if err != nil {
		return err
	}
	if len(current) == 0 {
		return nil
	}

	archived, err := s.readArchive()
	if err != nil {
		return err
	}
	if err := s.write("archive.json", append(archived, current...)); err != nil {
		return err
	}
	return s.write("current.json", []Item{})
}

func (s *Store) readArchive() ([]Item, error) {
	data, err := os.ReadFile(filepath.Join(s.dir(), "archive.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return []Item{}, nil
		}
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse archive: %w", err)
	}
	return items, nil
}

// History reads the tick history (empty slice if none recorded yet).
func (s *Store) History() ([]TickRecord, error) {
	path := filepath.Join(s.dir(), "history.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []TickRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var records []TickRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return records, nil
}

// RecordTick appends one tick outcome to the history.
func (s *Store) RecordTick(rec TickRecord) error {
	records, err := s.History()
	if err != nil {
		return err
	}
	return s.write("history.json", append(records, rec))
}

func (s *Store) write(name string, v any) error {
	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create worklog directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir(), name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
