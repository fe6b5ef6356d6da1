// Package runstate holds the shared context of one task run. Components read
// immutable Snapshots and describe their changes as Deltas; the orchestrator is
// the only caller of Apply.
package runstate

import (
	"fmt"
	"strings"
	"sync"
)

// EntryKind classifies a history entry.
type EntryKind string

const (
	KindAction      EntryKind = "action"
	KindObservation EntryKind = "observation"
	KindError       EntryKind = "error"
	KindNote        EntryKind = "note"
)

// HistoryEntry is one line of the step history.
type HistoryEntry struct {
	Kind       EntryKind `json:"kind"`
	Capability string    `json:"capability,omitempty"`
	Text       string    `json:"text"`
}

func (e HistoryEntry) String() string {
	if e.Capability == "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Text)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Capability, e.Text)
}

// Snapshot is a point-in-time copy of the run context. Mutating it does not
// affect the store.
type Snapshot struct {
	CurrentURL  string         `json:"current_url"`
	UserTask    string         `json:"user_task"`
	CurrentGoal string         `json:"current_goal"`
	StepHistory []HistoryEntry `json:"step_history"`
}

// Delta names the fields a component wants changed. Nil scalars are left
// alone; History is appended in order.
type Delta struct {
	CurrentURL  *string
	UserTask    *string
	CurrentGoal *string
	History     []HistoryEntry
}

// IsEmpty reports whether applying d would change nothing.
func (d Delta) IsEmpty() bool {
	return d.CurrentURL == nil && d.UserTask == nil && d.CurrentGoal == nil && len(d.History) == 0
}

// Merge returns a delta equivalent to applying d and then other.
func (d Delta) Merge(other Delta) Delta {
	out := d
	if other.CurrentURL != nil {
		out.CurrentURL = other.CurrentURL
	}
	if other.UserTask != nil {
		out.UserTask = other.UserTask
	}
	if other.CurrentGoal != nil {
		out.CurrentGoal = other.CurrentGoal
	}
	out.History = append(append([]HistoryEntry(nil), d.History...), other.History...)
	return out
}

// Append adds history entries to d.
func (d *Delta) Append(entries ...HistoryEntry) {
	d.History = append(d.History, entries...)
}

// WithCurrentURL is a delta setting only the current URL.
func WithCurrentURL(u string) Delta { return Delta{CurrentURL: &u} }

// WithCurrentGoal is a delta setting only the current goal.
func WithCurrentGoal(g string) Delta { return Delta{CurrentGoal: &g} }

// WithUserTask is a delta setting only the user task.
func WithUserTask(t string) Delta { return Delta{UserTask: &t} }

// Note is a delta appending a single note entry.
func Note(text string) Delta {
	return Delta{History: []HistoryEntry{{Kind: KindNote, Text: text}}}
}

// Store is the mutable run context. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state Snapshot
}

// NewStore starts a fresh context for a task.
func NewStore(userTask string) *Store {
	return &Store{state: Snapshot{UserTask: userTask}}
}

// Snapshot returns a copy of the current context.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.StepHistory = append([]HistoryEntry(nil), s.state.StepHistory...)
	return out
}

// Apply overwrites the scalars named by d and appends its history, atomically.
func (s *Store) Apply(d Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.CurrentURL != nil {
		s.state.CurrentURL = *d.CurrentURL
	}
	if d.UserTask != nil {
		s.state.UserTask = *d.UserTask
	}
	if d.CurrentGoal != nil {
		s.state.CurrentGoal = *d.CurrentGoal
	}
	s.state.StepHistory = append(s.state.StepHistory, d.History...)
}

// RenderHistory formats the step history one entry per line.
func (s Snapshot) RenderHistory() string {
	if len(s.StepHistory) == 0 {
		return "(empty)"
	}
	var b strings.Builder
	for i, e := range s.StepHistory {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e)
	}
	return strings.TrimRight(b.String(), "\n")
}
