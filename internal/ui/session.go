package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"

	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/tree"
)

// ErrUnknownRecord is returned when an id or key is not in the loaded list.
var ErrUnknownRecord = errors.New("configuration not in the loaded list")

// Session is the client-side view state: the loaded records, which of them
// are expanded in the tree, and the record being edited with its parent.
// A Session has a single owner and is not safe for concurrent use.
type Session struct {
	records  []*model.Configuration
	byID     map[string]*model.Configuration
	expanded tree.Set
	current  *model.Configuration
	parent   *model.Configuration
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{byID: map[string]*model.Configuration{}, expanded: tree.NewSet()}
}

// Load replaces the loaded records. Expanded ids that are no longer present
// are dropped, and the selection is re-resolved against the new list.
func (s *Session) Load(records []*model.Configuration) {
	s.records = slices.Clone(records)
	s.byID = make(map[string]*model.Configuration, len(records))
	for _, c := range records {
		s.byID[c.ID] = c
	}
	for id := range s.expanded {
		if _, ok := s.byID[id]; !ok {
			s.expanded.Collapse(id)
		}
	}
	if s.current != nil {
		if err := s.Select(s.current.ID); err != nil {
			s.ClearSelection()
		}
	}
}

// Records returns the loaded records in load order.
func (s *Session) Records() []*model.Configuration { return s.records }

// Rows returns the visible tree rows for the current expansion state.
func (s *Session) Rows() iter.Seq[tree.Row] {
	return tree.Build(s.records, s.expanded)
}

// Find looks a loaded record up by id or key.
func (s *Session) Find(idOrKey string) (*model.Configuration, bool) {
	if c, ok := s.byID[idOrKey]; ok {
		return c, true
	}
	for _, c := range s.records {
		if c.Key == idOrKey {
			return c, true
		}
	}
	return nil, false
}

// Expand marks id expanded. Unknown ids are reported.
func (s *Session) Expand(idOrKey string) error {
	c, ok := s.Find(idOrKey)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecord, idOrKey)
	}
	s.expanded.Expand(c.ID)
	return nil
}

// Collapse marks id collapsed.
func (s *Session) Collapse(id string) { s.expanded.Collapse(id) }

// Toggle flips id's expansion and reports whether it is now expanded.
func (s *Session) Toggle(id string) bool { return s.expanded.Toggle(id) }

// ExpandAll expands every loaded record.
func (s *Session) ExpandAll() { s.expanded.ExpandAll(s.records) }

// CollapseAll collapses every record.
func (s *Session) CollapseAll() { s.expanded = tree.NewSet() }

// IsExpanded reports whether id is expanded.
func (s *Session) IsExpanded(id string) bool { return s.expanded.Has(id) }

// Expanded returns the expanded ids, sorted.
func (s *Session) Expanded() []string {
	ids := make([]string, 0, len(s.expanded))
	for id := range s.expanded {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Select makes the record named by idOrKey current and resolves its parent
// from the loaded list.
func (s *Session) Select(idOrKey string) error {
	c, ok := s.Find(idOrKey)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecord, idOrKey)
	}
	s.current = c
	s.parent = nil
	if c.HasParent() {
		s.parent = s.byID[c.ParentID()]
	}
	return nil
}

// ClearSelection drops the current record.
func (s *Session) ClearSelection() {
	s.current = nil
	s.parent = nil
}

// Current returns the selected record, or nil.
func (s *Session) Current() *model.Configuration { return s.current }

// Parent returns the selected record's parent, or nil for a root or when
// nothing is selected.
func (s *Session) Parent() *model.Configuration { return s.parent }

// ParentOptions lists the loaded records the current record may be moved
// under. With no selection every record is a candidate.
func (s *Session) ParentOptions() []*model.Configuration {
	id := ""
	if s.current != nil {
		id = s.current.ID
	}
	return tree.ParentOptions(s.records, id)
}

// Upsert replaces the loaded record with c's id, or appends c.
func (s *Session) Upsert(c *model.Configuration) {
	if i := slices.IndexFunc(s.records, func(r *model.Configuration) bool { return r.ID == c.ID }); i >= 0 {
		s.records[i] = c
	} else {
		s.records = append(s.records, c)
	}
	s.byID[c.ID] = c
	if s.current != nil && (s.current.ID == c.ID || s.current.ParentID() == c.ID) {
		_ = s.Select(s.current.ID)
	}
}

// Remove drops id from the loaded list. Its children stay, detached, the
// way the server leaves them.
func (s *Session) Remove(id string) {
	s.records = slices.DeleteFunc(s.records, func(r *model.Configuration) bool { return r.ID == id })
	delete(s.byID, id)
	s.expanded.Collapse(id)
	for i, c := range s.records {
		if c.ParentID() == id {
			detached := c.Clone()
			detached.ParentConfigID = nil
			s.records[i] = detached
			s.byID[c.ID] = detached
		}
	}
	switch {
	case s.current == nil:
	case s.current.ID == id:
		s.ClearSelection()
	default:
		_ = s.Select(s.current.ID)
	}
}

// sessionState is the on-disk form of a session between commands.
type sessionState struct {
	Expanded []string `json:"expanded"`
	Current  string   `json:"current,omitempty"`
}

// SaveState writes the expansion state and selection to path.
func (s *Session) SaveState(path string) error {
	st := sessionState{Expanded: s.Expanded()}
	if s.current != nil {
		st.Current = s.current.ID
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// RestoreState reads a state file written by SaveState. It must be called
// after Load; ids that are not loaded are ignored. A missing file is not an
// error.
func (s *Session) RestoreState(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session state: %w", err)
	}
	var st sessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parse session state %s: %w", path, err)
	}
	for _, id := range st.Expanded {
		if _, ok := s.byID[id]; ok {
			s.expanded.Expand(id)
		}
	}
	if st.Current != "" {
		if err := s.Select(st.Current); err != nil {
			s.ClearSelection()
		}
	}
	return nil
}
