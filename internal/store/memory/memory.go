// Package memory implements store.Store in process memory. It backs
// `confctl serve --memory` and the server tests.
package memory

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/store"
)

// Store is a store.Store held in maps guarded by a mutex. Records list in
// creation order.
type Store struct {
	mu      sync.RWMutex
	txMu    sync.Mutex // one transaction at a time
	configs map[string]*model.Configuration
	order   []string
	events  []*model.Event
	nextID  int64
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		configs: make(map[string]*model.Configuration),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateConfiguration(_ context.Context, c *model.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[c.ID]; ok {
		return store.ErrDuplicateKey
	}
	for _, existing := range s.configs {
		if existing.Key == c.Key {
			return store.ErrDuplicateKey
		}
	}
	if err := s.checkParentLocked(c); err != nil {
		return err
	}

	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.configs[c.ID] = c.Clone()
	s.order = append(s.order, c.ID)
	return nil
}

func (s *Store) checkParentLocked(c *model.Configuration) error {
	if !c.HasParent() {
		return nil
	}
	if _, ok := s.configs[c.ParentID()]; !ok {
		return store.ErrParentNotFound
	}
	return nil
}

func (s *Store) GetConfiguration(_ context.Context, id string) (*model.Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c.Clone(), nil
}

func (s *Store) GetConfigurationByKey(_ context.Context, key string) (*model.Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if c := s.configs[id]; c.Key == key {
			return c.Clone(), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) ListConfigurations(_ context.Context, filter model.ConfigurationFilter) ([]*model.Configuration, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []*model.Configuration
	for _, id := range s.order {
		c := s.configs[id]
		if filter.Active != nil && c.Active != *filter.Active {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Key), search) &&
			!strings.Contains(strings.ToLower(c.Label), search) {
			continue
		}
		matched = append(matched, c)
	}

	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	out := make([]*model.Configuration, 0, end-start)
	for _, c := range matched[start:end] {
		out = append(out, c.Clone())
	}
	return out, total, nil
}

func (s *Store) UpdateConfiguration(_ context.Context, c *model.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.configs[c.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if err := s.checkParentLocked(c); err != nil {
		return err
	}

	next := c.Clone()
	next.Key = existing.Key
	next.CreatedAt = existing.CreatedAt
	next.UpdatedAt = s.now()
	s.configs[c.ID] = next
	c.UpdatedAt = next.UpdatedAt
	return nil
}

// DeleteConfiguration removes the record and clears parent_config_id on its
// children, leaving their updated_at as is.
func (s *Store) DeleteConfiguration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.configs, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })

	for _, c := range s.configs {
		if c.ParentID() == id {
			c.ParentConfigID = nil
		}
	}
	return nil
}

func (s *Store) AncestorIDs(_ context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	seen := map[string]bool{id: true}
	cur, ok := s.configs[id]
	for ok && cur.HasParent() {
		p := cur.ParentID()
		ids = append(ids, p)
		if seen[p] {
			break
		}
		seen[p] = true
		cur, ok = s.configs[p]
	}
	return ids, nil
}

func (s *Store) RecordEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = s.now()
	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

func (s *Store) GetEvents(_ context.Context, configurationID string) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Event
	for _, e := range s.events {
		if e.ConfigurationID == configurationID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RunInTransaction snapshots the store, runs fn and restores the snapshot if
// fn fails. Transactions run one at a time; writers outside fn are not
// isolated from it.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapConfigs := make(map[string]*model.Configuration, len(s.configs))
	for id, c := range s.configs {
		snapConfigs[id] = c.Clone()
	}
	snapOrder := slices.Clone(s.order)
	snapEvents := len(s.events)
	s.mu.RUnlock()

	if err := fn(txStore{s}); err != nil {
		s.mu.Lock()
		s.configs = snapConfigs
		s.order = snapOrder
		if snapEvents <= len(s.events) {
			s.events = s.events[:snapEvents]
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore is the store a transaction body sees. Nested transactions join
// the outer one.
type txStore struct {
	*Store
}

func (t txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
