// Package tree flattens a list of configurations into parent-ordered rows.
package tree

import (
	"iter"

	"github.com/alfredjeanlab/confengine/internal/model"
)

// Row is one visible line of the tree.
type Row struct {
	Config      *model.Configuration
	Depth       int
	HasChildren bool
}

// Set is a set of configuration ids, typically the expanded records.
type Set map[string]struct{}

// NewSet returns a set holding ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set is empty.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Expand(id string)   { s[id] = struct{}{} }
func (s Set) Collapse(id string) { delete(s, id) }

// Toggle flips id and reports whether it is now expanded.
func (s Set) Toggle(id string) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// ExpandAll adds every record that has at least one child in records.
func (s Set) ExpandAll(records []*model.Configuration) {
	for id := range index(records).children {
		s[id] = struct{}{}
	}
}

type forest struct {
	roots    []*model.Configuration
	children map[string][]*model.Configuration
}

// index groups records under their parents. A record whose parent is not in
// records is a root.
func index(records []*model.Configuration) forest {
	present := make(map[string]bool, len(records))
	for _, c := range records {
		present[c.ID] = true
	}
	f := forest{children: make(map[string][]*model.Configuration)}
	for _, c := range records {
		if p := c.ParentID(); p != "" && present[p] {
			f.children[p] = append(f.children[p], c)
			continue
		}
		f.roots = append(f.roots, c)
	}
	return f
}

// Build yields the visible rows for records: roots in input order, each
// followed by its children (in input order, recursively) when its id is in
// expanded. A record is yielded at most once, so cyclic parent references
// terminate; records reachable only through a cycle are not yielded.
func Build(records []*model.Configuration, expanded Set) iter.Seq[Row] {
	f := index(records)
	return func(yield func(Row) bool) {
		visited := make(map[string]bool, len(records))
		var walk func(c *model.Configuration, depth int) bool
		walk = func(c *model.Configuration, depth int) bool {
			if visited[c.ID] {
				return true
			}
			visited[c.ID] = true
			kids := f.children[c.ID]
			if !yield(Row{Config: c, Depth: depth, HasChildren: len(kids) > 0}) {
				return false
			}
			if !expanded.Has(c.ID) {
				return true
			}
			for _, k := range kids {
				if !walk(k, depth+1) {
					return false
				}
			}
			return true
		}
		for _, r := range f.roots {
			if !walk(r, 0) {
				return
			}
		}
	}
}
