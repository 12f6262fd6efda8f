package tree

import "github.com/alfredjeanlab/confengine/internal/model"

// Descendants returns id together with every record below it in records.
func Descendants(records []*model.Configuration, id string) Set {
	f := index(records)
	out := NewSet(id)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, k := range f.children[cur] {
			if out.Has(k.ID) {
				continue
			}
			out.Expand(k.ID)
			queue = append(queue, k.ID)
		}
	}
	return out
}

// ParentOptions returns the records id may be attached to: everything except
// id itself and its descendants. An empty id returns every record.
func ParentOptions(records []*model.Configuration, id string) []*model.Configuration {
	if id == "" {
		return records
	}
	excluded := Descendants(records, id)
	out := make([]*model.Configuration, 0, len(records))
	for _, c := range records {
		if !excluded.Has(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// CreatesCycle reports whether making parentID the parent of id would put id
// on its own ancestor chain.
func CreatesCycle(records []*model.Configuration, id, parentID string) bool {
	if parentID == "" {
		return false
	}
	byID := make(map[string]*model.Configuration, len(records))
	for _, c := range records {
		byID[c.ID] = c
	}
	seen := make(map[string]bool)
	for cur := parentID; cur != "" && !seen[cur]; {
		if cur == id {
			return true
		}
		seen[cur] = true
		c, ok := byID[cur]
		if !ok {
			return false
		}
		cur = c.ParentID()
	}
	return false
}
