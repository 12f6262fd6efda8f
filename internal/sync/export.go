package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version            string    `json:"version"`
	Type               string    `json:"type"`
	Timestamp          time.Time `json:"timestamp"`
	ConfigurationCount int       `json:"configuration_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every configuration in the store as JSONL to w.
// Parents are written before their children; siblings are sorted by key.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	configs, _, err := s.ListConfigurations(ctx, model.ConfigurationFilter{})
	if err != nil {
		return fmt.Errorf("list configurations: %w", err)
	}
	configs = parentsFirst(configs)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:            "1",
		Type:               "header",
		Timestamp:          time.Now().UTC(),
		ConfigurationCount: len(configs),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, c := range configs {
		if err := enc.Encode(record{Type: "configuration", Data: c}); err != nil {
			return fmt.Errorf("encode configuration %s: %w", c.Key, err)
		}
	}
	return nil
}

// parentsFirst orders configs so that a record never precedes its parent.
// Records whose parent is missing are treated as roots.
func parentsFirst(configs []*model.Configuration) []*model.Configuration {
	byID := make(map[string]*model.Configuration, len(configs))
	for _, c := range configs {
		byID[c.ID] = c
	}
	children := make(map[string][]*model.Configuration)
	var roots []*model.Configuration
	for _, c := range configs {
		if p := c.ParentID(); p != "" && byID[p] != nil && p != c.ID {
			children[p] = append(children[p], c)
			continue
		}
		roots = append(roots, c)
	}

	byKey := func(cs []*model.Configuration) {
		sort.Slice(cs, func(i, j int) bool { return cs[i].Key < cs[j].Key })
	}

	out := make([]*model.Configuration, 0, len(configs))
	seen := make(map[string]bool, len(configs))
	var walk func([]*model.Configuration)
	walk = func(level []*model.Configuration) {
		byKey(level)
		for _, c := range level {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
			walk(children[c.ID])
		}
	}
	walk(roots)

	// Anything unreached sits on a parent cycle.
	var rest []*model.Configuration
	for _, c := range configs {
		if !seen[c.ID] {
			rest = append(rest, c)
		}
	}
	walk(rest)
	return out
}
