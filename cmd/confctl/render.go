package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/tree"
	"github.com/alfredjeanlab/confengine/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// renderTree draws rows with box-drawing connectors. Roots are flush left;
// expandable rows carry ▾ when open and ▸ when closed.
func renderTree(w io.Writer, rows []tree.Row, isExpanded func(id string) bool) {
	last := lastSiblings(rows)
	// open[d] is true while the ancestor at depth d still has siblings below.
	var open []bool
	for i, r := range rows {
		open = append(open[:r.Depth], !last[i])

		var b strings.Builder
		for d := 1; d < r.Depth; d++ {
			if open[d] {
				b.WriteString("│   ")
			} else {
				b.WriteString("    ")
			}
		}
		if r.Depth > 0 {
			if last[i] {
				b.WriteString("└── ")
			} else {
				b.WriteString("├── ")
			}
		}

		switch {
		case !r.HasChildren:
			b.WriteString("  ")
		case isExpanded(r.Config.ID):
			b.WriteString("▾ ")
		default:
			b.WriteString("▸ ")
		}

		c := r.Config
		fmt.Fprintf(&b, "%s  %s  %s", ui.RenderAccent(c.Key), c.Label, ui.RenderDataType(c.DataType))
		if !c.Active {
			b.WriteString("  " + ui.RenderActive(false))
		}
		fmt.Fprintln(w, b.String())
	}
}

// lastSiblings reports, per row, whether no later sibling follows it.
func lastSiblings(rows []tree.Row) []bool {
	last := make([]bool, len(rows))
	var below []bool
	for i := len(rows) - 1; i >= 0; i-- {
		d := rows[i].Depth
		for len(below) <= d {
			below = append(below, false)
		}
		last[i] = !below[d]
		below[d] = true
		for k := d + 1; k < len(below); k++ {
			below[k] = false
		}
	}
	return last
}

// renderConfiguration prints one record. When lang is set and a translation
// matches, its label and description replace the base ones.
func renderConfiguration(w io.Writer, c *model.Configuration, parent *model.Configuration, lang string) {
	label, desc := c.Label, c.Description
	if lang != "" {
		if t, ok := c.BestTranslation(lang); ok {
			label = t.Label + ui.RenderMuted(" ("+t.Language+")")
			if t.Description != "" {
				desc = t.Description
			}
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", c.ID)
	fmt.Fprintf(tw, "Key:\t%s\n", ui.RenderAccent(c.Key))
	fmt.Fprintf(tw, "Label:\t%s\n", label)
	if desc != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", desc)
	}
	fmt.Fprintf(tw, "Type:\t%s\n", ui.RenderDataType(c.DataType))
	if c.DefaultValue != "" {
		fmt.Fprintf(tw, "Default:\t%s\n", c.DefaultValue)
	}
	fmt.Fprintf(tw, "Status:\t%s\n", ui.RenderActive(c.Active))
	switch {
	case parent != nil:
		fmt.Fprintf(tw, "Parent:\t%s %s\n", parent.Key, ui.RenderMuted("("+parent.ID+")"))
	case c.HasParent():
		fmt.Fprintf(tw, "Parent:\t%s\n", c.ParentID())
	}
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(tw, "Created At:\t%s\n", c.CreatedAt.Format(timeLayout))
	}
	if !c.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "Updated At:\t%s\n", c.UpdatedAt.Format(timeLayout))
	}
	tw.Flush()

	if len(c.ValidationRules) > 0 {
		fmt.Fprintln(w, "Rules:")
		for _, r := range c.ValidationRules {
			fmt.Fprintf(w, "  %s: %s\n", r.Type, formatRuleValue(r.Value))
		}
	}
	if len(c.ParentConditions) > 0 {
		fmt.Fprintln(w, "Conditions:")
		for _, pc := range c.ParentConditions {
			fmt.Fprintf(w, "  %s %s -> %s\n", pc.Operator, pc.Value, pc.DefaultValue)
		}
	}
	if len(c.Translations) > 0 {
		fmt.Fprintln(w, "Translations:")
		for _, t := range c.Translations {
			line := "  " + t.Language + "  " + t.Label
			if t.Description != "" {
				line += "  " + ui.RenderMuted(t.Description)
			}
			fmt.Fprintln(w, line)
		}
	}
}

func formatRuleValue(v model.RuleValue) string {
	switch v := v.(type) {
	case model.BoolValue:
		return strconv.FormatBool(bool(v))
	case model.TextValue:
		return string(v)
	case model.NumberValue:
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	case model.DateValue:
		return v.String()
	case model.ListMode:
		return string(v)
	case model.OptionsValue:
		parts := make([]string, len(v))
		for i, o := range v {
			parts[i] = o.Label + "=" + o.Value
		}
		return strings.Join(parts, ", ")
	case model.RawValue:
		return string(v)
	}
	return fmt.Sprint(v)
}

// renderConfigurationTable prints records as a flat table.
func renderConfigurationTable(w io.Writer, configs []*model.Configuration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKEY\tTYPE\tSTATUS\tLABEL")
	for _, c := range configs {
		label := c.Label
		if len(label) > 50 {
			label = label[:47] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Key, c.DataType, activeWord(c.Active), label)
	}
	tw.Flush()
}

func activeWord(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// renderEvents prints the event log, oldest first.
func renderEvents(w io.Writer, evts []*model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTOPIC\tACTOR\tAT")
	for _, e := range evts {
		actor := e.Actor
		if actor == "" {
			actor = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Topic, actor, e.CreatedAt.Format(timeLayout))
	}
	tw.Flush()
}
