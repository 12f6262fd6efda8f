package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/rules"
)

// recordFlags are the record fields shared by create and update.
type recordFlags struct {
	label        string
	description  string
	dataType     string
	defaultValue string
	parent       string

	required  bool
	regex     string
	min       string
	max       string
	startDate string
	endDate   string
	mode      string
	options   []string

	conditions   []string
	translations []string
}

// ruleFlagNames are the flags that feed the rule set.
var ruleFlagNames = []string{"required", "regex", "min", "max", "start", "end", "mode", "option"}

func addRecordFlags(cmd *cobra.Command, f *recordFlags) {
	fl := cmd.Flags()
	fl.StringVar(&f.label, "label", "", "display label")
	fl.StringVar(&f.description, "description", "", "description")
	fl.StringVarP(&f.dataType, "type", "t", "", "data type (string, number, date, list)")
	fl.StringVar(&f.defaultValue, "default", "", "default value")
	fl.StringVar(&f.parent, "parent", "", "parent configuration id or key")

	fl.BoolVar(&f.required, "required", false, "a value is required")
	fl.StringVar(&f.regex, "regex", "", "pattern string values must match")
	fl.StringVar(&f.min, "min", "", "lowest allowed number")
	fl.StringVar(&f.max, "max", "", "highest allowed number")
	fl.StringVar(&f.startDate, "start", "", "earliest allowed date (YYYY-MM-DD)")
	fl.StringVar(&f.endDate, "end", "", "latest allowed date (YYYY-MM-DD)")
	fl.StringVar(&f.mode, "mode", "", "list selection mode (single, multi)")
	fl.StringArrayVar(&f.options, "option", nil, "list option as label=value (repeatable)")

	fl.StringArrayVar(&f.conditions, "condition", nil, "parent condition as op:value:default (repeatable)")
	fl.StringArrayVar(&f.translations, "translation", nil, "translation as lang:label[:description] (repeatable)")
}

// form builds the rule form for dataType from the flags alone.
func (f *recordFlags) form(dataType model.DataType) (rules.Form, error) {
	opts, err := parseOptions(f.options)
	if err != nil {
		return rules.Form{}, err
	}
	return rules.Form{
		DataType:  dataType,
		Required:  f.required,
		Regex:     f.regex,
		Min:       f.min,
		Max:       f.max,
		StartDate: f.startDate,
		EndDate:   f.endDate,
		Mode:      model.ListMode(f.mode),
		Options:   opts,
	}, nil
}

// overlay copies the rule flags the user set onto base.
func (f *recordFlags) overlay(base rules.Form, changed func(string) bool) (rules.Form, error) {
	if changed("required") {
		base.Required = f.required
	}
	if changed("regex") {
		base.Regex = f.regex
	}
	if changed("min") {
		base.Min = f.min
	}
	if changed("max") {
		base.Max = f.max
	}
	if changed("start") {
		base.StartDate = f.startDate
	}
	if changed("end") {
		base.EndDate = f.endDate
	}
	if changed("mode") {
		base.Mode = model.ListMode(f.mode)
	}
	if changed("option") {
		opts, err := parseOptions(f.options)
		if err != nil {
			return base, err
		}
		base.Options = opts
	}
	return base, nil
}

func parseDataType(s string) (model.DataType, error) {
	dt := model.DataType(strings.ToLower(strings.TrimSpace(s)))
	if !dt.IsValid() {
		return "", fmt.Errorf("invalid data type %q (must be string, number, date or list)", s)
	}
	return dt, nil
}

// parseOptions reads "label=value" pairs. A bare word is used as both.
func parseOptions(pairs []string) ([]model.ListOption, error) {
	var out []model.ListOption
	for _, p := range pairs {
		label, value, ok := strings.Cut(p, "=")
		if !ok {
			value = label
		}
		label, value = strings.TrimSpace(label), strings.TrimSpace(value)
		if label == "" || value == "" {
			return nil, fmt.Errorf("invalid option %q: expected label=value", p)
		}
		out = append(out, model.ListOption{Label: label, Value: value})
	}
	return out, nil
}

// parseConditions reads "op:value:default" triples. The value may hold
// commas for between and in.
func parseConditions(values []string) ([]model.ParentCondition, error) {
	var out []model.ParentCondition
	for _, s := range values {
		parts := strings.SplitN(s, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid condition %q: expected op:value:default", s)
		}
		op := model.Operator(strings.TrimSpace(parts[0]))
		if !op.IsValid() {
			return nil, fmt.Errorf("invalid condition %q: unknown operator %q", s, op)
		}
		out = append(out, model.ParentCondition{
			Operator:     op,
			Value:        strings.TrimSpace(parts[1]),
			DefaultValue: strings.TrimSpace(parts[2]),
		})
	}
	return out, nil
}

// parseTranslations reads "lang:label[:description]" entries.
func parseTranslations(values []string) ([]model.Translation, error) {
	var out []model.Translation
	for _, s := range values {
		parts := strings.SplitN(s, ":", 3)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("invalid translation %q: expected lang:label[:description]", s)
		}
		t := model.Translation{
			Language: model.CanonicalLanguage(parts[0]),
			Label:    strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			t.Description = strings.TrimSpace(parts[2])
		}
		out = append(out, t)
	}
	return out, nil
}
