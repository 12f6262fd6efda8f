// Package rules turns form input into persisted validation rule sets and
// checks rule sets, default values and parent conditions before a
// configuration is submitted.
package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/alfredjeanlab/confengine/internal/model"
)

// Section names the part of a submission a check belongs to.
type Section string

const (
	SectionValidationRules  Section = "validation_rules"
	SectionDefaultValue     Section = "default_value"
	SectionParentConditions Section = "parent_conditions"
)

// SectionError reports the first failing check of a submission.
type SectionError struct {
	Section Section
	Message string
}

func (e *SectionError) Error() string {
	return string(e.Section) + ": " + e.Message
}

func sectionErr(s Section, format string, args ...any) error {
	return &SectionError{Section: s, Message: fmt.Sprintf(format, args...)}
}

// Form holds the user-entered rule parameters for one data type. Fields
// irrelevant to DataType are ignored. Empty strings mean "not set".
type Form struct {
	DataType  model.DataType
	Required  bool
	Regex     string
	Min       string
	Max       string
	StartDate string
	EndDate   string
	Mode      model.ListMode
	Options   []model.ListOption
}

// Evaluate produces the ordered rule set to persist for the form.
func Evaluate(f Form) ([]model.ValidationRule, error) {
	out := []model.ValidationRule{model.Required(f.Required)}

	switch f.DataType {
	case model.DataTypeString:
		if f.Regex != "" {
			if _, err := regexp.Compile(f.Regex); err != nil {
				return nil, sectionErr(SectionValidationRules, "invalid regex: %v", err)
			}
			out = append(out, model.Regex(f.Regex))
		}

	case model.DataTypeNumber:
		lo, hasMin, err := parseNumber("min", f.Min)
		if err != nil {
			return nil, err
		}
		hi, hasMax, err := parseNumber("max", f.Max)
		if err != nil {
			return nil, err
		}
		if hasMin && hasMax && lo > hi {
			return nil, sectionErr(SectionValidationRules, "min (%s) must not be greater than max (%s)", formatNumber(lo), formatNumber(hi))
		}
		if hasMin {
			out = append(out, model.Min(lo))
		}
		if hasMax {
			out = append(out, model.Max(hi))
		}

	case model.DataTypeDate:
		start, hasStart, err := parseDate("start_date", f.StartDate)
		if err != nil {
			return nil, err
		}
		end, hasEnd, err := parseDate("end_date", f.EndDate)
		if err != nil {
			return nil, err
		}
		if hasStart && hasEnd && start.Time().After(end.Time()) {
			return nil, sectionErr(SectionValidationRules, "start_date (%s) must not be after end_date (%s)", start, end)
		}
		if hasStart {
			out = append(out, model.StartDate(start))
		}
		if hasEnd {
			out = append(out, model.EndDate(end))
		}

	case model.DataTypeList:
		mode := f.Mode
		if mode == "" {
			mode = model.ListModeSingle
		}
		if !mode.IsValid() {
			return nil, sectionErr(SectionValidationRules, "invalid list mode %q", mode)
		}
		opts, err := checkOptions(f.Options)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Mode(mode), model.Options(opts...))

	default:
		return nil, sectionErr(SectionValidationRules, "invalid data type %q", f.DataType)
	}

	return out, nil
}

// checkOptions trims every option and requires at least one option, a label
// and a value on each, and unique values. Selections are comma separated, so
// a value may not contain a comma.
func checkOptions(opts []model.ListOption) ([]model.ListOption, error) {
	if len(opts) == 0 {
		return nil, sectionErr(SectionValidationRules, "a list needs at least one option")
	}
	out := make([]model.ListOption, len(opts))
	seen := make(map[string]bool, len(opts))
	for i, o := range opts {
		o.Label = strings.TrimSpace(o.Label)
		o.Value = strings.TrimSpace(o.Value)
		if o.Label == "" || o.Value == "" {
			return nil, sectionErr(SectionValidationRules, "option %d needs both a label and a value", i+1)
		}
		if strings.Contains(o.Value, ",") {
			return nil, sectionErr(SectionValidationRules, "option value %q must not contain a comma", o.Value)
		}
		if seen[o.Value] {
			return nil, sectionErr(SectionValidationRules, "duplicate option value %q", o.Value)
		}
		seen[o.Value] = true
		out[i] = o
	}
	return out, nil
}

func parseNumber(name, s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, false, sectionErr(SectionValidationRules, "%s must be a number, got %q", name, s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, sectionErr(SectionValidationRules, "%s must be a finite number, got %q", name, s)
	}
	return f, true, nil
}

func parseDate(name, s string) (model.DateValue, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.DateValue{}, false, nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return model.DateValue{}, false, sectionErr(SectionValidationRules, "%s must be a date (YYYY-MM-DD), got %q", name, s)
	}
	return d, true, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormOf rebuilds the form that would evaluate to rs. Rule types that do not
// belong to dataType, duplicated rule types and values of the wrong shape are
// reported as errors.
func FormOf(dataType model.DataType, rs []model.ValidationRule) (Form, error) {
	f := Form{DataType: dataType}
	allowed, ok := allowedRules[dataType]
	if !ok {
		return f, sectionErr(SectionValidationRules, "invalid data type %q", dataType)
	}

	seen := make(map[model.RuleType]bool, len(rs))
	for _, r := range rs {
		if !allowed[r.Type] {
			return f, sectionErr(SectionValidationRules, "rule %q does not apply to %s configurations", r.Type, dataType)
		}
		if seen[r.Type] {
			return f, sectionErr(SectionValidationRules, "duplicate rule %q", r.Type)
		}
		seen[r.Type] = true

		var shapeOK bool
		switch v := r.Value.(type) {
		case model.BoolValue:
			f.Required, shapeOK = bool(v), r.Type == model.RuleRequired
		case model.TextValue:
			f.Regex, shapeOK = string(v), r.Type == model.RuleRegex
		case model.NumberValue:
			switch r.Type {
			case model.RuleMin:
				f.Min, shapeOK = formatNumber(float64(v)), true
			case model.RuleMax:
				f.Max, shapeOK = formatNumber(float64(v)), true
			}
		case model.DateValue:
			switch r.Type {
			case model.RuleStartDate:
				f.StartDate, shapeOK = v.String(), true
			case model.RuleEndDate:
				f.EndDate, shapeOK = v.String(), true
			}
		case model.ListMode:
			f.Mode, shapeOK = v, r.Type == model.RuleListMode
		case model.OptionsValue:
			f.Options, shapeOK = []model.ListOption(v), r.Type == model.RuleListOptions
		}
		if !shapeOK {
			return f, sectionErr(SectionValidationRules, "rule %q has a value of the wrong type", r.Type)
		}
	}
	return f, nil
}

var allowedRules = map[model.DataType]map[model.RuleType]bool{
	model.DataTypeString: {model.RuleRequired: true, model.RuleRegex: true},
	model.DataTypeNumber: {model.RuleRequired: true, model.RuleMin: true, model.RuleMax: true},
	model.DataTypeDate:   {model.RuleRequired: true, model.RuleStartDate: true, model.RuleEndDate: true},
	model.DataTypeList:   {model.RuleRequired: true, model.RuleListMode: true, model.RuleListOptions: true},
}

// CheckRuleSet re-checks a rule set received over the wire: only rule types
// of the data type, each at most once, with the same range and option checks
// Evaluate applies.
func CheckRuleSet(dataType model.DataType, rs []model.ValidationRule) error {
	f, err := FormOf(dataType, rs)
	if err != nil {
		return err
	}
	_, err = Evaluate(f)
	return err
}
