package rules

import (
	"regexp"
	"slices"
	"strings"

	"github.com/alfredjeanlab/confengine/internal/model"
)

// CheckDefault reports whether defaultValue satisfies the rule set. An empty
// default is always accepted.
func CheckDefault(dataType model.DataType, rs []model.ValidationRule, defaultValue string) error {
	if defaultValue == "" {
		return nil
	}
	f, err := FormOf(dataType, rs)
	if err != nil {
		return err
	}
	fail := func(format string, args ...any) error {
		return sectionErr(SectionDefaultValue, format, args...)
	}

	switch dataType {
	case model.DataTypeString:
		if f.Regex != "" {
			re, err := regexp.Compile(f.Regex)
			if err != nil {
				return sectionErr(SectionValidationRules, "invalid regex: %v", err)
			}
			if !re.MatchString(defaultValue) {
				return fail("%q does not match %s", defaultValue, f.Regex)
			}
		}

	case model.DataTypeNumber:
		n, _, err := parseNumber("default", defaultValue)
		if err != nil {
			return fail("%q is not a number", defaultValue)
		}
		if lo, ok, _ := parseNumber("min", f.Min); ok && n < lo {
			return fail("%s is below min %s", formatNumber(n), formatNumber(lo))
		}
		if hi, ok, _ := parseNumber("max", f.Max); ok && n > hi {
			return fail("%s is above max %s", formatNumber(n), formatNumber(hi))
		}

	case model.DataTypeDate:
		d, err := model.ParseDate(strings.TrimSpace(defaultValue))
		if err != nil {
			return fail("%q is not a date (YYYY-MM-DD)", defaultValue)
		}
		if start, ok, _ := parseDate("start_date", f.StartDate); ok && d.Time().Before(start.Time()) {
			return fail("%s is before start_date %s", d, start)
		}
		if end, ok, _ := parseDate("end_date", f.EndDate); ok && d.Time().After(end.Time()) {
			return fail("%s is after end_date %s", d, end)
		}

	case model.DataTypeList:
		selected := []string{defaultValue}
		if f.Mode == model.ListModeMulti {
			selected = strings.Split(defaultValue, ",")
		}
		for _, v := range selected {
			v = strings.TrimSpace(v)
			if !slices.ContainsFunc(f.Options, func(o model.ListOption) bool { return o.Value == v }) {
				return fail("%q is not one of the list options", v)
			}
		}
	}
	return nil
}

// Submission is everything about a configuration that rules constrain.
type Submission struct {
	DataType     model.DataType
	Rules        []model.ValidationRule
	DefaultValue string
	Parent       *model.Configuration
	Conditions   []model.ParentCondition
}

// Check runs the rule set, default value and parent condition checks in that
// order and returns the first failure as a *SectionError. On success the
// submission is returned with its default value and conditions normalized.
func Check(s Submission) (Submission, error) {
	if err := CheckRuleSet(s.DataType, s.Rules); err != nil {
		return s, err
	}
	if err := CheckDefault(s.DataType, s.Rules, s.DefaultValue); err != nil {
		return s, err
	}
	conds, err := CheckConditions(s.Parent, s.Conditions)
	if err != nil {
		return s, err
	}
	s.DefaultValue = normalizeDefault(s.DataType, s.DefaultValue)
	s.Conditions = conds
	return s, nil
}

// normalizeDefault trims the parts of a default value that CheckDefault
// compares, so the stored value is the one that was checked.
func normalizeDefault(dataType model.DataType, defaultValue string) string {
	switch dataType {
	case model.DataTypeNumber, model.DataTypeDate:
		return strings.TrimSpace(defaultValue)
	case model.DataTypeList:
		parts := strings.Split(defaultValue, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return strings.Join(parts, ",")
	}
	return defaultValue
}
