package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
)

// RuleType names a validation rule. The value shape depends on it.
type RuleType string

const (
	RuleRequired    RuleType = "required"
	RuleRegex       RuleType = "regex"
	RuleMin         RuleType = "min"
	RuleMax         RuleType = "max"
	RuleStartDate   RuleType = "start_date"
	RuleEndDate     RuleType = "end_date"
	RuleListMode    RuleType = "list_mode"
	RuleListOptions RuleType = "list_options"
)

// DateLayout is the wire format of date rule values and date defaults.
const DateLayout = "2006-01-02"

// RuleValue is the payload of a ValidationRule. The concrete type is fixed
// by the rule type:
//
//	required                -> BoolValue
//	regex                   -> TextValue
//	min, max                -> NumberValue
//	start_date, end_date    -> DateValue
//	list_mode               -> ListMode
//	list_options            -> OptionsValue
//	anything else           -> RawValue
type RuleValue interface {
	ruleValue()
}

type (
	BoolValue    bool
	TextValue    string
	NumberValue  float64
	DateValue    time.Time
	OptionsValue []ListOption
	RawValue     json.RawMessage
)

// ListMode selects how many options a list configuration accepts.
type ListMode string

const (
	ListModeSingle ListMode = "single"
	ListModeMulti  ListMode = "multi"
)

// IsValid checks whether the list mode is a known value.
func (m ListMode) IsValid() bool {
	return m == ListModeSingle || m == ListModeMulti
}

// ListOption is one selectable entry of a list configuration.
type ListOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func (BoolValue) ruleValue()    {}
func (TextValue) ruleValue()    {}
func (NumberValue) ruleValue()  {}
func (DateValue) ruleValue()    {}
func (ListMode) ruleValue()     {}
func (OptionsValue) ruleValue() {}
func (RawValue) ruleValue()     {}

// Time returns the date as a UTC midnight time.
func (d DateValue) Time() time.Time { return time.Time(d) }

// String formats the date using DateLayout.
func (d DateValue) String() string { return time.Time(d).Format(DateLayout) }

func (d DateValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (r RawValue) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

// ParseDate parses s as a DateLayout date.
func ParseDate(s string) (DateValue, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return DateValue{}, err
	}
	return DateValue(t), nil
}

// ValidationRule is a (rule_type, value) pair stored with a configuration.
type ValidationRule struct {
	Type  RuleType
	Value RuleValue
}

// Rule constructors.

func Required(b bool) ValidationRule { return ValidationRule{RuleRequired, BoolValue(b)} }
func Regex(p string) ValidationRule  { return ValidationRule{RuleRegex, TextValue(p)} }
func Min(f float64) ValidationRule   { return ValidationRule{RuleMin, NumberValue(f)} }
func Max(f float64) ValidationRule   { return ValidationRule{RuleMax, NumberValue(f)} }

func StartDate(d DateValue) ValidationRule { return ValidationRule{RuleStartDate, d} }
func EndDate(d DateValue) ValidationRule   { return ValidationRule{RuleEndDate, d} }
func Mode(m ListMode) ValidationRule       { return ValidationRule{RuleListMode, m} }

func Options(opts ...ListOption) ValidationRule {
	return ValidationRule{RuleListOptions, OptionsValue(opts)}
}

type wireRule struct {
	RuleType RuleType        `json:"rule_type"`
	Value    json.RawMessage `json:"value"`
}

// MarshalJSON encodes the rule as {"rule_type": ..., "value": ...}.
func (r ValidationRule) MarshalJSON() ([]byte, error) {
	var value []byte
	if r.Value == nil {
		value = []byte("null")
	} else {
		v, err := json.Marshal(r.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s value: %w", r.Type, err)
		}
		value = v
	}
	return json.Marshal(wireRule{RuleType: r.Type, Value: value})
}

// UnmarshalJSON decodes {"rule_type": ..., "value": ...} into the variant
// selected by rule_type.
func (r *ValidationRule) UnmarshalJSON(data []byte) error {
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v, err := DecodeRuleValue(w.RuleType, w.Value)
	if err != nil {
		return err
	}
	r.Type = w.RuleType
	r.Value = v
	return nil
}

// DecodeError reports a rule value that does not fit its rule type.
type DecodeError struct {
	RuleType RuleType
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("validation rule %q: %v", e.RuleType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeRuleValue converts a raw JSON value into the variant for t.
// Loosely typed input such as "10" for min or "true" for required is coerced.
func DecodeRuleValue(t RuleType, raw json.RawMessage) (RuleValue, error) {
	fail := func(err error) (RuleValue, error) {
		return nil, &DecodeError{RuleType: t, Err: err}
	}

	if t == "" {
		return fail(fmt.Errorf("rule_type is required"))
	}

	var v any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return fail(err)
		}
	}

	switch t {
	case RuleRequired:
		if v == nil {
			return BoolValue(false), nil
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fail(err)
		}
		return BoolValue(b), nil

	case RuleRegex:
		s, err := cast.ToStringE(v)
		if err != nil {
			return fail(err)
		}
		return TextValue(s), nil

	case RuleMin, RuleMax:
		if v == nil {
			return fail(fmt.Errorf("a number is required"))
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return fail(err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fail(fmt.Errorf("a finite number is required, got %v", v))
		}
		return NumberValue(f), nil

	case RuleStartDate, RuleEndDate:
		if v == nil {
			return fail(fmt.Errorf("a date is required"))
		}
		ts, err := cast.ToTimeE(v)
		if err != nil {
			return fail(err)
		}
		y, m, d := ts.Date()
		return DateValue(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)), nil

	case RuleListMode:
		s, err := cast.ToStringE(v)
		if err != nil {
			return fail(err)
		}
		mode := ListMode(s)
		if !mode.IsValid() {
			return fail(fmt.Errorf("must be %q or %q, got %q", ListModeSingle, ListModeMulti, s))
		}
		return mode, nil

	case RuleListOptions:
		if v == nil {
			return OptionsValue{}, nil
		}
		items, ok := v.([]any)
		if !ok {
			return fail(fmt.Errorf("expected a list of options, got %T", v))
		}
		opts := make(OptionsValue, 0, len(items))
		for i, item := range items {
			m, err := cast.ToStringMapE(item)
			if err != nil {
				return fail(fmt.Errorf("option %d: %w", i, err))
			}
			label, err := cast.ToStringE(m["label"])
			if err != nil {
				return fail(fmt.Errorf("option %d label: %w", i, err))
			}
			value, err := cast.ToStringE(m["value"])
			if err != nil {
				return fail(fmt.Errorf("option %d value: %w", i, err))
			}
			opts = append(opts, ListOption{Label: label, Value: value})
		}
		return opts, nil
	}

	return RawValue(append(json.RawMessage(nil), raw...)), nil
}
