package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Operator compares a parent's value against a condition value.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpBetween      Operator = "between"
	OpIn           Operator = "in"
)

// Operators lists every supported operator in display order.
var Operators = []Operator{
	OpEqual, OpNotEqual, OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpBetween, OpIn,
}

// IsValid checks whether the operator is a known value.
func (o Operator) IsValid() bool {
	for _, op := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// ParentCondition signals that DefaultValue should apply when the parent's
// value satisfies Operator against Value.
//
// Value is text. For OpBetween it holds "low,high"; for OpIn it holds the
// comma-joined selection.
type ParentCondition struct {
	Operator     Operator `json:"operator"`
	Value        string   `json:"value"`
	DefaultValue string   `json:"default_value"`
}

// Values splits a comma-joined condition value into trimmed parts.
// Empty parts are kept so callers can reject them.
func (c ParentCondition) Values() []string {
	if c.Value == "" {
		return nil
	}
	parts := strings.Split(c.Value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// JoinValues builds a comma-joined condition value.
func JoinValues(values ...string) string {
	return strings.Join(values, ",")
}

// UnmarshalJSON accepts scalar or array values. Arrays are comma-joined.
func (c *ParentCondition) UnmarshalJSON(data []byte) error {
	var w struct {
		Operator     Operator `json:"operator"`
		Value        any      `json:"value"`
		DefaultValue any      `json:"default_value"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	value, err := conditionText(w.Value)
	if err != nil {
		return fmt.Errorf("parent condition value: %w", err)
	}
	def, err := conditionText(w.DefaultValue)
	if err != nil {
		return fmt.Errorf("parent condition default_value: %w", err)
	}
	c.Operator = w.Operator
	c.Value = value
	c.DefaultValue = def
	return nil
}

func conditionText(v any) (string, error) {
	if items, ok := v.([]any); ok {
		parts, err := cast.ToStringSliceE(items)
		if err != nil {
			return "", err
		}
		return JoinValues(parts...), nil
	}
	return cast.ToStringE(v)
}
