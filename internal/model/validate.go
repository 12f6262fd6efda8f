package model

import (
	"fmt"
	"strings"
)

// MaxKeyLength and MaxLabelLength bound key and label, in characters.
const (
	MaxKeyLength   = 255
	MaxLabelLength = 255
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateConfiguration checks a Configuration for structural constraint
// violations. Rule-set semantics (ranges, options, parent conditions) are
// checked separately by the rules package.
// It returns a *ValidationError if any rules fail, or nil if the record is valid.
func ValidateConfiguration(c *Configuration) error {
	var ve ValidationError

	key := strings.TrimSpace(c.Key)
	switch {
	case key == "":
		ve.add("key", "is required")
	case len([]rune(key)) > MaxKeyLength:
		ve.add("key", "must be %d characters or fewer", MaxKeyLength)
	case key != c.Key:
		ve.add("key", "must not have leading or trailing whitespace")
	}

	label := strings.TrimSpace(c.Label)
	if label == "" {
		ve.add("label", "is required")
	} else if len([]rune(label)) > MaxLabelLength {
		ve.add("label", "must be %d characters or fewer", MaxLabelLength)
	}

	if !c.DataType.IsValid() {
		ve.add("data_type", "invalid value %q", c.DataType)
	}

	if c.HasParent() && *c.ParentConfigID == c.ID {
		ve.add("parent_config_id", "must not reference the configuration itself")
	}

	for i, r := range c.ValidationRules {
		if r.Type == "" {
			ve.add(fmt.Sprintf("validation_rules[%d]", i), "rule_type is required")
		}
	}

	for i, pc := range c.ParentConditions {
		if pc.Operator != "" && !pc.Operator.IsValid() {
			ve.add(fmt.Sprintf("parent_conditions[%d]", i), "invalid operator %q", pc.Operator)
		}
	}

	for i, t := range c.Translations {
		field := fmt.Sprintf("translations[%d]", i)
		if strings.TrimSpace(t.Language) == "" {
			ve.add(field, "language is required")
		}
		if strings.TrimSpace(t.Label) == "" {
			ve.add(field, "label is required")
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
