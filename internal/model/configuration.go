package model

import "time"

// DataType is the value type a configuration holds.
type DataType string

const (
	DataTypeString DataType = "string"
	DataTypeNumber DataType = "number"
	DataTypeDate   DataType = "date"
	DataTypeList   DataType = "list"
)

// String returns the string representation of the data type.
func (d DataType) String() string {
	return string(d)
}

// IsValid checks whether the data type is a known value.
func (d DataType) IsValid() bool {
	switch d {
	case DataTypeString, DataTypeNumber, DataTypeDate, DataTypeList:
		return true
	}
	return false
}

// Configuration is a single manageable setting. It may inherit from a parent
// configuration through ParentConfigID.
type Configuration struct {
	ID               string            `json:"id"`
	Key              string            `json:"key"`
	Label            string            `json:"label"`
	Description      string            `json:"description,omitempty"`
	DataType         DataType          `json:"data_type"`
	DefaultValue     string            `json:"default_value,omitempty"`
	Active           bool              `json:"active"`
	ParentConfigID   *string           `json:"parent_config_id"`
	ValidationRules  []ValidationRule  `json:"validation_rules"`
	ParentConditions []ParentCondition `json:"parent_conditions"`
	Translations     []Translation     `json:"translations"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ParentID returns the parent id or "" when the record is a root.
func (c *Configuration) ParentID() string {
	if c.ParentConfigID == nil {
		return ""
	}
	return *c.ParentConfigID
}

// HasParent reports whether the record references a parent.
func (c *Configuration) HasParent() bool {
	return c.ParentConfigID != nil && *c.ParentConfigID != ""
}

// Rule returns the first rule of the given type, if any.
func (c *Configuration) Rule(t RuleType) (ValidationRule, bool) {
	for _, r := range c.ValidationRules {
		if r.Type == t {
			return r, true
		}
	}
	return ValidationRule{}, false
}

// ListOptions returns the options declared by a list configuration's
// list_options rule, or nil.
func (c *Configuration) ListOptions() []ListOption {
	r, ok := c.Rule(RuleListOptions)
	if !ok {
		return nil
	}
	if opts, ok := r.Value.(OptionsValue); ok {
		return opts
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Configuration) Clone() *Configuration {
	out := *c
	if c.ParentConfigID != nil {
		p := *c.ParentConfigID
		out.ParentConfigID = &p
	}
	out.ValidationRules = append([]ValidationRule(nil), c.ValidationRules...)
	out.ParentConditions = append([]ParentCondition(nil), c.ParentConditions...)
	out.Translations = append([]Translation(nil), c.Translations...)
	return &out
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
