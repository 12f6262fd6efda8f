package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alfredjeanlab/confengine/internal/model"
)

// validate checks the struct tags on request DTOs. Field names in errors are
// the JSON names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput runs validate on in and turns the first failure into an
// inputError.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validating input: %w", err)
	}
	return inputError(describeFieldError(verrs[0]))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "uuid":
		return field + " must be a UUID"
	}
	return field + " is invalid"
}

// createConfigurationInput is the JSON body for POST /api/v1/configurations.
type createConfigurationInput struct {
	Key              string                  `json:"key" validate:"required,max=255"`
	Label            string                  `json:"label" validate:"required,max=255"`
	Description      string                  `json:"description"`
	DataType         model.DataType          `json:"data_type" validate:"required,oneof=string number date list"`
	DefaultValue     string                  `json:"default_value"`
	Active           *bool                   `json:"active"`
	ParentConfigID   string                  `json:"parent_config_id" validate:"omitempty,uuid"`
	ValidationRules  []model.ValidationRule  `json:"validation_rules"`
	ParentConditions []model.ParentCondition `json:"parent_conditions"`
	Translations     []model.Translation     `json:"translations"`
}

// updateConfigurationInput is the JSON body for PUT /api/v1/configurations/{id}.
// Absent fields are left unchanged. Key is accepted but ignored.
type updateConfigurationInput struct {
	Key              *string                  `json:"key"`
	Label            *string                  `json:"label"`
	Description      *string                  `json:"description"`
	DataType         *model.DataType          `json:"data_type"`
	DefaultValue     *string                  `json:"default_value"`
	Active           *bool                    `json:"active"`
	ParentConfigID   *string                  `json:"parent_config_id"` // "" clears the parent
	ValidationRules  *[]model.ValidationRule  `json:"validation_rules"`
	ParentConditions *[]model.ParentCondition `json:"parent_conditions"`
	Translations     *[]model.Translation     `json:"translations"`
}

// apply copies the present fields onto c and returns them keyed by JSON name.
// Clearing the parent without sending conditions drops the old conditions.
func (in updateConfigurationInput) apply(c *model.Configuration) map[string]any {
	changes := make(map[string]any)
	if in.Label != nil {
		c.Label = *in.Label
		changes["label"] = c.Label
	}
	if in.Description != nil {
		c.Description = *in.Description
		changes["description"] = c.Description
	}
	if in.DataType != nil {
		c.DataType = *in.DataType
		changes["data_type"] = c.DataType
	}
	if in.DefaultValue != nil {
		c.DefaultValue = *in.DefaultValue
		changes["default_value"] = c.DefaultValue
	}
	if in.Active != nil {
		c.Active = *in.Active
		changes["active"] = c.Active
	}
	if in.ParentConfigID != nil {
		c.ParentConfigID = model.StringPtr(strings.TrimSpace(*in.ParentConfigID))
		changes["parent_config_id"] = c.ParentConfigID
		if !c.HasParent() && in.ParentConditions == nil && len(c.ParentConditions) > 0 {
			c.ParentConditions = nil
			changes["parent_conditions"] = []model.ParentCondition{}
		}
	}
	if in.ValidationRules != nil {
		c.ValidationRules = *in.ValidationRules
		changes["validation_rules"] = c.ValidationRules
	}
	if in.ParentConditions != nil {
		c.ParentConditions = *in.ParentConditions
		changes["parent_conditions"] = c.ParentConditions
	}
	if in.Translations != nil {
		c.Translations = *in.Translations
		changes["translations"] = c.Translations
	}
	return changes
}

// listQuery holds the query parameters of GET /api/v1/configurations.
type listQuery struct {
	Limit  int    `json:"limit" validate:"gte=1,lte=100"`
	Offset int    `json:"offset" validate:"gte=0"`
	Search string `json:"search" validate:"max=255"`
	Active *bool  `json:"active"`
}
