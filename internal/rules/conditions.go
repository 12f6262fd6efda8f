package rules

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/alfredjeanlab/confengine/internal/model"
)

// CheckConditions validates parent condition rows against the parent they
// refer to and returns them normalized: values trimmed and, for list
// parents, the operator forced to "in".
func CheckConditions(parent *model.Configuration, conds []model.ParentCondition) ([]model.ParentCondition, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	if parent == nil {
		return nil, sectionErr(SectionParentConditions, "conditions require a parent configuration")
	}

	out := make([]model.ParentCondition, len(conds))
	for i, c := range conds {
		n, err := checkCondition(parent, c)
		if err != nil {
			return nil, sectionErr(SectionParentConditions, "condition %d: %v", i+1, err)
		}
		out[i] = n
	}
	return out, nil
}

func checkCondition(parent *model.Configuration, c model.ParentCondition) (model.ParentCondition, error) {
	c.Operator = model.Operator(strings.TrimSpace(string(c.Operator)))
	if c.Operator == "" {
		return c, errors.New("operator is required")
	}
	if !c.Operator.IsValid() {
		return c, fmt.Errorf("unknown operator %q", c.Operator)
	}

	values := c.Values()

	if parent.DataType == model.DataTypeList {
		options := parent.ListOptions()
		if len(values) == 0 {
			return c, errors.New("select at least one of the parent's options")
		}
		for _, v := range values {
			if v == "" {
				return c, errors.New("empty selection")
			}
			if !slices.ContainsFunc(options, func(o model.ListOption) bool { return o.Value == v }) {
				return c, fmt.Errorf("%q is not an option of the parent", v)
			}
		}
		c.Operator = model.OpIn
		c.Value = model.JoinValues(values...)
		return c, nil
	}

	switch c.Operator {
	case model.OpBetween:
		if len(values) != 2 || values[0] == "" || values[1] == "" {
			return c, errors.New("between needs two bounds as \"low,high\"")
		}
		c.Value = model.JoinValues(values...)
	default:
		v := strings.TrimSpace(c.Value)
		if v == "" {
			return c, errors.New("value is required")
		}
		c.Value = v
	}
	return c, nil
}
