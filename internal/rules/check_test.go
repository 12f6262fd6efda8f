package rules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/confengine/internal/model"
)

func listParent(opts ...model.ListOption) *model.Configuration {
	return &model.Configuration{
		ID:       "parent",
		Key:      "parent",
		DataType: model.DataTypeList,
		ValidationRules: []model.ValidationRule{
			model.Required(true),
			model.Mode(model.ListModeSingle),
			model.Options(opts...),
		},
	}
}

func TestCheckDefault_ListSingle(t *testing.T) {
	rs, err := Evaluate(Form{
		DataType: model.DataTypeList,
		Mode:     model.ListModeSingle,
		Options:  []model.ListOption{{Label: "A", Value: "a"}, {Label: "B", Value: "b"}},
	})
	require.NoError(t, err)

	assert.NoError(t, CheckDefault(model.DataTypeList, rs, "a"))
	requireSection(t, CheckDefault(model.DataTypeList, rs, "c"), SectionDefaultValue)
	requireSection(t, CheckDefault(model.DataTypeList, rs, "a,b"), SectionDefaultValue)
}

func TestCheckDefault_ListMulti(t *testing.T) {
	rs := []model.ValidationRule{
		model.Mode(model.ListModeMulti),
		model.Options(model.ListOption{Label: "A", Value: "a"}, model.ListOption{Label: "B", Value: "b"}),
	}
	assert.NoError(t, CheckDefault(model.DataTypeList, rs, "a, b"))
	requireSection(t, CheckDefault(model.DataTypeList, rs, "a,z"), SectionDefaultValue)
}

func TestCheckDefault_Number(t *testing.T) {
	rs := []model.ValidationRule{model.Min(1), model.Max(10)}
	assert.NoError(t, CheckDefault(model.DataTypeNumber, rs, "5"))
	assert.NoError(t, CheckDefault(model.DataTypeNumber, rs, ""))
	requireSection(t, CheckDefault(model.DataTypeNumber, rs, "0"), SectionDefaultValue)
	requireSection(t, CheckDefault(model.DataTypeNumber, rs, "11"), SectionDefaultValue)
	requireSection(t, CheckDefault(model.DataTypeNumber, rs, "five"), SectionDefaultValue)
}

func TestCheckDefault_DateAndString(t *testing.T) {
	start, _ := model.ParseDate("2024-01-01")
	end, _ := model.ParseDate("2024-12-31")
	rs := []model.ValidationRule{model.StartDate(start), model.EndDate(end)}
	assert.NoError(t, CheckDefault(model.DataTypeDate, rs, "2024-06-15"))
	requireSection(t, CheckDefault(model.DataTypeDate, rs, "2023-12-31"), SectionDefaultValue)
	requireSection(t, CheckDefault(model.DataTypeDate, rs, "June"), SectionDefaultValue)

	srs := []model.ValidationRule{model.Regex("^[a-z]+$")}
	assert.NoError(t, CheckDefault(model.DataTypeString, srs, "abc"))
	requireSection(t, CheckDefault(model.DataTypeString, srs, "ABC"), SectionDefaultValue)
}

func TestCheckConditions_ListParent(t *testing.T) {
	parent := listParent(model.ListOption{Label: "X", Value: "x"}, model.ListOption{Label: "Y", Value: "y"})

	got, err := CheckConditions(parent, []model.ParentCondition{
		{Operator: model.OpEqual, Value: "x, y", DefaultValue: "on"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.OpIn, got[0].Operator, "list parents force the in operator")
	assert.Equal(t, "x,y", got[0].Value)
	assert.Equal(t, "on", got[0].DefaultValue)

	_, err = CheckConditions(parent, []model.ParentCondition{{Operator: model.OpIn, Value: ""}})
	requireSection(t, err, SectionParentConditions)

	_, err = CheckConditions(parent, []model.ParentCondition{{Operator: model.OpIn, Value: "x,z"}})
	requireSection(t, err, SectionParentConditions)
}

func TestCheckConditions_ScalarParent(t *testing.T) {
	parent := &model.Configuration{ID: "p", DataType: model.DataTypeNumber}

	got, err := CheckConditions(parent, []model.ParentCondition{
		{Operator: model.OpBetween, Value: " 1 , 5 "},
		{Operator: model.OpGreater, Value: " 3 "},
	})
	require.NoError(t, err)
	assert.Equal(t, "1,5", got[0].Value)
	assert.Equal(t, "3", got[1].Value)

	for name, c := range map[string]model.ParentCondition{
		"NoOperator":      {Value: "1"},
		"UnknownOperator": {Operator: "~", Value: "1"},
		"BetweenOneBound": {Operator: model.OpBetween, Value: "1"},
		"BetweenEmpty":    {Operator: model.OpBetween, Value: "1,"},
		"EmptyValue":      {Operator: model.OpLess, Value: "  "},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := CheckConditions(parent, []model.ParentCondition{c})
			requireSection(t, err, SectionParentConditions)
		})
	}
}

func TestCheckConditions_NoParent(t *testing.T) {
	got, err := CheckConditions(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = CheckConditions(nil, []model.ParentCondition{{Operator: model.OpEqual, Value: "1"}})
	requireSection(t, err, SectionParentConditions)
}

func TestCheck_SectionOrder(t *testing.T) {
	s := Submission{
		DataType:     model.DataTypeNumber,
		Rules:        []model.ValidationRule{model.Min(10), model.Max(5)},
		DefaultValue: "not a number",
		Conditions:   []model.ParentCondition{{Operator: "bogus"}},
	}
	_, err := Check(s)
	requireSection(t, err, SectionValidationRules)

	s.Rules = []model.ValidationRule{model.Min(1)}
	_, err = Check(s)
	requireSection(t, err, SectionDefaultValue)

	s.DefaultValue = "3"
	_, err = Check(s)
	requireSection(t, err, SectionParentConditions)
}

func TestCheck_NormalizesConditions(t *testing.T) {
	parent := listParent(model.ListOption{Label: "X", Value: "x"})
	out, err := Check(Submission{
		DataType:   model.DataTypeString,
		Rules:      []model.ValidationRule{model.Required(false)},
		Parent:     parent,
		Conditions: []model.ParentCondition{{Operator: model.OpEqual, Value: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.OpIn, out.Conditions[0].Operator)
}

func TestCheck_NormalizesDefault(t *testing.T) {
	opts := model.Options(model.ListOption{Label: "A", Value: "a"}, model.ListOption{Label: "B", Value: "b"})
	for name, tc := range map[string]struct {
		dataType model.DataType
		rules    []model.ValidationRule
		in, want string
	}{
		"ListSingle": {model.DataTypeList, []model.ValidationRule{model.Mode(model.ListModeSingle), opts}, " a", "a"},
		"ListMulti":  {model.DataTypeList, []model.ValidationRule{model.Mode(model.ListModeMulti), opts}, " a , b", "a,b"},
		"Number":     {model.DataTypeNumber, []model.ValidationRule{model.Min(1)}, " 5 ", "5"},
		"Date":       {model.DataTypeDate, nil, "2024-06-15 ", "2024-06-15"},
		"String":     {model.DataTypeString, nil, " keep ", " keep "},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := Check(Submission{DataType: tc.dataType, Rules: tc.rules, DefaultValue: tc.in})
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.DefaultValue)
		})
	}
}

func TestCheckRuleSet_NonFiniteNumber(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := CheckRuleSet(model.DataTypeNumber, []model.ValidationRule{{Type: model.RuleMin, Value: model.NumberValue(f)}})
		requireSection(t, err, SectionValidationRules)
	}
}
