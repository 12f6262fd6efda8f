package model

import (
	"slices"
	"testing"
)

func TestDataType_IsValid(t *testing.T) {
	for _, tc := range []struct {
		dt   DataType
		want bool
	}{
		{DataTypeString, true},
		{DataTypeNumber, true},
		{DataTypeDate, true},
		{DataTypeList, true},
		{DataType(""), false},
		{DataType("boolean"), false},
	} {
		if got := tc.dt.IsValid(); got != tc.want {
			t.Errorf("DataType(%q).IsValid() = %v, want %v", tc.dt, got, tc.want)
		}
	}
}

func TestOperator_IsValid(t *testing.T) {
	for _, op := range Operators {
		if !op.IsValid() {
			t.Errorf("Operator(%q) should be valid", op)
		}
	}
	for _, op := range []Operator{"", "==", "IN", "like"} {
		if op.IsValid() {
			t.Errorf("Operator(%q) should be invalid", op)
		}
	}
}

func TestConfiguration_Parent(t *testing.T) {
	c := &Configuration{ID: "a"}
	if c.HasParent() || c.ParentID() != "" {
		t.Fatal("nil parent should be a root")
	}
	empty := ""
	c.ParentConfigID = &empty
	if c.HasParent() {
		t.Fatal("empty parent should be a root")
	}
	c.ParentConfigID = StringPtr("b")
	if !c.HasParent() || c.ParentID() != "b" {
		t.Fatalf("expected parent b, got %q", c.ParentID())
	}
	if StringPtr("") != nil {
		t.Fatal("StringPtr(\"\") should be nil")
	}
}

func TestConfiguration_Clone(t *testing.T) {
	orig := &Configuration{
		ID:               "a",
		ParentConfigID:   StringPtr("p"),
		ValidationRules:  []ValidationRule{Required(true)},
		ParentConditions: []ParentCondition{{Operator: OpEqual, Value: "x", DefaultValue: "1"}},
		Translations:     []Translation{{Language: "fr", Label: "A"}},
	}
	c := orig.Clone()
	*c.ParentConfigID = "q"
	c.ParentConditions[0].Value = "y"
	c.Translations[0].Label = "B"
	c.ValidationRules = append(c.ValidationRules, Min(1))

	if orig.ParentID() != "p" || orig.ParentConditions[0].Value != "x" || orig.Translations[0].Label != "A" || len(orig.ValidationRules) != 1 {
		t.Fatalf("clone shares state with original: %+v", orig)
	}
}

func TestParentCondition_Values(t *testing.T) {
	for _, tc := range []struct {
		value string
		want  []string
	}{
		{"", nil},
		{"eu", []string{"eu"}},
		{"eu, us ,", []string{"eu", "us", ""}},
		{JoinValues("1", "9"), []string{"1", "9"}},
	} {
		got := ParentCondition{Value: tc.value}.Values()
		if !slices.Equal(got, tc.want) {
			t.Errorf("Values(%q) = %q, want %q", tc.value, got, tc.want)
		}
	}
}
