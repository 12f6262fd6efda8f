package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alfredjeanlab/confengine/internal/client"
	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/rules"
	"github.com/alfredjeanlab/confengine/internal/server"
	"github.com/alfredjeanlab/confengine/internal/store/memory"
)

// newTestClient runs the real HTTP handler over an in-memory store.
func newTestClient(t *testing.T) client.ConfigClient {
	t.Helper()
	cs := server.NewConfigServer(memory.New(), nil)
	srv := httptest.NewServer(cs.NewHTTPHandler(server.HTTPOptions{}))
	t.Cleanup(srv.Close)
	return client.NewHTTPClient(srv.URL, "").WithActor("tester")
}

func mustCreate(t *testing.T, cc client.ConfigClient, req *client.CreateRequest) *model.Configuration {
	t.Helper()
	c, err := cc.CreateConfiguration(context.Background(), req)
	if err != nil {
		t.Fatalf("create %s: %v", req.Key, err)
	}
	return c
}

func regionRequest() *client.CreateRequest {
	return &client.CreateRequest{
		Key:      "region",
		Label:    "Region",
		DataType: model.DataTypeList,
		ValidationRules: []model.ValidationRule{
			model.Required(false),
			model.Mode(model.ListModeSingle),
			model.Options(model.ListOption{Label: "Europe", Value: "eu"}, model.ListOption{Label: "US", Value: "us"}),
		},
	}
}

func TestBuildCreateRequest(t *testing.T) {
	cc := newTestClient(t)
	ctx := context.Background()
	parent := mustCreate(t, cc, regionRequest())

	f := recordFlags{
		label:      "VAT",
		dataType:   "number",
		min:        "0",
		max:        "100",
		parent:     "region",
		conditions: []string{"=:eu:20"},
	}
	req, err := buildCreateRequest(ctx, cc, "region.vat", &f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ParentConfigID != parent.ID {
		t.Fatalf("expected parent %s, got %q", parent.ID, req.ParentConfigID)
	}
	if len(req.ParentConditions) != 1 || req.ParentConditions[0].Operator != model.OpIn {
		t.Fatalf("expected condition normalized to in, got %+v", req.ParentConditions)
	}
	if len(req.ValidationRules) != 3 {
		t.Fatalf("expected required, min and max rules, got %+v", req.ValidationRules)
	}

	c, err := cc.CreateConfiguration(ctx, req)
	if err != nil {
		t.Fatalf("server rejected checked request: %v", err)
	}
	if c.ParentID() != parent.ID {
		t.Fatalf("unexpected parent %q", c.ParentID())
	}
}

func TestBuildCreateRequest_Rejects(t *testing.T) {
	cc := newTestClient(t)
	mustCreate(t, cc, regionRequest())

	for _, tc := range []struct {
		name    string
		flags   recordFlags
		section rules.Section
	}{
		{"unknown option", recordFlags{label: "VAT", dataType: "number", parent: "region", conditions: []string{"in:asia:20"}}, rules.SectionParentConditions},
		{"conditions without parent", recordFlags{label: "VAT", dataType: "number", conditions: []string{"in:eu:20"}}, rules.SectionParentConditions},
		{"default above max", recordFlags{label: "VAT", dataType: "number", max: "100", defaultValue: "200"}, rules.SectionDefaultValue},
		{"min above max", recordFlags{label: "VAT", dataType: "number", min: "10", max: "5"}, rules.SectionValidationRules},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildCreateRequest(context.Background(), cc, "region.vat", &tc.flags)
			var se *rules.SectionError
			if !errors.As(err, &se) || se.Section != tc.section {
				t.Fatalf("expected %s error, got %v", tc.section, err)
			}
		})
	}

	f := recordFlags{label: "VAT", dataType: "number", parent: "nowhere"}
	if _, err := buildCreateRequest(context.Background(), cc, "x", &f); !client.IsNotFound(err) {
		t.Fatalf("expected not found for unknown parent, got %v", err)
	}
}

func TestBuildUpdateRequest(t *testing.T) {
	cc := newTestClient(t)
	ctx := context.Background()
	parent := mustCreate(t, cc, regionRequest())
	existing := mustCreate(t, cc, &client.CreateRequest{
		Key:            "region.vat",
		Label:          "VAT",
		DataType:       model.DataTypeNumber,
		ParentConfigID: parent.ID,
		ValidationRules: []model.ValidationRule{
			model.Required(true), model.Min(0), model.Max(100),
		},
		ParentConditions: []model.ParentCondition{{Operator: model.OpIn, Value: "eu", DefaultValue: "20"}},
	})

	t.Run("rule flag keeps other rules", func(t *testing.T) {
		req, err := buildUpdateRequest(ctx, cc, existing, &recordFlags{max: "50"}, changedSet("max"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Label != nil || req.ParentConfigID != nil || req.ParentConditions != nil {
			t.Fatalf("unexpected fields set: %+v", req)
		}
		want := []model.ValidationRule{model.Required(true), model.Min(0), model.Max(50)}
		if req.ValidationRules == nil || len(*req.ValidationRules) != len(want) {
			t.Fatalf("expected %v, got %v", want, req.ValidationRules)
		}
		for i, r := range *req.ValidationRules {
			if r != want[i] {
				t.Fatalf("rule %d: expected %v, got %v", i, want[i], r)
			}
		}
	})

	t.Run("type change drops rules", func(t *testing.T) {
		req, err := buildUpdateRequest(ctx, cc, existing, &recordFlags{dataType: "string"}, changedSet("type"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.DataType == nil || *req.DataType != model.DataTypeString {
			t.Fatalf("expected data type string, got %v", req.DataType)
		}
		if req.ValidationRules == nil || len(*req.ValidationRules) != 1 || (*req.ValidationRules)[0] != model.Required(false) {
			t.Fatalf("expected only required=false, got %v", req.ValidationRules)
		}
	})

	t.Run("default checked against current rules", func(t *testing.T) {
		_, err := buildUpdateRequest(ctx, cc, existing, &recordFlags{defaultValue: "500"}, changedSet("default"))
		var se *rules.SectionError
		if !errors.As(err, &se) || se.Section != rules.SectionDefaultValue {
			t.Fatalf("expected default_value error, got %v", err)
		}
	})

	t.Run("conditions checked against current parent", func(t *testing.T) {
		_, err := buildUpdateRequest(ctx, cc, existing, &recordFlags{conditions: []string{"in:mars:1"}}, changedSet("condition"))
		var se *rules.SectionError
		if !errors.As(err, &se) || se.Section != rules.SectionParentConditions {
			t.Fatalf("expected parent_conditions error, got %v", err)
		}
	})

	t.Run("clear parent", func(t *testing.T) {
		req, err := buildUpdateRequest(ctx, cc, existing, &recordFlags{}, changedSet("clear-parent"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.ParentConfigID == nil || *req.ParentConfigID != "" {
			t.Fatalf("expected detach, got %v", req.ParentConfigID)
		}
		updated, err := cc.UpdateConfiguration(ctx, existing.ID, req)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.HasParent() || len(updated.ParentConditions) != 0 {
			t.Fatalf("expected detached record without conditions, got %+v", updated)
		}
	})

	t.Run("nothing changed", func(t *testing.T) {
		req, err := buildUpdateRequest(ctx, cc, existing, &recordFlags{}, changedSet())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !req.IsEmpty() {
			t.Fatalf("expected empty request, got %+v", req)
		}
	})
}

func TestRunList(t *testing.T) {
	cc := newTestClient(t)
	ctx := context.Background()
	region := mustCreate(t, cc, &client.CreateRequest{Key: "region", Label: "Region", DataType: model.DataTypeString})
	mustCreate(t, cc, &client.CreateRequest{Key: "region.vat", Label: "VAT", DataType: model.DataTypeNumber, ParentConfigID: region.ID})
	mustCreate(t, cc, &client.CreateRequest{Key: "theme", Label: "Theme", DataType: model.DataTypeString})

	statePath := filepath.Join(t.TempDir(), "session.json")
	run := func(opts listOptions) string {
		t.Helper()
		opts.statePath = statePath
		var buf bytes.Buffer
		if err := runList(ctx, cc, &buf, opts); err != nil {
			t.Fatalf("runList: %v", err)
		}
		return buf.String()
	}

	collapsed := "▸ region  Region  string\n  theme  Theme  string\n"
	expanded := "▾ region  Region  string\n└──   region.vat  VAT  number\n  theme  Theme  string\n"

	if got := run(listOptions{}); got != collapsed {
		t.Fatalf("initial list:\n%s\nwant:\n%s", got, collapsed)
	}
	if got := run(listOptions{expand: []string{"region"}}); got != expanded {
		t.Fatalf("expanded list:\n%s\nwant:\n%s", got, expanded)
	}
	if got := run(listOptions{}); got != expanded {
		t.Fatalf("expansion not restored:\n%s", got)
	}
	if got := run(listOptions{limit: 1}); got != "▾ region  Region  string\n... 2 more rows\n" {
		t.Fatalf("limited list:\n%s", got)
	}
	if got := run(listOptions{collapse: []string{region.ID}}); got != collapsed {
		t.Fatalf("collapsed list:\n%s", got)
	}
	if got := run(listOptions{all: true, reset: true}); got != expanded {
		t.Fatalf("--all list:\n%s", got)
	}

	var buf bytes.Buffer
	err := runList(ctx, cc, &buf, listOptions{expand: []string{"missing"}})
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected unknown record error, got %v", err)
	}
}

func TestRunList_Filtered(t *testing.T) {
	cc := newTestClient(t)
	ctx := context.Background()
	off := false
	region := mustCreate(t, cc, &client.CreateRequest{Key: "region", Label: "Region", DataType: model.DataTypeString})
	mustCreate(t, cc, &client.CreateRequest{Key: "region.vat", Label: "VAT", DataType: model.DataTypeNumber, ParentConfigID: region.ID})
	mustCreate(t, cc, &client.CreateRequest{Key: "theme", Label: "Theme", DataType: model.DataTypeString, Active: &off})

	for _, tc := range []struct {
		name string
		opts listOptions
		want string
	}{
		{"search", listOptions{search: "VAT"}, "  region.vat  VAT  number\n"},
		{"search matches children", listOptions{search: "regi"}, "  region  Region  string\n  region.vat  VAT  number\n"},
		{"inactive", listOptions{active: &off}, "  theme  Theme  string  inactive\n"},
		{"no match", listOptions{search: "zzz"}, "No configurations found.\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := runList(ctx, cc, &buf, tc.opts); err != nil {
				t.Fatalf("runList: %v", err)
			}
			if buf.String() != tc.want {
				t.Fatalf("got:\n%s\nwant:\n%s", buf.String(), tc.want)
			}
		})
	}
}

func TestRunList_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := runList(context.Background(), newTestClient(t), &buf, listOptions{}); err != nil {
		t.Fatalf("runList: %v", err)
	}
	if buf.String() != "No configurations found.\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRunShow(t *testing.T) {
	cc := newTestClient(t)
	parent := mustCreate(t, cc, regionRequest())
	mustCreate(t, cc, &client.CreateRequest{
		Key:            "region.vat",
		Label:          "VAT",
		DataType:       model.DataTypeNumber,
		ParentConfigID: parent.ID,
		Translations:   []model.Translation{{Language: "de-de", Label: "MwSt"}},
	})

	var buf bytes.Buffer
	if err := runShow(context.Background(), cc, &buf, "region.vat", "de"); err != nil {
		t.Fatalf("runShow: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"MwSt (de-DE)", "region (" + parent.ID + ")", "Translations:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if err := runShow(context.Background(), cc, &buf, "nope", ""); !client.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteCmd(t *testing.T) {
	cc := newTestClient(t)
	confClient = cc
	t.Cleanup(func() { confClient = nil })
	c := mustCreate(t, cc, &client.CreateRequest{Key: "theme", Label: "Theme", DataType: model.DataTypeString})

	var out, errOut bytes.Buffer
	deleteCmd.SetOut(&out)
	deleteCmd.SetErr(&errOut)
	deleteCmd.SetContext(context.Background())

	err := deleteCmd.RunE(deleteCmd, []string{"theme", "missing"})
	if err == nil || err.Error() != "1 of 2 deletes failed" {
		t.Fatalf("expected one failure, got %v", err)
	}
	if out.String() != "Deleted theme ("+c.ID+")\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
	if !strings.Contains(errOut.String(), "Error deleting missing") {
		t.Fatalf("unexpected error output %q", errOut.String())
	}
}

func TestHealthCmd(t *testing.T) {
	confClient = newTestClient(t)
	t.Cleanup(func() { confClient = nil })

	var out bytes.Buffer
	healthCmd.SetOut(&out)
	healthCmd.SetContext(context.Background())
	if err := healthCmd.RunE(healthCmd, nil); err != nil {
		t.Fatalf("health: %v", err)
	}
	if out.String() != "Health: healthy\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}
