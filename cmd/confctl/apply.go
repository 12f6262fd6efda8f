package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/confengine/internal/client"
	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/rules"
)

var applyCmd = &cobra.Command{
	Use:     "apply -f <file.yaml>",
	Short:   "Create or update configurations from a YAML file",
	GroupID: "configs",
	Args:    cobra.NoArgs,
	Long: `Create or update configurations from a YAML file. Records are matched by
key. Parents are referenced by key and applied before their children.

  configurations:
    - key: region
      label: Region
      type: list
      rules:
        mode: single
        options:
          - {label: Europe, value: eu}
    - key: region.vat
      label: VAT
      type: number
      parent: region
      rules: {min: 0, max: 100}
      conditions:
        - {operator: in, value: [eu], default: 20}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		var in io.Reader = os.Stdin
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		entries, err := decodeApplyFile(in)
		if err != nil {
			return err
		}
		return runApply(cmd.Context(), confClient, cmd.OutOrStdout(), entries, dryRun)
	},
}

type applyFile struct {
	Configurations []applyEntry `yaml:"configurations"`
}

type applyEntry struct {
	Key          string             `yaml:"key"`
	Label        string             `yaml:"label"`
	Description  string             `yaml:"description"`
	Type         string             `yaml:"type"`
	Default      any                `yaml:"default"`
	Active       *bool              `yaml:"active"`
	Parent       string             `yaml:"parent"`
	Rules        applyRules         `yaml:"rules"`
	Conditions   []applyCondition   `yaml:"conditions"`
	Translations []applyTranslation `yaml:"translations"`
}

type applyRules struct {
	Required bool          `yaml:"required"`
	Regex    string        `yaml:"regex"`
	Min      any           `yaml:"min"`
	Max      any           `yaml:"max"`
	Start    any           `yaml:"start"`
	End      any           `yaml:"end"`
	Mode     string        `yaml:"mode"`
	Options  []applyOption `yaml:"options"`
}

type applyOption struct {
	Label any `yaml:"label"`
	Value any `yaml:"value"`
}

type applyCondition struct {
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
	Default  any    `yaml:"default"`
}

type applyTranslation struct {
	Language    string `yaml:"language"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
}

func decodeApplyFile(r io.Reader) ([]applyEntry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f applyFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return f.Configurations, nil
}

// scalarString renders a YAML scalar as the text the API expects. Dates
// decode to time.Time and are written back as YYYY-MM-DD.
func scalarString(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case time.Time:
		return v.Format(model.DateLayout), nil
	case []any:
		parts := make([]string, len(v))
		for i, p := range v {
			s, err := scalarString(p)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return model.JoinValues(parts...), nil
	}
	return cast.ToStringE(v)
}

func (s applyEntry) form(dataType model.DataType) (rules.Form, error) {
	f := rules.Form{
		DataType: dataType,
		Required: s.Rules.Required,
		Regex:    s.Rules.Regex,
		Mode:     model.ListMode(s.Rules.Mode),
	}
	var err error
	for _, field := range []struct {
		dst *string
		src any
	}{
		{&f.Min, s.Rules.Min},
		{&f.Max, s.Rules.Max},
		{&f.StartDate, s.Rules.Start},
		{&f.EndDate, s.Rules.End},
	} {
		if *field.dst, err = scalarString(field.src); err != nil {
			return f, err
		}
	}
	for _, o := range s.Rules.Options {
		label, err := scalarString(o.Label)
		if err != nil {
			return f, err
		}
		value, err := scalarString(o.Value)
		if err != nil {
			return f, err
		}
		if value == "" {
			value = label
		}
		f.Options = append(f.Options, model.ListOption{Label: label, Value: value})
	}
	return f, nil
}

func (s applyEntry) conditions() ([]model.ParentCondition, error) {
	var out []model.ParentCondition
	for _, c := range s.Conditions {
		value, err := scalarString(c.Value)
		if err != nil {
			return nil, err
		}
		def, err := scalarString(c.Default)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ParentCondition{Operator: model.Operator(c.Operator), Value: value, DefaultValue: def})
	}
	return out, nil
}

func (s applyEntry) translations() []model.Translation {
	if s.Translations == nil {
		return nil
	}
	out := make([]model.Translation, len(s.Translations))
	for i, t := range s.Translations {
		out[i] = model.Translation{Language: model.CanonicalLanguage(t.Language), Label: t.Label, Description: t.Description}
	}
	return out
}

// applyOrder returns entries with every parent defined in the file ahead of
// its children. Duplicate keys and parent cycles within the file are errors.
func applyOrder(entries []applyEntry) ([]applyEntry, error) {
	inFile := make(map[string]bool, len(entries))
	for _, s := range entries {
		if s.Key == "" {
			return nil, errors.New("every configuration needs a key")
		}
		if inFile[s.Key] {
			return nil, fmt.Errorf("duplicate key %q", s.Key)
		}
		inFile[s.Key] = true
	}

	out := make([]applyEntry, 0, len(entries))
	done := make(map[string]bool, len(entries))
	pending := entries
	for len(pending) > 0 {
		var next []applyEntry
		for _, s := range pending {
			if s.Parent == "" || !inFile[s.Parent] || done[s.Parent] {
				out = append(out, s)
				done[s.Key] = true
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(pending) {
			keys := make([]string, len(next))
			for i, s := range next {
				keys[i] = s.Key
			}
			return nil, fmt.Errorf("parent cycle between %s", strings.Join(keys, ", "))
		}
		pending = next
	}
	return out, nil
}

// runApply checks every record before sending any of it, then creates or
// updates in parent order. With dryRun nothing is sent.
func runApply(ctx context.Context, cc client.ConfigClient, w io.Writer, entries []applyEntry, dryRun bool) error {
	ordered, err := applyOrder(entries)
	if err != nil {
		return err
	}
	if len(ordered) == 0 {
		fmt.Fprintln(w, "Nothing to apply.")
		return nil
	}

	records, err := cc.ListAllConfigurations(ctx, client.ListQuery{})
	if err != nil {
		return fmt.Errorf("listing configurations: %w", err)
	}
	byKey := make(map[string]*model.Configuration, len(records))
	for _, c := range records {
		byKey[c.Key] = c
	}

	// planned holds what each file record will look like, so children can
	// be checked against parents that do not exist yet.
	planned := make(map[string]*model.Configuration, len(ordered))
	reqs := make([]*client.CreateRequest, len(ordered))
	for i, s := range ordered {
		req, c, err := planApply(s, planned, byKey)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Key, err)
		}
		planned[s.Key] = c
		reqs[i] = req
	}

	for i, s := range ordered {
		req := reqs[i]
		cur, exists := byKey[s.Key]
		verb := "create"
		if exists {
			verb = "update"
		}
		if dryRun {
			fmt.Fprintf(w, "would %s %s\n", verb, s.Key)
			continue
		}

		if s.Parent != "" {
			parent := byKey[s.Parent]
			if parent == nil {
				return fmt.Errorf("%s: parent %q was not applied", s.Key, s.Parent)
			}
			req.ParentConfigID = parent.ID
		}

		var c *model.Configuration
		if exists {
			c, err = cc.UpdateConfiguration(ctx, cur.ID, replaceRequest(req))
		} else {
			c, err = cc.CreateConfiguration(ctx, req)
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", verb, s.Key, err)
		}
		byKey[c.Key] = c
		fmt.Fprintf(w, "%sd %s (%s)\n", verb, c.Key, c.ID)
	}
	return nil
}

// planApply builds the create request for s and the record it describes,
// running the same checks the server will.
func planApply(s applyEntry, planned, existing map[string]*model.Configuration) (*client.CreateRequest, *model.Configuration, error) {
	dataType, err := parseDataType(s.Type)
	if err != nil {
		return nil, nil, err
	}
	form, err := s.form(dataType)
	if err != nil {
		return nil, nil, err
	}
	rs, err := rules.Evaluate(form)
	if err != nil {
		return nil, nil, err
	}

	var parent *model.Configuration
	if s.Parent != "" {
		if parent = planned[s.Parent]; parent == nil {
			parent = existing[s.Parent]
		}
		if parent == nil {
			return nil, nil, fmt.Errorf("unknown parent %q", s.Parent)
		}
	}

	conds, err := s.conditions()
	if err != nil {
		return nil, nil, err
	}
	def, err := scalarString(s.Default)
	if err != nil {
		return nil, nil, err
	}
	sub, err := rules.Check(rules.Submission{
		DataType:     dataType,
		Rules:        rs,
		DefaultValue: def,
		Parent:       parent,
		Conditions:   conds,
	})
	if err != nil {
		return nil, nil, err
	}

	req := &client.CreateRequest{
		Key:              s.Key,
		Label:            s.Label,
		Description:      s.Description,
		DataType:         dataType,
		DefaultValue:     def,
		Active:           s.Active,
		ValidationRules:  rs,
		ParentConditions: sub.Conditions,
		Translations:     s.translations(),
	}
	active := s.Active == nil || *s.Active
	c := &model.Configuration{
		Key:              s.Key,
		Label:            s.Label,
		DataType:         dataType,
		DefaultValue:     def,
		Active:           active,
		ValidationRules:  rs,
		ParentConditions: sub.Conditions,
	}
	return req, c, nil
}

// replaceRequest turns a create request into an update that overwrites
// every field, so the stored record matches the file.
func replaceRequest(req *client.CreateRequest) *client.UpdateRequest {
	active := req.Active == nil || *req.Active
	conds := req.ParentConditions
	if conds == nil {
		conds = []model.ParentCondition{}
	}
	ts := req.Translations
	if ts == nil {
		ts = []model.Translation{}
	}
	return &client.UpdateRequest{
		Label:            &req.Label,
		Description:      &req.Description,
		DataType:         &req.DataType,
		DefaultValue:     &req.DefaultValue,
		Active:           &active,
		ParentConfigID:   &req.ParentConfigID,
		ValidationRules:  &req.ValidationRules,
		ParentConditions: &conds,
		Translations:     &ts,
	}
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (- for stdin)")
	applyCmd.Flags().Bool("dry-run", false, "check the file and print the plan without changing anything")
	_ = applyCmd.MarkFlagRequired("file")
}
