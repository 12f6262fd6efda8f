package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/confengine/internal/client"
	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/rules"
)

var updateFlags recordFlags

var errNothingToUpdate = errors.New("nothing to update; pass at least one field flag")

var updateCmd = &cobra.Command{
	Use:     "update <id|key>",
	Short:   "Update a configuration",
	GroupID: "configs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fl := cmd.Flags()

		existing, err := confClient.ResolveConfiguration(ctx, args[0])
		if err != nil {
			return fmt.Errorf("resolving %q: %w", args[0], err)
		}

		req, err := buildUpdateRequest(ctx, confClient, existing, &updateFlags, fl.Changed)
		if err != nil {
			return err
		}
		if fl.Changed("active") {
			req.Active = boolPtr(true)
		}
		if fl.Changed("inactive") {
			req.Active = boolPtr(false)
		}
		if req.IsEmpty() {
			return errNothingToUpdate
		}

		c, err := confClient.UpdateConfiguration(ctx, existing.ID, req)
		if err != nil {
			return fmt.Errorf("updating configuration: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), c)
		}
		renderConfiguration(cmd.OutOrStdout(), c, nil, "")
		return nil
	},
}

// buildUpdateRequest carries only the fields whose flags were set. Rule flags
// are applied on top of the record's current rule set, unless the data type
// changes, in which case the old rules are dropped.
func buildUpdateRequest(ctx context.Context, cc client.ConfigClient, existing *model.Configuration, f *recordFlags, changed func(string) bool) (*client.UpdateRequest, error) {
	req := &client.UpdateRequest{}
	if changed("label") {
		req.Label = &f.label
	}
	if changed("description") {
		req.Description = &f.description
	}

	dataType := existing.DataType
	typeChanged := false
	if changed("type") {
		dt, err := parseDataType(f.dataType)
		if err != nil {
			return nil, err
		}
		typeChanged = dt != existing.DataType
		dataType = dt
		req.DataType = &dt
	}

	rs := existing.ValidationRules
	if typeChanged || slices.ContainsFunc(ruleFlagNames, changed) {
		base := rules.Form{DataType: dataType}
		if !typeChanged {
			if cur, err := rules.FormOf(dataType, existing.ValidationRules); err == nil {
				base = cur
			}
		}
		form, err := f.overlay(base, changed)
		if err != nil {
			return nil, err
		}
		if rs, err = rules.Evaluate(form); err != nil {
			return nil, err
		}
		req.ValidationRules = &rs
	}

	defaultValue := existing.DefaultValue
	if changed("default") {
		defaultValue = f.defaultValue
		req.DefaultValue = &f.defaultValue
	}
	if req.DefaultValue != nil || req.ValidationRules != nil {
		if err := rules.CheckDefault(dataType, rs, defaultValue); err != nil {
			return nil, err
		}
	}

	parent, err := updatedParent(ctx, cc, existing, f, changed, req)
	if err != nil {
		return nil, err
	}

	switch {
	case changed("condition"):
		conds, err := parseConditions(f.conditions)
		if err != nil {
			return nil, err
		}
		if conds, err = rules.CheckConditions(parent, conds); err != nil {
			return nil, err
		}
		if conds == nil {
			conds = []model.ParentCondition{}
		}
		req.ParentConditions = &conds
	case changed("clear-conditions"):
		req.ParentConditions = &[]model.ParentCondition{}
	case changed("parent") && parent != nil:
		// Existing conditions must still hold under the new parent.
		if _, err := rules.CheckConditions(parent, existing.ParentConditions); err != nil {
			return nil, err
		}
	}

	if changed("translation") {
		ts, err := parseTranslations(f.translations)
		if err != nil {
			return nil, err
		}
		if ts == nil {
			ts = []model.Translation{}
		}
		req.Translations = &ts
	}
	return req, nil
}

// updatedParent records a parent change on req and returns the parent that
// conditions are checked against. The current parent is only fetched when
// new conditions are given.
func updatedParent(ctx context.Context, cc client.ConfigClient, existing *model.Configuration, f *recordFlags, changed func(string) bool, req *client.UpdateRequest) (*model.Configuration, error) {
	switch {
	case changed("clear-parent"):
		detach := ""
		req.ParentConfigID = &detach
		return nil, nil
	case changed("parent"):
		p, err := cc.ResolveConfiguration(ctx, f.parent)
		if err != nil {
			return nil, fmt.Errorf("resolving parent %q: %w", f.parent, err)
		}
		if p.ID == existing.ID {
			return nil, fmt.Errorf("a configuration cannot be its own parent")
		}
		req.ParentConfigID = &p.ID
		return p, nil
	case existing.HasParent() && changed("condition"):
		p, err := cc.GetConfiguration(ctx, existing.ParentID())
		if err != nil {
			return nil, fmt.Errorf("loading parent: %w", err)
		}
		return p, nil
	}
	return nil, nil
}

func boolPtr(b bool) *bool { return &b }

func init() {
	addRecordFlags(updateCmd, &updateFlags)
	fl := updateCmd.Flags()
	fl.Bool("active", false, "mark the record active")
	fl.Bool("inactive", false, "mark the record inactive")
	fl.Bool("clear-parent", false, "detach the record from its parent")
	fl.Bool("clear-conditions", false, "remove all parent conditions")
	updateCmd.MarkFlagsMutuallyExclusive("active", "inactive")
	updateCmd.MarkFlagsMutuallyExclusive("parent", "clear-parent")
	updateCmd.MarkFlagsMutuallyExclusive("condition", "clear-conditions")
}
