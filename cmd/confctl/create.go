package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/confengine/internal/client"
	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/rules"
)

var createFlags recordFlags

var createCmd = &cobra.Command{
	Use:     "create <key>",
	Short:   "Create a configuration",
	GroupID: "configs",
	Args:    cobra.ExactArgs(1),
	Example: `  confctl create region --label Region --type list --mode single \
      --option Europe=eu --option "United States=us"
  confctl create region.vat --label VAT --type number --min 0 --max 100 \
      --parent region --condition 'in:eu:20'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		inactive, _ := cmd.Flags().GetBool("inactive")

		req, err := buildCreateRequest(ctx, confClient, args[0], &createFlags)
		if err != nil {
			return err
		}
		if inactive {
			req.Active = new(bool)
		}

		c, err := confClient.CreateConfiguration(ctx, req)
		if err != nil {
			return fmt.Errorf("creating configuration: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), c)
		}
		renderConfiguration(cmd.OutOrStdout(), c, nil, "")
		return nil
	},
}

// buildCreateRequest turns flags into a request and runs the rule, default
// and parent condition checks before anything is sent.
func buildCreateRequest(ctx context.Context, cc client.ConfigClient, key string, f *recordFlags) (*client.CreateRequest, error) {
	dataType, err := parseDataType(f.dataType)
	if err != nil {
		return nil, err
	}
	form, err := f.form(dataType)
	if err != nil {
		return nil, err
	}
	rs, err := rules.Evaluate(form)
	if err != nil {
		return nil, err
	}

	var parent *model.Configuration
	if f.parent != "" {
		if parent, err = cc.ResolveConfiguration(ctx, f.parent); err != nil {
			return nil, fmt.Errorf("resolving parent %q: %w", f.parent, err)
		}
	}
	conds, err := parseConditions(f.conditions)
	if err != nil {
		return nil, err
	}
	translations, err := parseTranslations(f.translations)
	if err != nil {
		return nil, err
	}

	sub, err := rules.Check(rules.Submission{
		DataType:     dataType,
		Rules:        rs,
		DefaultValue: f.defaultValue,
		Parent:       parent,
		Conditions:   conds,
	})
	if err != nil {
		return nil, err
	}

	req := &client.CreateRequest{
		Key:              key,
		Label:            f.label,
		Description:      f.description,
		DataType:         dataType,
		DefaultValue:     f.defaultValue,
		ValidationRules:  rs,
		ParentConditions: sub.Conditions,
		Translations:     translations,
	}
	if parent != nil {
		req.ParentConfigID = parent.ID
	}
	return req, nil
}

func init() {
	addRecordFlags(createCmd, &createFlags)
	createCmd.Flags().Bool("inactive", false, "create the record inactive")
	_ = createCmd.MarkFlagRequired("label")
	_ = createCmd.MarkFlagRequired("type")
}
