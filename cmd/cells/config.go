package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vango-dev/cells/internal/config"
	"github.com/vango-dev/cells/internal/errors"
)

func configCmd(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cells.json",
	}

	cmd.AddCommand(
		configInitCmd(dir),
		configShowCmd(dir),
		configValidateCmd(dir),
	)
	return cmd
}

func configInitCmd(dir *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a cells.json with default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(*dir, config.ConfigFileName)
			if config.Exists(*dir) && !force {
				return errors.Newf(errors.CategoryConfig, "%s already exists", path).
					WithSuggestion("Use --force to overwrite it")
			}
			if err := config.New().SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func configShowCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*dir)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func configValidateCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check cells.json for errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !config.Exists(*dir) {
				return errors.New("C103").
					WithDetail(filepath.Join(*dir, config.ConfigFileName) + " does not exist")
			}
			cfg, err := config.Load(*dir)
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "%s is valid", cfg.Path())
			return nil
		},
	}
}
