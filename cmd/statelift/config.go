package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/statelift/internal/config"
	"github.com/vango-dev/statelift/internal/errors"
)

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage statelift.json",
	}
	cmd.AddCommand(configInitCmd(flags), configShowCmd(flags))
	return cmd
}

func configInitCmd(flags *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a statelift.json with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.Exists(flags.dir) && !force {
				return errors.New("SL203").
					WithDetail(config.ConfigFileName + " already exists in " + flags.dir).
					WithSuggestion("Pass --force to overwrite it")
			}

			path := filepath.Join(flags.dir, config.ConfigFileName)
			if err := config.New().SaveTo(path); err != nil {
				return err
			}
			success("Created %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func configShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after environment overrides.

Every field can be overridden with a STATELIFT_ variable, for example
STATELIFT_BENCH_ROWS=500 or STATELIFT_LOG_LEVEL=debug.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			if cfg.Path() != "" {
				info("from %s", cfg.Path())
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
