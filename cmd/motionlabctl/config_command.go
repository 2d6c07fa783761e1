package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/motionlab/backend/internal/clientconfig"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the client configuration",
	}

	var path string
	var overwrite bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := path
			if target == "" {
				var err error
				if target, err = clientconfig.DefaultConfigPath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat config: %w", err)
			}
			if err := clientconfig.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "", "Destination (defaults to the standard config location)")
	initCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, cfg)
			}
			rows := [][]string{
				{"base_url", cfg.BaseURL},
				{"state_file", cfg.StateFile},
				{"request_timeout", strconv.Itoa(cfg.RequestTimeout)},
				{"admin.demo", yesNo(cfg.Admin.Demo)},
				{"admin.refresh_interval", strconv.Itoa(cfg.Admin.RefreshInterval)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
