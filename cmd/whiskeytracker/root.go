// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/whiskeytracker/whiskeytracker/internal/config"
	"github.com/whiskeytracker/whiskeytracker/internal/xdg"
)

// configFlag names the persistent flag holding the YAML config path.
const configFlag = "config"

// NewRootCmd creates the root command for the WhiskeyTracker CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whiskeytracker",
		Short: "WhiskeyTracker - whiskey tasting tracker API",
		Long: `WhiskeyTracker serves a REST API for registering users, issuing
bearer tokens and resetting passwords, backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String(configFlag, "", "config file path (YAML, default $XDG_CONFIG_HOME/whiskeytracker/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig reads the configuration visible to cmd: its inherited flags,
// the --config file and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString(configFlag)
	if err != nil {
		path = ""
	}
	if path == "" {
		path, err = xdg.DefaultConfigFile()
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}
	//nolint:wrapcheck // config errors are already coded
	return config.Load(cmd.Flags(), path)
}
