// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Mirefall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirefall",
		Short: "Mirefall - a realtime game world server",
		Long: `Mirefall is a realtime game world server handling client command
dispatch, timed skill casts, combat resolution, and character persistence.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}
