// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stagegate/stagegate/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "stagegate",
	Short: "Stagegate - egress store lifecycle manager",
	Long: `Stagegate manages access-controlled egress stores for research workspaces.
Each store is a prefix in a shared staging bucket whose bucket policy is
reconciled as workspaces come and go. Export requests snapshot the store's
objects into a manifest and publish a notification for downstream processing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&config.FileDirectory, "config_dir", ".", "Directory for configuration files")
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
