// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-attempt downloads that failed in an earlier run",
	Long: `Retry reads the existing manifest of each selected target and tries
again to download every paper whose PDF is not on disk. Listings are not
fetched again; papers that already have a PDF are left unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTargets(cmd, true)
	},
}

func init() {
	rootCmd.AddCommand(retryCmd)
}
