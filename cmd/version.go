package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at link time with -ldflags "-X".
var Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the treevm version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "treevm %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
