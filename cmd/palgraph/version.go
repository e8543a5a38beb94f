package main

import (
	"fmt"
	"strings"

	"github.com/policypal/palgraph"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of palgraph",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("palgraph version %s\n", strings.TrimSpace(palgraph.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
