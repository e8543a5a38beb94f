package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "palgraph",
	Short: "Palgraph is a resumable reasoning pipeline for document assistants",
	Long:  `Palgraph routes user turns through intent classification, document resolution, validation, and grounded action execution, pausing for user input whenever the pipeline is unsure.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
}
