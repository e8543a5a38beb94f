package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/policypal/palgraph/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the pipeline graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the reasoning pipeline. With --thread, highlights the node a suspended thread is waiting in.`,
	Run: func(cmd *cobra.Command, args []string) {
		threadID, _ := cmd.Flags().GetString("thread")

		var overlay *graph.Overlay
		if threadID != "" {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
			engine, cleanup, err := buildEngine(cfg, logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error initializing engine: %v\n", err)
				os.Exit(1)
			}
			defer cleanup()

			state, err := engine.Sessions().Load(cmd.Context(), threadID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading thread: %v\n", err)
				os.Exit(1)
			}
			overlay = &graph.Overlay{
				CurrentNode: state.CurrentNode,
				Pending:     state.Pending,
			}
		}

		fmt.Print(graph.GenerateMermaid(overlay))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("thread", "", "highlight the current node of this thread")
}
