package main

import (
	"context"
	"fmt"
	"os"

	"github.com/policypal/palgraph"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long:  `Runs the pipeline locally and chats over stdin/stdout. Suspension prompts are answered inline; an empty answer dismisses them.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		engine, cleanup, err := buildEngine(cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing engine: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		user, _ := cmd.Flags().GetString("user")
		runner := palgraph.NewRunner(user)
		runner.Input = os.Stdin
		runner.Output = os.Stdout
		if thread, _ := cmd.Flags().GetString("thread"); thread != "" {
			runner.ThreadID = thread
		}

		if err := runner.Run(context.Background(), engine); err != nil {
			fmt.Printf("Chat error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("user", "local", "User id for the session")
	chatCmd.Flags().String("thread", "", "Resume an existing thread id")
}
