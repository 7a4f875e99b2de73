package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume-ai",
		Short: "Summarize documents, articles and videos with Gemini",
		Long: `Resume AI extracts the text of an uploaded document, a web article or a video's
captions and produces a simplified summary, a structured breakdown and critical questions,
followed by a conversation grounded in that text.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewUserCmd())

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
