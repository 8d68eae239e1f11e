// Package main is the scry-forge command. It serves the generation API and
// its workers, applies database migrations and follows job progress.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scry-forge",
		Short: "Learning artifact generation service",
		Long: `scry-forge turns a topic, text or uploaded sources into quizzes,
flashcards, study guides and summaries. Requests are deduplicated, generated
in chunks by background workers and reported through lifecycle events.`,
		Version:      Version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newWatchCmd())
	return root
}
