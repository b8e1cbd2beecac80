package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd is the base command when memhier is called without a subcommand
// (grounded on the teacher's akita/cmd/root.go).
var rootCmd = &cobra.Command{
	Use:   "memhier",
	Short: "memhier simulates a cache-coherent memory hierarchy",
	Long: `memhier drives the cache, MSHR, coherence, and CPU timing model ` +
		`through a simulated instruction stream, reporting statistics and ` +
		`optionally checkpointing and resuming its architectural state.`,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading .env overlay: %w", err)
		}
		return nil
	},
}

// Execute adds every subcommand to rootCmd and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
