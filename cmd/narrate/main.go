package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alnah/go-narrate/internal/cli"
	"github.com/alnah/go-narrate/internal/interrupt"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// First SIGINT/SIGTERM cancels ctx, a second one within the window exits.
	handler, ctx := interrupt.NewHandler(context.Background())
	defer handler.Stop()

	// Create the CLI environment with production defaults.
	env := cli.DefaultEnv()

	rootCmd := &cobra.Command{
		Use:     "narrate",
		Short:   "Turn blog post scripts into narrated MP3 audio",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.ServeCmd(env))
	rootCmd.AddCommand(cli.MigrateCmd(env))
	rootCmd.AddCommand(cli.GenerateCmd(env))
	rootCmd.AddCommand(cli.RegenerateCmd(env))
	rootCmd.AddCommand(cli.JobsCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		handler.Stop()
		os.Exit(cli.ExitCode(err))
	}
}
