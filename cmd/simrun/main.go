package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"simrun/internal/config"
)

var version = "0.1.0-dev"

// reportedError wraps an error that has already gone through the run logger,
// so main only has to set the exit code.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		var rep reportedError
		if !errors.As(err, &rep) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "simrun",
		Short: "Parallel ModelSim job runner",
		Long: `simrun renders ModelSim project scripts for a set of simulation decks,
runs the simulator on them with bounded concurrency, scrapes the error and
warning counters from each run and writes a result table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.DefaultFile+" if present)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newVerifyCmd(),
		newServeCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "simrun version %s\n", version)
		},
	}
}

// loadOptions reads the config file named by --config (or the default one)
// and the environment.
func loadOptions(cmd *cobra.Command) (config.Options, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
