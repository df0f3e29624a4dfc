package main

import (
	"os"

	"github.com/spf13/cobra"

	"simrun/internal/logging"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <run dir>",
		Short: "Serve a run's result table and ledger over HTTP",
		Long: `Serve the result table and ledger of one run directory read-only:

  GET /summary         result table as JSON
  GET /ledger          ledger entries as JSON
  GET /ledger/verify   recompute the chain and re-hash the job logs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("task_dir") {
				opts.TaskDir, _ = cmd.Flags().GetString("task_dir")
			}
			addr, _ := cmd.Flags().GetString("addr")

			logger := logging.NewLogger(opts.LogLevel, cmd.OutOrStdout())
			return newResultServer(args[0], opts.TaskDir, logger).ListenAndServe(cmd.Context(), addr)
		},
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	cmd.Flags().String("addr", "localhost:"+port, "Listen address")
	cmd.Flags().String("task_dir", "", "Root of the task tree")
	return cmd
}
