package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"simrun/internal/ledger"
	"simrun/internal/storage"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <ledger.jsonl>",
		Short: "Check a result ledger against its job logs",
		Long: `Recompute the hash chain of a result ledger and re-hash every job log it
references. Log paths starting with <task_dir> are resolved against
--task_dir (or the configured task directory).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("task_dir") {
				opts.TaskDir, _ = cmd.Flags().GetString("task_dir")
			}

			l, err := ledger.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open ledger: %w", err)
			}
			if err := l.VerifyChain(); err != nil {
				return fmt.Errorf("ledger verification failed: %w", err)
			}
			logs := storage.NewLogStorage(opts.TaskDir)
			if err := l.VerifyLogs(logs.Resolve); err != nil {
				return fmt.Errorf("ledger verification failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ledger verification ok: %d entries, head %s\n", len(l.Entries()), l.LastHash())
			return nil
		},
	}
	cmd.Flags().String("task_dir", "", "Root of the task tree")
	return cmd
}
