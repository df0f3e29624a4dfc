package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"simrun/internal/config"
	"simrun/internal/core"
	"simrun/internal/deck"
	"simrun/internal/logging"
)

// stdinIsTerminal reports whether the confirmation prompt can be answered.
var stdinIsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <descriptor.ini>... | <task> [run_number]",
		Short: "Generate ModelSim scripts and run the simulations",
		Long: `Generate ModelSim scripts for each simulation deck and optionally run them.

The arguments are either simulation deck files, or a task name with an
optional run number. A task is looked up in the working directory and then
under --task_dir; its run (run003, or latest when no number is given) is
scanned for the benchmark directories the flow reported in *_out.log.

In task mode the run log, the result table and the result ledger are written
to the task's run directory.

Examples:
  simrun run basic_tests/full_testbench --run_sim
  simrun run basic_tests/full_testbench 3 --run_sim --maxthreads 8
  simrun run a/simulation_deck_info.ini b/simulation_deck_info.ini`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			opts, err = applyRunFlags(cmd, opts)
			if err != nil {
				return err
			}
			return runSimulations(cmd.Context(), cmd, opts, args)
		},
	}

	cmd.Flags().Int("maxthreads", 2, "Number of simulations to run in parallel")
	cmd.Flags().Bool("debug", false, "Enable debug logging")
	cmd.Flags().String("modelsim_proc_tmpl", "", "Proc template file (default: built-in)")
	cmd.Flags().String("modelsim_runsim_tmpl", "", "Runsim template file (default: built-in)")
	cmd.Flags().Bool("run_sim", false, "Run the simulations instead of only generating scripts")
	cmd.Flags().String("modelsim_proj_name", "", "ModelSim project name (default <BENCHMARK>_MMSIM)")
	cmd.Flags().String("modelsim_ini", "", "ModelSim init file")
	cmd.Flags().Bool("skip_prompt", false, "Do not ask before launching simulations")
	cmd.Flags().String("ini_filename", "", "Simulation deck file name looked for in task mode")
	cmd.Flags().Bool("continue_on_fail", false, "Record failing jobs and keep running the rest")
	cmd.Flags().String("task_dir", "", "Root of the task tree")
	cmd.Flags().String("simulator", "", "Simulator executable")
	cmd.Flags().String("summary", "", "Result table path (task mode default: <run dir>/modelsim_result.csv)")
	cmd.Flags().String("ledger", "", "Result ledger path (task mode default: <run dir>/modelsim_ledger.jsonl)")

	return cmd
}

// applyRunFlags lays explicitly set flags over opts and freezes the result.
func applyRunFlags(cmd *cobra.Command, opts config.Options) (config.Options, error) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}

	if flags.Changed("maxthreads") {
		opts.MaxThreads, _ = flags.GetInt("maxthreads")
	}
	if debug, _ := flags.GetBool("debug"); debug {
		opts.LogLevel = "debug"
	}
	str("modelsim_proc_tmpl", &opts.ProcTemplate)
	str("modelsim_runsim_tmpl", &opts.RunsimTemplate)
	str("modelsim_proj_name", &opts.ProjectName)
	str("modelsim_ini", &opts.ModelsimIni)
	str("ini_filename", &opts.IniFilename)
	str("task_dir", &opts.TaskDir)
	str("simulator", &opts.Simulator)
	boolean("run_sim", &opts.RunSim)
	boolean("skip_prompt", &opts.SkipPrompt)
	boolean("continue_on_fail", &opts.ContinueOnFail)

	final, err := opts.Finalize()
	if err != nil {
		return config.Options{}, fmt.Errorf("invalid options: %w", err)
	}
	return final, nil
}

// runSimulations is the body of "simrun run" once the options are final.
func runSimulations(ctx context.Context, cmd *cobra.Command, opts config.Options, args []string) (err error) {
	sink := logging.NewSink(cmd.OutOrStdout())
	defer sink.Close()
	logger := logging.NewLogger(opts.LogLevel, sink)
	defer func() {
		if err != nil {
			logger.Error("simrun failed", "error", err)
			err = reportedError{err}
		}
	}()

	var out core.Outputs
	var paths []string
	if isFile(args[0]) {
		paths = args
	} else {
		task, err := resolveTask(opts, args)
		if err != nil {
			return err
		}
		if err := sink.AttachFile(task.LogPath()); err != nil {
			return &core.IOError{Op: "open run log", Path: task.LogPath(), Err: err}
		}
		logger.Info("task resolved", "task", task.Name, "run", task.Run, "dir", task.RunDir)
		if opts.TaskDir == "" {
			opts.TaskDir = task.Dir
		}
		if paths, err = deck.Discover(task, opts.IniFilename, logger); err != nil {
			return err
		}
		out = core.Outputs{SummaryPath: task.SummaryPath(), LedgerPath: task.LedgerPath()}
	}
	if p, _ := cmd.Flags().GetString("summary"); p != "" {
		out.SummaryPath = p
	}
	if p, _ := cmd.Flags().GetString("ledger"); p != "" {
		out.LedgerPath = p
	}

	descs, err := deck.LoadAll(paths)
	if err != nil {
		return err
	}

	runner, err := core.NewRunner(opts, logger)
	if err != nil {
		return err
	}
	records, err := runner.Materialize(descs)
	if err != nil {
		return err
	}

	if !opts.RunSim {
		listScripts(logger, records)
		return nil
	}

	if !opts.SkipPrompt && stdinIsTerminal() {
		if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), len(records)) {
			logger.Info("simulations not launched")
			return nil
		}
	}

	sum, err := runner.Execute(ctx, records, out)
	if err != nil {
		return err
	}
	logger.Info("simulation run complete", "passed", sum.Passed, "total", sum.Total, "summary", sum.Path)
	return nil
}

func resolveTask(opts config.Options, args []string) (deck.Task, error) {
	if len(args) > 2 {
		return deck.Task{}, fmt.Errorf("expected <task> [run_number], got %d arguments", len(args))
	}
	number := ""
	if len(args) == 2 {
		number = args[1]
	}
	run, err := deck.RunLabel(number)
	if err != nil {
		return deck.Task{}, err
	}
	return deck.ResolveTask(args[0], run, opts.TaskDir)
}

func listScripts(logger *slog.Logger, records []*core.Record) {
	logger.Info("scripts created, simulations not run", "jobs", len(records))
	for _, rec := range records {
		logger.Info("created", "benchmark", rec.Benchmark, "runsim", rec.ScriptPath, "proc", rec.ProcPath)
	}
}

// confirm asks whether to launch n simulations. Anything but y or yes is a
// no.
func confirm(in io.Reader, out io.Writer, n int) bool {
	fmt.Fprintf(out, "Launch %d simulations? [y/N] ", n)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
