package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"simrun/internal/config"
	"simrun/internal/ledger"
	"simrun/internal/storage"
	"simrun/pkg/utils"
)

// Runner ties together Materializer + Dispatcher + Aggregator + ledger.
type Runner struct {
	Opts         config.Options
	Materializer *Materializer
	Dispatcher   *Dispatcher
	Logs         *storage.LogStorage
	Logger       *slog.Logger
	RunID        string
}

// Outputs are the run-level files written after dispatch. Empty paths are
// skipped.
type Outputs struct {
	SummaryPath string
	LedgerPath  string
}

// NewRunner loads the templates and wires a dispatcher over real
// simulator processes.
func NewRunner(opts config.Options, logger *slog.Logger) (*Runner, error) {
	m, err := NewMaterializer(opts, logger)
	if err != nil {
		return nil, err
	}
	logs := storage.NewLogStorage(opts.TaskDir)
	return &Runner{
		Opts:         opts,
		Materializer: m,
		Dispatcher:   NewDispatcher(NewExecutor(), logs, opts, logger),
		Logs:         logs,
		Logger:       logger,
		RunID:        uuid.NewString(),
	}, nil
}

// Materialize renders scripts for every descriptor, in order. The first
// failure aborts before any job runs.
func (r *Runner) Materialize(descs []Descriptor) ([]*Record, error) {
	records := make([]*Record, 0, len(descs))
	for _, d := range descs {
		rec, err := r.Materializer.Materialize(d)
		if err != nil {
			return nil, fmt.Errorf("materialize %s: %w", d.Path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Execute dispatches records, then aggregates them. A fail-fast abort is
// returned without writing the summary.
func (r *Runner) Execute(ctx context.Context, records []*Record, out Outputs) (Summary, error) {
	r.Logger.Info("starting simulation run", "run_id", r.RunID, "jobs", len(records))

	if err := r.Dispatcher.Dispatch(ctx, records); err != nil {
		return Summary{Total: len(records)}, err
	}

	sum, err := Aggregate(out.SummaryPath, records, r.Logger)
	if err != nil {
		return sum, err
	}

	if out.LedgerPath != "" && len(records) > 0 {
		if err := r.record(out.LedgerPath, records); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// record writes one hash-chained ledger entry per job.
func (r *Runner) record(path string, records []*Record) error {
	l, err := ledger.Create(path)
	if err != nil {
		return &IOError{Op: "create ledger", Path: path, Err: err}
	}
	for _, rec := range records {
		var logHash string
		if rec.LogPath() != "" {
			h, err := utils.HashFile(r.Logs.Resolve(rec.LogPath()))
			if err != nil {
				r.Logger.Warn("cannot hash job log", "log", rec.LogPath(), "error", err)
			} else {
				logHash = h
			}
		}
		e := ledger.NewEntry(r.RunID, rec.Benchmark, rec.DescriptorPath, rec.Status(),
			rec.Errors(), rec.Warnings(), rec.LogPath(), logHash)
		if err := l.Append(e); err != nil {
			return &IOError{Op: "append ledger", Path: path, Err: err}
		}
	}
	r.Logger.Info("ledger stored", "path", l.Path(), "entries", len(records), "head", l.LastHash())
	return nil
}
