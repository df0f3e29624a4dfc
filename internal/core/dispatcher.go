package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"simrun/internal/config"
	"simrun/internal/storage"
)

// Dispatcher runs every job's simulator process with at most Limit running
// at once.
//
// All workers start immediately and wait on a counting gate. A worker owns
// its Record outright; nothing else touches it until Dispatch returns. In
// fail-fast mode the first failing worker cancels the run before releasing
// its gate slot, so no further job is admitted, and running simulators are
// killed at their next read.
type Dispatcher struct {
	Exec           Executor
	Logs           *storage.LogStorage
	Simulator      string
	Limit          int
	ContinueOnFail bool
	Logger         *slog.Logger

	now func() time.Time
}

// NewDispatcher builds a dispatcher from the run options.
func NewDispatcher(exec Executor, logs *storage.LogStorage, opts config.Options, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		Exec:           exec,
		Logs:           logs,
		Simulator:      opts.Simulator,
		Limit:          opts.MaxThreads,
		ContinueOnFail: opts.ContinueOnFail,
		Logger:         logger,
		now:            time.Now,
	}
}

// Dispatch executes all records and returns once every worker has
// returned. The error is the one that aborted the run, or nil.
func (d *Dispatcher) Dispatch(ctx context.Context, records []*Record) error {
	limit := d.Limit
	if limit < 1 {
		limit = 1
	}
	gate := semaphore.NewWeighted(int64(limit))

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	var pending atomic.Int64
	pending.Store(int64(len(records)))

	d.Logger.Info("launching parallel workers", "jobs", len(records), "max_threads", limit)

	var g errgroup.Group
	for i, rec := range records {
		worker := fmt.Sprintf("worker_%d", i)
		g.Go(func() error {
			logger := d.Logger.With("worker", worker, "benchmark", rec.Benchmark)

			if err := gate.Acquire(runCtx, 1); err != nil {
				logger.Debug("not admitted, run cancelled")
				return nil
			}
			// Acquire may succeed on an already cancelled context
			if runCtx.Err() != nil {
				gate.Release(1)
				logger.Debug("not admitted, run cancelled")
				return nil
			}

			err := d.runJob(runCtx, worker, rec, logger)
			left := pending.Add(-1)
			logger.Info("worker finished", "status", rec.Status(), "exectime", rec.ExecTime(), "pending", left)

			if err != nil {
				err = fmt.Errorf("job %s in %s: %w", rec.DescriptorPath, rec.WorkDir, err)
				switch {
				case errors.Is(err, context.Canceled) && runCtx.Err() != nil:
					logger.Warn("simulation interrupted", "dir", rec.WorkDir)
					err = nil
				case d.ContinueOnFail:
					logger.Error("simulation failed, continuing", "dir", rec.WorkDir, "error", err)
					err = nil
				default:
					logger.Error("simulation failed, aborting run", "dir", rec.WorkDir, "error", err)
					abort(err)
				}
			}
			gate.Release(1)
			return err
		})
	}

	waitErr := g.Wait()
	if cause := context.Cause(runCtx); cause != nil {
		return cause
	}
	return waitErr
}

// runJob is the body of one admitted worker.
func (d *Dispatcher) runJob(ctx context.Context, worker string, rec *Record, logger *slog.Logger) error {
	command := []string{d.Simulator, "-c", "-do", rec.ScriptPath}

	jobLog, err := d.Logs.Open(rec.WorkDir, worker, command)
	if err != nil {
		err = &IOError{Op: "open log in", Path: rec.WorkDir, Err: err}
		now := d.now()
		rec.begin(now, "")
		rec.fail(err)
		rec.finish(now)
		return err
	}

	rec.begin(d.now(), d.Logs.Relative(jobLog.Path))
	logger.Info("running simulator", "command", strings.Join(command, " "), "dir", rec.WorkDir)

	runErr := d.Exec.Run(ctx, Invocation{Dir: rec.WorkDir, Args: command}, func(line string) error {
		if err := jobLog.WriteLine(line); err != nil {
			return &IOError{Op: "write", Path: jobLog.Path, Err: err}
		}
		counts, ok, err := ScrapeLine(line)
		if err != nil {
			return err
		}
		if ok {
			logger.Info(strings.TrimSpace(line))
			rec.addCounts(counts.Errors, counts.Warnings)
		}
		return nil
	})

	if err := jobLog.Close(); err != nil && runErr == nil {
		runErr = &IOError{Op: "close", Path: jobLog.Path, Err: err}
	}
	if size, err := jobLog.Size(); err == nil {
		logger.Debug("job log written", "path", jobLog.Path, "size", humanize.Bytes(uint64(size)))
	}

	if runErr == nil {
		rec.complete()
	} else {
		rec.fail(runErr)
	}
	rec.finish(d.now())
	return runErr
}
