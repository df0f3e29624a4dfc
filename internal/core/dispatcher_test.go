package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"simrun/internal/logging"
	"simrun/internal/storage"
)

// fakeRun is the scripted behaviour of one simulator invocation.
type fakeRun struct {
	lines []string
	delay time.Duration
	err   error
}

// fakeExecutor plays back fakeRuns keyed by working directory and tracks
// how many invocations overlap.
type fakeExecutor struct {
	byDir    map[string]fakeRun
	fallback fakeRun

	mu     sync.Mutex
	calls  []Invocation
	active atomic.Int32
	peak   atomic.Int32
}

func (f *fakeExecutor) Run(ctx context.Context, inv Invocation, onLine func(string) error) error {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	run, ok := f.byDir[inv.Dir]
	f.mu.Unlock()
	if !ok {
		run = f.fallback
	}

	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	for _, l := range run.lines {
		if err := onLine(l); err != nil {
			return err
		}
	}
	if run.delay > 0 {
		select {
		case <-time.After(run.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return run.err
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestDispatcher(exec Executor, limit int) *Dispatcher {
	return &Dispatcher{
		Exec:      exec,
		Logs:      storage.NewLogStorage(""),
		Simulator: "vsim",
		Limit:     limit,
		Logger:    logging.Discard(),
		now:       time.Now,
	}
}

func newTestRecords(t testing.TB, names ...string) []*Record {
	t.Helper()
	root, err := os.MkdirTemp("", "dispatch")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(root) })

	recs := make([]*Record, len(names))
	for i, name := range names {
		dir := filepath.Join(root, name)
		recs[i] = NewRecord(filepath.Join(dir, "simulation_deck_info.ini"), name, dir,
			filepath.Join(dir, "MMSIM2", name+"_runsim.tcl"),
			filepath.Join(dir, "MMSIM2", name+"_autocheck_proc.tcl"))
	}
	return recs
}

func TestDispatchPassingJob(t *testing.T) {
	recs := newTestRecords(t, "adder")
	exec := &fakeExecutor{fallback: fakeRun{lines: []string{
		"# Loading work.adder_tb\n",
		"# Errors: 0, Warnings: 2\n",
	}}}

	require.NoError(t, newTestDispatcher(exec, 2).Dispatch(context.Background(), recs))

	rec := recs[0]
	assert.True(t, rec.Finished())
	assert.True(t, rec.Completed())
	assert.True(t, rec.Passed())
	assert.Equal(t, 0, rec.Errors())
	assert.Equal(t, 2, rec.Warnings())
	assert.False(t, rec.StartTime().After(rec.EndTime()))

	require.Len(t, exec.calls, 1)
	assert.Equal(t, Invocation{Dir: rec.WorkDir, Args: []string{"vsim", "-c", "-do", rec.ScriptPath}}, exec.calls[0])

	data, err := os.ReadFile(rec.LogPath())
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "RunDirectory : "+rec.WorkDir)
	assert.Contains(t, log, "vsim -c -do "+rec.ScriptPath)
	assert.Contains(t, log, "# Loading work.adder_tb\n# Errors: 0, Warnings: 2\n")
	assert.Equal(t, filepath.Join(rec.WorkDir, "worker_0_modelsim.log"), rec.LogPath())
}

func TestDispatchAccumulatesErrors(t *testing.T) {
	recs := newTestRecords(t, "counter")
	exec := &fakeExecutor{fallback: fakeRun{lines: []string{
		"# Errors: 1, Warnings: 0\n",
		"# ** Error: mismatch at 20 ns\n",
		"# Errors: 2, Warnings: 1\n",
	}}}

	require.NoError(t, newTestDispatcher(exec, 1).Dispatch(context.Background(), recs))

	rec := recs[0]
	assert.Equal(t, 3, rec.Errors())
	assert.Equal(t, 1, rec.Warnings())
	assert.True(t, rec.Completed())
	assert.False(t, rec.Passed())
	assert.Equal(t, "failed", rec.Status())
}

func TestDispatchLimitOneSerializes(t *testing.T) {
	recs := newTestRecords(t, "a", "b", "c", "d")
	exec := &fakeExecutor{fallback: fakeRun{
		lines: []string{"# Errors: 0, Warnings: 0\n"},
		delay: 10 * time.Millisecond,
	}}

	require.NoError(t, newTestDispatcher(exec, 1).Dispatch(context.Background(), recs))
	assert.Equal(t, int32(1), exec.peak.Load())

	sorted := append([]*Record(nil), recs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime().Before(sorted[j].StartTime()) })
	for i := 1; i < len(sorted); i++ {
		assert.False(t, sorted[i].StartTime().Before(sorted[i-1].EndTime()),
			"%s started before %s ended", sorted[i].Benchmark, sorted[i-1].Benchmark)
	}
}

func TestDispatchFailFastOnScrapeError(t *testing.T) {
	recs := newTestRecords(t, "a", "b", "c")
	exec := &fakeExecutor{fallback: fakeRun{
		lines: []string{"Errors occurred\n"},
		delay: 10 * time.Millisecond,
	}}

	err := newTestDispatcher(exec, 1).Dispatch(context.Background(), recs)

	var scrapeErr *ScrapeError
	require.True(t, errors.As(err, &scrapeErr))
	assert.Equal(t, "Errors occurred\n", scrapeErr.Line)
	assert.Equal(t, 1, exec.callCount())

	started := 0
	for _, rec := range recs {
		if rec.StartTime().IsZero() {
			assert.False(t, rec.Finished())
			assert.Equal(t, "not run", rec.Status())
			continue
		}
		started++
		assert.True(t, rec.Finished())
		assert.False(t, rec.Completed())
		assert.Equal(t, "error", rec.Status())
	}
	assert.Equal(t, 1, started)
}

func TestDispatchFailFastOnExitCode(t *testing.T) {
	recs := newTestRecords(t, "good", "bad")
	exit := &ProcessExecutionError{Command: []string{"vsim"}, ExitCode: 2, Err: errors.New("exit status 2")}
	exec := &fakeExecutor{
		fallback: fakeRun{lines: []string{"# Errors: 0, Warnings: 0\n"}},
		byDir:    map[string]fakeRun{recs[1].WorkDir: {err: exit}},
	}

	err := newTestDispatcher(exec, 2).Dispatch(context.Background(), recs)

	var perr *ProcessExecutionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.ExitCode)
	assert.Contains(t, err.Error(), recs[1].WorkDir)
	assert.Equal(t, "error", recs[1].Status())
	assert.Equal(t, exit, recs[1].Failure())
}

func TestDispatchContinueOnFail(t *testing.T) {
	recs := newTestRecords(t, "a", "b", "c")
	exec := &fakeExecutor{
		fallback: fakeRun{lines: []string{"# Errors: 0, Warnings: 1\n"}},
		byDir: map[string]fakeRun{
			recs[1].WorkDir: {lines: []string{"Errors occurred\n"}},
		},
	}
	d := newTestDispatcher(exec, 1)
	d.ContinueOnFail = true

	require.NoError(t, d.Dispatch(context.Background(), recs))
	assert.Equal(t, 3, exec.callCount())

	assert.Equal(t, "passed", recs[0].Status())
	assert.Equal(t, "error", recs[1].Status())
	assert.Equal(t, "passed", recs[2].Status())
	for _, rec := range recs {
		assert.True(t, rec.Finished())
	}
}

func TestDispatchInterrupted(t *testing.T) {
	recs := newTestRecords(t, "long")
	exec := &fakeExecutor{fallback: fakeRun{delay: time.Minute}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for exec.callCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	err := newTestDispatcher(exec, 1).Dispatch(ctx, recs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, recs[0].Finished())
	assert.Equal(t, "error", recs[0].Status())
}

func TestDispatchLogOpenFailure(t *testing.T) {
	recs := newTestRecords(t, "a")
	// a regular file where the run directory should be
	require.NoError(t, os.MkdirAll(filepath.Dir(recs[0].WorkDir), 0o755))
	require.NoError(t, os.WriteFile(recs[0].WorkDir, nil, 0o644))

	exec := &fakeExecutor{}
	err := newTestDispatcher(exec, 1).Dispatch(context.Background(), recs)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, 0, exec.callCount())
	assert.True(t, recs[0].Finished())
	assert.Equal(t, "error", recs[0].Status())
}

func TestDispatchEmpty(t *testing.T) {
	assert.NoError(t, newTestDispatcher(&fakeExecutor{}, 4).Dispatch(context.Background(), nil))
}

// However many jobs and whatever the limit, no more than limit simulators
// overlap and every job finishes.
func TestDispatchRespectsLimit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 4).Draw(rt, "limit")
		jobs := rapid.IntRange(0, 10).Draw(rt, "jobs")

		names := make([]string, jobs)
		for i := range names {
			names[i] = fmt.Sprintf("bench%d", i)
		}
		recs := newTestRecords(t, names...)
		exec := &fakeExecutor{fallback: fakeRun{
			lines: []string{"# Errors: 0, Warnings: 0\n"},
			delay: time.Duration(rapid.IntRange(0, 3).Draw(rt, "delay_ms")) * time.Millisecond,
		}}

		if err := newTestDispatcher(exec, limit).Dispatch(context.Background(), recs); err != nil {
			rt.Fatalf("dispatch: %v", err)
		}
		if peak := int(exec.peak.Load()); peak > limit {
			rt.Fatalf("%d simulators overlapped with limit %d", peak, limit)
		}
		if exec.callCount() != jobs {
			rt.Fatalf("ran %d of %d jobs", exec.callCount(), jobs)
		}
		for _, rec := range recs {
			if !rec.Finished() || !rec.Passed() {
				rt.Fatalf("%s: status %s", rec.Benchmark, rec.Status())
			}
		}
	})
}
