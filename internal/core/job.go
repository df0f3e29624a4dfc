package core

import (
	"time"
)

// Record tracks one simulation job. The materializer creates it, exactly one
// dispatcher worker mutates it, and the aggregator reads it once every
// worker has been joined. Once Finished reports true the record is frozen.
type Record struct {
	// immutable after construction
	DescriptorPath string
	Benchmark      string
	WorkDir        string
	ScriptPath     string
	ProcPath       string

	errors    int
	warnings  int
	completed bool
	passed    bool
	finished  bool
	start     time.Time
	end       time.Time
	logPath   string
	failure   error
}

// NewRecord returns a record in its initial, not yet started state.
func NewRecord(descriptorPath, benchmark, workDir, scriptPath, procPath string) *Record {
	return &Record{
		DescriptorPath: descriptorPath,
		Benchmark:      benchmark,
		WorkDir:        workDir,
		ScriptPath:     scriptPath,
		ProcPath:       procPath,
	}
}

func (r *Record) Errors() int          { return r.errors }
func (r *Record) Warnings() int        { return r.warnings }
func (r *Record) Completed() bool      { return r.completed }
func (r *Record) Passed() bool         { return r.passed }
func (r *Record) Finished() bool       { return r.finished }
func (r *Record) StartTime() time.Time { return r.start }
func (r *Record) EndTime() time.Time   { return r.end }
func (r *Record) LogPath() string      { return r.logPath }

// Failure is the error that ended the job, if any.
func (r *Record) Failure() error { return r.failure }

// Elapsed is end minus start, zero until the job has been started and ended.
func (r *Record) Elapsed() time.Duration {
	if r.start.IsZero() || r.end.IsZero() {
		return 0
	}
	return r.end.Sub(r.start)
}

// ExecTime renders Elapsed to the second the way the summary table shows it.
func (r *Record) ExecTime() string {
	if r.start.IsZero() || r.end.IsZero() {
		return ""
	}
	if d := r.Elapsed(); d < time.Second {
		return "<1s"
	}
	return r.Elapsed().Round(time.Second).String()
}

// Status is the summary-table status column.
func (r *Record) Status() string {
	switch {
	case r.passed:
		return "passed"
	case r.completed:
		return "failed"
	case r.finished:
		return "error"
	case !r.start.IsZero():
		return "aborted"
	default:
		return "not run"
	}
}

func (r *Record) begin(now time.Time, logPath string) {
	if r.finished {
		return
	}
	r.start = now
	r.logPath = logPath
	r.errors, r.warnings = 0, 0
}

func (r *Record) addCounts(errs, warns int) {
	if r.finished || errs < 0 || warns < 0 {
		return
	}
	r.errors += errs
	r.warnings += warns
}

// complete marks a zero exit. passed follows from the error counter.
func (r *Record) complete() {
	if r.finished {
		return
	}
	r.completed = true
	r.passed = r.errors == 0
}

func (r *Record) fail(err error) {
	if r.finished {
		return
	}
	r.failure = err
}

func (r *Record) finish(now time.Time) {
	if r.finished {
		return
	}
	r.end = now
	r.finished = true
}
