package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRecordInitialState(t *testing.T) {
	r := NewRecord("/t/deck.ini", "adder", "/t", "/t/MMSIM2/adder_runsim.tcl", "/t/MMSIM2/adder_autocheck_proc.tcl")

	assert.Equal(t, 0, r.Errors())
	assert.Equal(t, 0, r.Warnings())
	assert.False(t, r.Completed())
	assert.False(t, r.Passed())
	assert.False(t, r.Finished())
	assert.Equal(t, "not run", r.Status())
	assert.Zero(t, r.Elapsed())
	assert.Empty(t, r.ExecTime())
}

func TestRecordPassedRequiresZeroErrors(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	clean := NewRecord("a.ini", "a", "/a", "s", "p")
	clean.begin(start, "<task_dir>/a.log")
	clean.addCounts(0, 2)
	clean.complete()
	clean.finish(start.Add(3 * time.Second))
	assert.True(t, clean.Passed())
	assert.Equal(t, "passed", clean.Status())
	assert.Equal(t, 3*time.Second, clean.Elapsed())
	assert.Equal(t, "3s", clean.ExecTime())

	dirty := NewRecord("b.ini", "b", "/b", "s", "p")
	dirty.begin(start, "")
	dirty.addCounts(1, 0)
	dirty.addCounts(2, 1)
	dirty.complete()
	dirty.finish(start)
	assert.Equal(t, 3, dirty.Errors())
	assert.True(t, dirty.Completed())
	assert.False(t, dirty.Passed())
	assert.Equal(t, "failed", dirty.Status())
}

func TestRecordExecTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "<1s"},
		{300 * time.Millisecond, "<1s"},
		{1500 * time.Millisecond, "2s"},
		{90 * time.Second, "1m30s"},
		{time.Hour + 2*time.Minute, "1h2m0s"},
	}
	for _, tt := range tests {
		r := NewRecord("a.ini", "a", "/a", "s", "p")
		r.begin(start, "")
		r.complete()
		r.finish(start.Add(tt.elapsed))
		assert.Equal(t, tt.want, r.ExecTime(), "elapsed %s", tt.elapsed)
	}
}

func TestRecordFailedRun(t *testing.T) {
	r := NewRecord("a.ini", "a", "/a", "s", "p")
	r.begin(time.Now(), "")
	boom := errors.New("exit 1")
	r.fail(boom)
	r.finish(time.Now())

	assert.False(t, r.Completed())
	assert.False(t, r.Passed())
	assert.True(t, r.Finished())
	assert.Equal(t, boom, r.Failure())
	assert.Equal(t, "error", r.Status())
}

func TestRecordAbortedStatus(t *testing.T) {
	r := NewRecord("a.ini", "a", "/a", "s", "p")
	r.begin(time.Now(), "")
	assert.Equal(t, "aborted", r.Status())
}

func TestRecordFrozenOnceFinished(t *testing.T) {
	start := time.Now()
	r := NewRecord("a.ini", "a", "/a", "s", "p")
	r.begin(start, "a.log")
	r.addCounts(0, 1)
	r.complete()
	r.finish(start.Add(time.Second))

	before := *r
	r.begin(start.Add(time.Hour), "other.log")
	r.addCounts(5, 5)
	r.fail(errors.New("late"))
	r.complete()
	r.finish(start.Add(2 * time.Hour))

	assert.Equal(t, before, *r)
}

func TestRecordIgnoresNegativeCounts(t *testing.T) {
	r := NewRecord("a.ini", "a", "/a", "s", "p")
	r.addCounts(-1, 2)
	assert.Equal(t, 0, r.Errors())
	assert.Equal(t, 0, r.Warnings())
}
