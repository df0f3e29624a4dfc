package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWritesBanner(t *testing.T) {
	dir := t.TempDir()
	ls := NewLogStorage(dir)

	cmd := []string{"vsim", "-c", "-do", "/proj/adder_runsim.tcl"}
	log, err := ls.Open(dir, "worker_0", cmd)
	require.NoError(t, err)
	require.NoError(t, log.WriteLine("# Errors: 0, Warnings: 2\n"))
	require.NoError(t, log.WriteLine("# End time"))
	require.NoError(t, log.Close())

	assert.Equal(t, filepath.Join(dir, "worker_0_modelsim.log"), log.Path)

	data, err := os.ReadFile(log.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, bannerRule, lines[0])
	assert.Equal(t, "RunDirectory : "+dir, lines[1])
	assert.Equal(t, "vsim -c -do /proj/adder_runsim.tcl", lines[2])
	assert.Equal(t, bannerRule, lines[3])
	assert.Equal(t, "# Errors: 0, Warnings: 2", lines[4])
	assert.Equal(t, "# End time", lines[5])

	size, err := log.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
}

func TestRelativeAndResolve(t *testing.T) {
	root := t.TempDir()
	ls := NewLogStorage(root)

	inside := filepath.Join(root, "basic_tb", "run001", "worker_1_modelsim.log")
	rel := ls.Relative(inside)
	assert.Equal(t, filepath.Join(TaskDirPrefix, "basic_tb", "run001", "worker_1_modelsim.log"), rel)
	assert.Equal(t, inside, ls.Resolve(rel))

	outside := filepath.Join(t.TempDir(), "elsewhere.log")
	assert.Equal(t, outside, ls.Relative(outside))
	assert.Equal(t, outside, ls.Resolve(outside))
}

func TestRelativeWithoutBaseDir(t *testing.T) {
	ls := NewLogStorage("")
	got := ls.Relative("some.log")
	assert.True(t, filepath.IsAbs(got))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "worker_3", sanitize("worker_3"))
	assert.Equal(t, "workerx", sanitize("worker/../x"))
	assert.Equal(t, "worker", sanitize("../"))
}

func TestSummaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run001", "modelsim_result.csv")
	rows := []SummaryRow{
		{Status: "passed", Errors: 0, Warnings: 2, RunComplete: true, ExecTime: "3 seconds", Finished: true, LogFile: "<task_dir>/a.log"},
		{Status: "failed", Errors: 3, Warnings: 1, RunComplete: true, ExecTime: "1 minute", Finished: true, LogFile: "<task_dir>/b.log"},
	}
	require.NoError(t, WriteSummary(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "status,Errors,Warnings,run_complete,exectime,finished,logfile\n"))

	got, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestReadSummaryRejectsBadCounters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "status,Errors,Warnings,run_complete,exectime,finished,logfile\npassed,x,0,true,now,true,a.log\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := ReadSummary(path)
	assert.Error(t, err)
}
