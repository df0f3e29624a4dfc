package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TaskDirPrefix replaces the task root in reported log paths so summaries
// stay valid when the task tree is moved.
const TaskDirPrefix = "<task_dir>"

var bannerRule = strings.Repeat("* ", 20)

// LogStorage creates per-worker simulator logs and reports their paths
// relative to the task root.
type LogStorage struct {
	BaseDir string
}

// NewLogStorage creates a log storage rooted at the task directory.
func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir}
}

// JobLog is the open log of one simulator invocation.
type JobLog struct {
	Path string

	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// Open creates <dir>/<worker>_modelsim.log and writes the banner with the
// run directory and the exact command line.
func (ls *LogStorage) Open(dir, worker string, command []string) (*JobLog, error) {
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s_modelsim.log", sanitize(worker))
	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	l := &JobLog{Path: path, f: f, w: bufio.NewWriter(f)}
	fmt.Fprintln(l.w, bannerRule)
	fmt.Fprintf(l.w, "RunDirectory : %s\n", dir)
	fmt.Fprintln(l.w, strings.Join(command, " "))
	fmt.Fprintln(l.w, bannerRule)
	if err := l.w.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// WriteLine appends one line of simulator output verbatim.
func (l *JobLog) WriteLine(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.WriteString(line); err != nil {
		return err
	}
	if !strings.HasSuffix(line, "\n") {
		return l.w.WriteByte('\n')
	}
	return nil
}

// Close flushes and closes the log.
func (l *JobLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	flushErr := l.w.Flush()
	closeErr := l.f.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Size is the on-disk size of the log.
func (l *JobLog) Size() (int64, error) {
	fi, err := os.Stat(l.Path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Relative reports path under the task root as <task_dir>/..., or the
// absolute path when it lies elsewhere.
func (ls *LogStorage) Relative(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if ls.BaseDir == "" {
		return abs
	}
	rel, err := filepath.Rel(ls.BaseDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}
	return TaskDirPrefix + string(filepath.Separator) + rel
}

// Resolve turns a path produced by Relative back into a filesystem path.
func (ls *LogStorage) Resolve(path string) string {
	if rest, ok := strings.CutPrefix(path, TaskDirPrefix); ok {
		return filepath.Join(ls.BaseDir, rest)
	}
	return path
}

// sanitize removes special characters from worker names for filenames
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "worker"
	}
	return b.String()
}
