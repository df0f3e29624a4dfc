package deck

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"simrun/internal/core"
)

// LatestRun is the run label used when no run number is given.
const LatestRun = "latest"

// runDirLine matches the flow's report of where a benchmark ran.
var runDirLine = regexp.MustCompile(`^INFO.*Run directory : (.*)$`)

// Task is a resolved flow task and one of its runs.
type Task struct {
	Name   string
	Dir    string
	Run    string
	RunDir string
}

func (t Task) LogPath() string     { return filepath.Join(t.RunDir, "modelsim_run.log") }
func (t Task) SummaryPath() string { return filepath.Join(t.RunDir, "modelsim_result.csv") }
func (t Task) LedgerPath() string  { return filepath.Join(t.RunDir, "modelsim_ledger.jsonl") }

// RunLabel turns an optional run number into the run directory name:
// "" is "latest", 3 is "run003".
func RunLabel(number string) (string, error) {
	if number == "" {
		return LatestRun, nil
	}
	n, err := strconv.Atoi(number)
	if err != nil || n < 0 {
		return "", &core.ConfigurationError{Source: "command line", Key: "run_number", Reason: fmt.Sprintf("invalid run number %q", number)}
	}
	return fmt.Sprintf("run%03d", n), nil
}

// ResolveTask finds the task directory, first relative to the working
// directory, then under taskRoot.
func ResolveTask(name, run, taskRoot string) (Task, error) {
	candidates := []string{name}
	if taskRoot != "" && !filepath.IsAbs(name) {
		candidates = append(candidates, filepath.Join(taskRoot, name))
	}

	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || !info.IsDir() {
			continue
		}
		dir, err := filepath.Abs(c)
		if err != nil {
			return Task{}, &core.DiscoveryError{Path: c, Reason: err.Error()}
		}
		return Task{Name: name, Dir: dir, Run: run, RunDir: filepath.Join(dir, run)}, nil
	}
	return Task{}, &core.DiscoveryError{Path: strings.Join(candidates, ", "), Reason: "Task directory not found"}
}

// Discover collects the descriptor files of every benchmark the flow ran
// successfully in t. Each *_out.log in the run directory names run
// directories; those holding iniFilename are returned, once each, in
// order.
func Discover(t Task, iniFilename string, logger *slog.Logger) ([]string, error) {
	logs, err := filepath.Glob(filepath.Join(t.RunDir, "*_out.log"))
	if err != nil {
		return nil, &core.DiscoveryError{Path: t.RunDir, Reason: err.Error()}
	}
	if len(logs) == 0 {
		return nil, &core.DiscoveryError{Path: t.RunDir, Reason: "No successful run found"}
	}
	sort.Strings(logs)

	seen := make(map[string]bool)
	var found []string
	for _, logPath := range logs {
		dirs, err := runDirectories(logPath)
		if err != nil {
			return nil, &core.IOError{Op: "read task log", Path: logPath, Err: err}
		}
		for _, dir := range dirs {
			ini := filepath.Join(dir, iniFilename)
			if seen[ini] {
				continue
			}
			if info, err := os.Stat(ini); err != nil || info.IsDir() {
				logger.Debug("run directory has no descriptor", "dir", dir)
				continue
			}
			seen[ini] = true
			found = append(found, ini)
		}
	}
	logger.Info("found descriptor files", "count", len(found), "run_dir", t.RunDir)
	return found, nil
}

func runDirectories(logPath string) ([]string, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var dirs []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if m := runDirLine.FindStringSubmatch(sc.Text()); m != nil {
			dirs = append(dirs, strings.TrimSpace(m[1]))
		}
	}
	return dirs, sc.Err()
}
