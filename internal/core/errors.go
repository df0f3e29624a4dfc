package core

import (
	"fmt"
	"strings"
)

// ConfigurationError is a required descriptor or template key that is
// missing or unusable. It is always fatal before any job runs.
type ConfigurationError struct {
	Source string // descriptor or template path
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("configuration error in %s: key %s: %s", e.Source, e.Key, e.Reason)
}

// DiscoveryError means the task directory or a prior successful run could
// not be found.
type DiscoveryError struct {
	Path   string
	Reason string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%s [%s]", e.Reason, e.Path)
}

// ScrapeError is a simulator output line that carries the Errors trigger
// token but not the expected counter grammar.
type ScrapeError struct {
	Line string
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("unrecognized counter line %q", strings.TrimRight(e.Line, "\r\n"))
}

// ProcessExecutionError is a simulator process that exited non-zero or
// could not be started.
type ProcessExecutionError struct {
	Command  []string
	Dir      string
	ExitCode int
	Err      error
}

func (e *ProcessExecutionError) Error() string {
	cmd := strings.Join(e.Command, " ")
	if e.ExitCode > 0 {
		return fmt.Sprintf("%s in %s exited with code %d", cmd, e.Dir, e.ExitCode)
	}
	return fmt.Sprintf("%s in %s: %v", cmd, e.Dir, e.Err)
}

func (e *ProcessExecutionError) Unwrap() error { return e.Err }

// IOError is a log, script or summary file that could not be opened or
// written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
