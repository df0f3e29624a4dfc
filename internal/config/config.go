// Package config loads simrun's run options.
//
// Options come from three layers, later ones winning: built-in defaults, an
// optional YAML file (with ${VAR} environment interpolation), and SIMRUN_*
// environment variables. The command line applies flag overrides on top and
// then freezes the result with Finalize; from there on Options is passed by
// value and never mutated.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no --config is given.
const DefaultFile = "simrun.yaml"

// Options is the immutable configuration shared by the materializer and the
// dispatcher.
type Options struct {
	// TaskDir is the root of the flow's task tree. Job log paths in the
	// summary are reported relative to it.
	TaskDir string `yaml:"task_dir"`

	// Simulator is the batch simulator executable, invoked as
	// <simulator> -c -do <runsim script>.
	Simulator string `yaml:"simulator"`

	// ModelsimIni is substituted into templates as MODELSIM_INI.
	ModelsimIni string `yaml:"modelsim_ini"`

	// ProcTemplate and RunsimTemplate name template files. Empty means the
	// built-in templates.
	ProcTemplate   string `yaml:"proc_template"`
	RunsimTemplate string `yaml:"runsim_template"`

	// MaxThreads caps how many simulator processes run at once.
	MaxThreads int `yaml:"max_threads"`

	// ContinueOnFail records a failing job and keeps going instead of
	// cancelling the whole run.
	ContinueOnFail bool `yaml:"continue_on_fail"`

	// IniFilename is the descriptor file looked for in each run directory
	// during task discovery.
	IniFilename string `yaml:"ini_filename"`

	// ProjectSubdir is created under each descriptor's directory to hold
	// the generated scripts.
	ProjectSubdir string `yaml:"project_subdir"`

	// ProjectName overrides the default <BENCHMARK>_MMSIM project name.
	ProjectName string `yaml:"project_name"`

	LogLevel   string `yaml:"log_level"`
	RunSim     bool   `yaml:"run_sim"`
	SkipPrompt bool   `yaml:"skip_prompt"`
}

// Default returns the built-in option values.
func Default() Options {
	return Options{
		Simulator:     "vsim",
		MaxThreads:    2,
		IniFilename:   "simulation_deck_info.ini",
		ProjectSubdir: "MMSIM2",
		LogLevel:      "info",
	}
}

// Load builds Options from defaults, the YAML file at path and the
// environment. An empty path means DefaultFile if it exists.
func Load(path string) (Options, error) {
	opts := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &opts); err != nil {
			return Options{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// no config file is fine
	default:
		return Options{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := opts.applyEnv(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (o *Options) applyEnv() error {
	if v := os.Getenv("SIMRUN_TASK_DIR"); v != "" {
		o.TaskDir = v
	}
	if v := os.Getenv("SIMRUN_SIMULATOR"); v != "" {
		o.Simulator = v
	}
	if v := os.Getenv("SIMRUN_MODELSIM_INI"); v != "" {
		o.ModelsimIni = v
	}
	if v := os.Getenv("SIMRUN_MAX_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SIMRUN_MAX_THREADS %q: %w", v, err)
		}
		o.MaxThreads = n
	}
	return nil
}

// Validate reports the first option that cannot be used.
func (o Options) Validate() error {
	if o.MaxThreads < 1 {
		return fmt.Errorf("max_threads must be at least 1, got %d", o.MaxThreads)
	}
	if o.Simulator == "" {
		return errors.New("simulator must not be empty")
	}
	if o.IniFilename == "" {
		return errors.New("ini_filename must not be empty")
	}
	if o.ProjectSubdir == "" {
		return errors.New("project_subdir must not be empty")
	}
	return nil
}

// Finalize validates o and returns a copy with every path made absolute.
func (o Options) Finalize() (Options, error) {
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	for _, p := range []*string{&o.ProcTemplate, &o.RunsimTemplate, &o.TaskDir} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return Options{}, fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return o, nil
}
