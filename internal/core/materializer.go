package core

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"simrun/internal/config"
	"simrun/misc"
)

const scriptExt = "tcl"

// Include markers in the benchmark's include file are relative to the
// source tree; the generated project sits three levels below it.
const (
	includeMarker   = `"./`
	includeRelocate = `"../../../`
)

// Materializer renders the runsim and proc scripts of each job.
type Materializer struct {
	opts   config.Options
	runsim *Template
	proc   *Template
	logger *slog.Logger
}

// NewMaterializer loads both templates named in opts. An empty template path
// selects the built-in template.
func NewMaterializer(opts config.Options, logger *slog.Logger) (*Materializer, error) {
	runsim, err := loadTemplateOr(opts.RunsimTemplate, misc.RunsimTemplateName, misc.RunsimTemplate)
	if err != nil {
		return nil, err
	}
	proc, err := loadTemplateOr(opts.ProcTemplate, misc.ProcTemplateName, misc.ProcTemplate)
	if err != nil {
		return nil, err
	}
	logger.Debug("templates loaded", "runsim", runsim.Name, "proc", proc.Name)
	return &Materializer{opts: opts, runsim: runsim, proc: proc, logger: logger}, nil
}

func loadTemplateOr(path, name, builtin string) (*Template, error) {
	if path == "" {
		return ParseTemplate(name, builtin), nil
	}
	return LoadTemplate(path)
}

// Materialize writes the job's project directory and scripts and returns
// its fresh Record.
func (m *Materializer) Materialize(desc Descriptor) (*Record, error) {
	benchmark, err := desc.Require(KeyBenchmark)
	if err != nil {
		return nil, err
	}
	topTB, err := desc.Require(KeyTopTB)
	if err != nil {
		return nil, err
	}
	verilogPath, err := desc.Require(KeyVerilogPath)
	if err != nil {
		return nil, err
	}
	verilogFile2, err := desc.Require(KeyVerilogFile2)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("descriptor loaded", "path", desc.Path, "keys", desc.Keys())

	descPath, err := filepath.Abs(desc.Path)
	if err != nil {
		return nil, &IOError{Op: "resolve", Path: desc.Path, Err: err}
	}
	runDir := filepath.Dir(descPath)

	projDir := filepath.Join(runDir, m.opts.ProjectSubdir)
	if err := os.MkdirAll(projDir, 0o775); err != nil {
		return nil, &IOError{Op: "create project dir", Path: projDir, Err: err}
	}

	projName := m.opts.ProjectName
	if projName == "" {
		projName = benchmark + "_MMSIM"
		m.logger.Debug("project name not provided, using default", "project", projName)
	}

	if !filepath.IsAbs(verilogPath) {
		verilogPath = filepath.Join(runDir, verilogPath)
	}

	values := desc.Values()
	values[KeyProjDir] = projDir
	values[KeyProjName] = projName
	values[KeyIni] = m.opts.ModelsimIni
	values[KeyVerilogPath] = verilogPath
	values[KeyTopTB] = strings.TrimSuffix(topTB, filepath.Ext(topTB))

	include := joinUnlessAbs(verilogPath, verilogFile2)
	resolved := joinUnlessAbs(verilogPath, resolvedName(verilogFile2))
	if err := relocateIncludes(include, resolved); err != nil {
		return nil, err
	}

	lookup := func(key string) (string, bool) {
		v, ok := values[strings.ToUpper(key)]
		return v, ok
	}

	runsimPath := filepath.Join(projDir, fmt.Sprintf("%s_runsim.%s", benchmark, scriptExt))
	if err := m.render(m.runsim, runsimPath, lookup); err != nil {
		return nil, err
	}
	procPath := filepath.Join(projDir, fmt.Sprintf("%s_autocheck_proc.%s", benchmark, scriptExt))
	if err := m.render(m.proc, procPath, lookup); err != nil {
		return nil, err
	}

	return NewRecord(descPath, benchmark, runDir, runsimPath, procPath), nil
}

func (m *Materializer) render(tmpl *Template, path string, lookup func(string) (string, bool)) error {
	text, err := tmpl.Render(lookup)
	if err != nil {
		return err
	}
	m.logger.Info("creating tcl script", "path", path)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return &IOError{Op: "write script", Path: path, Err: err}
	}
	return nil
}

// relocateIncludes copies src to dst rewriting every relative include
// marker so the nested project can resolve it.
func relocateIncludes(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return &IOError{Op: "read include file", Path: src, Err: err}
	}
	out := strings.ReplaceAll(string(data), includeMarker, includeRelocate)
	if err := os.WriteFile(dst, []byte(out), 0o644); err != nil {
		return &IOError{Op: "write include file", Path: dst, Err: err}
	}
	return nil
}

func resolvedName(name string) string {
	return strings.TrimSuffix(name, ".v") + "_resolved.v"
}

func joinUnlessAbs(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
