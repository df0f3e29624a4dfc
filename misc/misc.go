// Package misc embeds the default ModelSim script templates so a run finds
// them regardless of the working directory.
package misc

import _ "embed"

// File names the templates are embedded under.
const (
	RunsimTemplateName = "modelsim_runsim.tcl"
	ProcTemplateName   = "modelsim_proc.tcl"
)

//go:embed modelsim_runsim.tcl
var RunsimTemplate string

//go:embed modelsim_proc.tcl
var ProcTemplate string
