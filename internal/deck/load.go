// Package deck finds and reads the simulation deck descriptors that the
// upstream FPGA flow leaves in each run directory.
package deck

import (
	"fmt"

	"github.com/go-ini/ini"

	"simrun/internal/core"
)

// Section holds the job description inside a deck file.
const Section = "SIMULATION_DECK"

var loadOptions = ini.LoadOptions{
	InsensitiveSections:        true,
	IgnoreInlineComment:        true,
	AllowPythonMultilineValues: true,
}

// Load reads the SIMULATION_DECK section of the INI file at path.
// %(key)s references are expanded.
func Load(path string) (core.Descriptor, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return core.Descriptor{}, &core.IOError{Op: "read descriptor", Path: path, Err: err}
	}
	sec, err := f.GetSection(Section)
	if err != nil {
		return core.Descriptor{}, &core.ConfigurationError{Source: path, Reason: fmt.Sprintf("missing [%s] section", Section)}
	}

	values := make(map[string]string, len(sec.Keys()))
	for _, k := range sec.Keys() {
		values[k.Name()] = k.String()
	}
	return core.NewDescriptor(path, values), nil
}

// LoadAll loads every path in order, stopping at the first failure.
func LoadAll(paths []string) ([]core.Descriptor, error) {
	descs := make([]core.Descriptor, 0, len(paths))
	for _, p := range paths {
		d, err := Load(p)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}
