package core

import (
	"maps"
	"sort"
	"strings"
)

// Required descriptor keys.
const (
	KeyBenchmark    = "BENCHMARK"
	KeyTopTB        = "TOP_TB"
	KeyVerilogPath  = "VERILOG_PATH"
	KeyVerilogFile2 = "VERILOG_FILE2"
)

// Computed keys added by the materializer before rendering.
const (
	KeyProjDir  = "MODELSIM_PROJ_DIR"
	KeyProjName = "MODELSIM_PROJ_NAME"
	KeyIni      = "MODELSIM_INI"
)

// Descriptor is the read-only SIMULATION_DECK record of one job. Keys are
// case-insensitive and stored upper-cased.
type Descriptor struct {
	Path   string
	values map[string]string
}

// NewDescriptor copies values into a descriptor loaded from path.
func NewDescriptor(path string, values map[string]string) Descriptor {
	v := make(map[string]string, len(values))
	for k, val := range values {
		v[strings.ToUpper(k)] = val
	}
	return Descriptor{Path: path, values: v}
}

// Get returns the value for key and whether it was present.
func (d Descriptor) Get(key string) (string, bool) {
	v, ok := d.values[strings.ToUpper(key)]
	return v, ok
}

// Require returns the value for key or a ConfigurationError naming it.
func (d Descriptor) Require(key string) (string, error) {
	v, ok := d.Get(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", &ConfigurationError{Source: d.Path, Key: strings.ToUpper(key), Reason: "required key is missing"}
	}
	return v, nil
}

// Values returns a copy of the descriptor's key/value pairs.
func (d Descriptor) Values() map[string]string {
	return maps.Clone(d.values)
}

// Keys lists the descriptor keys in sorted order.
func (d Descriptor) Keys() []string {
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
