// Package fixtures loads user-supplied input/expected-output pairs.
package fixtures

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TestCase is one stdin/expected-stdout pair. Passed reflects the most
// recent execution only and is never written back to the fixture file.
type TestCase struct {
	ID     int    `json:"id" yaml:"-"`
	Name   string `json:"name,omitempty" yaml:"name"`
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
	Passed bool   `json:"passed" yaml:"-"`
}

// Label returns the case name, or "case N" when unnamed.
func (tc TestCase) Label() string {
	if tc.Name != "" {
		return tc.Name
	}
	return fmt.Sprintf("case %d", tc.ID)
}

// OverrideSuffix is appended to a source path to find per-file fixtures.
const OverrideSuffix = ".fixtures.json"

// Load reads a fixture file. Files ending in .yaml or .yml are parsed as
// YAML; everything else as JSON. IDs are assigned 1-based in file order.
func Load(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	return Parse(data, strings.ToLower(filepath.Ext(path)))
}

// Parse decodes fixture data. ext selects the format (".yaml", ".yml",
// otherwise JSON).
func Parse(data []byte, ext string) ([]TestCase, error) {
	var cases []TestCase
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cases); err != nil {
			return nil, fmt.Errorf("parsing fixtures YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cases); err != nil {
			return nil, fmt.Errorf("parsing fixtures JSON: %w", err)
		}
	}
	if len(cases) == 0 {
		return nil, errors.New("fixture file holds no test cases")
	}
	for i := range cases {
		cases[i].ID = i + 1
		cases[i].Passed = false
	}
	return cases, nil
}

// ForFile returns the per-file override for source when one exists,
// otherwise a copy of shared. The bool reports whether the override was used.
func ForFile(source string, shared []TestCase) ([]TestCase, bool, error) {
	override := source + OverrideSuffix
	if _, err := os.Stat(override); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Clone(shared), false, nil
		}
		return nil, false, fmt.Errorf("stat fixture override: %w", err)
	}
	cases, err := Load(override)
	if err != nil {
		return nil, false, err
	}
	return cases, true, nil
}

// Clone copies cases so each file gets its own Passed flags.
func Clone(cases []TestCase) []TestCase {
	if cases == nil {
		return nil
	}
	out := make([]TestCase, len(cases))
	copy(out, cases)
	for i := range out {
		out[i].Passed = false
	}
	return out
}
