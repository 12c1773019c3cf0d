// Package expectations reads and writes the YAML file of expected diagnostics
// and compares it set-wise against what a check actually produced. Each
// diagnostic is categorized as expected, unexpected, or missing.
package expectations

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tanema/steep/src/lsp"
)

type (
	// Position mirrors lsp.Position in the YAML schema.
	Position struct {
		Line      int `yaml:"line"`
		Character int `yaml:"character"`
	}
	// Range mirrors lsp.Range in the YAML schema.
	Range struct {
		Start Position `yaml:"start"`
		End   Position `yaml:"end"`
	}
	// Diagnostic is one expected diagnostic of a path.
	Diagnostic struct {
		Range    Range  `yaml:"range"`
		Severity int    `yaml:"severity"`
		Code     string `yaml:"code"`
		Message  string `yaml:"message"`
	}
	// File maps each path to its expected diagnostics.
	File map[string][]Diagnostic
	// Comparison is the per path result of matching actual diagnostics against
	// the expectation.
	Comparison struct {
		Expected   []Diagnostic
		Unexpected []Diagnostic
		Missing    []Diagnostic
	}
)

// Load reads an expectations file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading expectations")
	}
	file := File{}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parsing expectations")
	}
	return file, nil
}

// Save writes the diagnostics of a finished check as the new expectations.
func Save(path string, diags map[string][]lsp.Diagnostic) error {
	file := File{}
	for diagPath, pathDiags := range diags {
		file[diagPath] = fromLSP(pathDiags)
	}
	data, err := yaml.Marshal(file)
	if err != nil {
		return errors.Wrap(err, "encoding expectations")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "writing expectations")
}

// Compare matches the actual diagnostics of one path against the expectation
// for it.
func (f File) Compare(path string, actual []lsp.Diagnostic) Comparison {
	expected := append([]Diagnostic{}, f[path]...)
	comparison := Comparison{}
	matched := make([]bool, len(expected))

	for _, diag := range fromLSP(actual) {
		found := false
		for i, want := range expected {
			if !matched[i] && want == diag {
				matched[i] = true
				found = true
				break
			}
		}
		if found {
			comparison.Expected = append(comparison.Expected, diag)
		} else {
			comparison.Unexpected = append(comparison.Unexpected, diag)
		}
	}
	for i, want := range expected {
		if !matched[i] {
			comparison.Missing = append(comparison.Missing, want)
		}
	}
	return comparison
}

// Satisfied reports whether the actual diagnostics matched exactly.
func (c Comparison) Satisfied() bool {
	return len(c.Unexpected) == 0 && len(c.Missing) == 0
}

// Paths returns the sorted set of paths the file has expectations for.
func (f File) Paths() []string {
	paths := make([]string, 0, len(f))
	for path := range f {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func fromLSP(diags []lsp.Diagnostic) []Diagnostic {
	converted := make([]Diagnostic, len(diags))
	for i, diag := range diags {
		converted[i] = Diagnostic{
			Range: Range{
				Start: Position{Line: diag.Range.Start.Line, Character: diag.Range.Start.Character},
				End:   Position{Line: diag.Range.End.Line, Character: diag.Range.End.Character},
			},
			Severity: diag.Severity,
			Code:     diag.Code,
			Message:  diag.Message,
		}
	}
	return converted
}
