package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ScenarioNotFoundError is returned when a reference names neither a file,
// a directory nor a built-in scenario.
type ScenarioNotFoundError struct {
	Ref          string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	if e.ResolvedPath != "" && e.ResolvedPath != e.Ref {
		return fmt.Sprintf("scenario %q not found (resolved to: %s)", e.Ref, e.ResolvedPath)
	}
	return fmt.Sprintf("scenario %q not found", e.Ref)
}

// Resolve turns command-line references into scenarios. A reference is a
// YAML file, a directory (every *.yaml and *.yml inside, sorted), or the name
// of a built-in scenario. Relative paths resolve against baseDir. No
// references means every built-in.
func Resolve(refs []string, baseDir string) ([]*Scenario, error) {
	if len(refs) == 0 {
		refs = BuiltinNames()
	}

	var out []*Scenario
	seen := map[string]string{}
	add := func(s *Scenario, origin string) error {
		if prev, dup := seen[s.Name]; dup {
			return fmt.Errorf("scenario %q defined twice (%s, %s)", s.Name, prev, origin)
		}
		seen[s.Name] = origin
		out = append(out, s)
		return nil
	}

	for _, ref := range refs {
		path := ref
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}

		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			files, err := scenarioFiles(path)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				s, err := LoadScenario(f)
				if err != nil {
					return nil, err
				}
				if err := add(s, f); err != nil {
					return nil, err
				}
			}
		case err == nil:
			s, err := LoadScenario(path)
			if err != nil {
				return nil, err
			}
			if err := add(s, path); err != nil {
				return nil, err
			}
		case looksLikePath(ref):
			return nil, &ScenarioNotFoundError{Ref: ref, ResolvedPath: path}
		default:
			s, err := Builtin(ref)
			if err != nil {
				return nil, err
			}
			if err := add(s, "builtin"); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func scenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

func looksLikePath(ref string) bool {
	return strings.ContainsAny(ref, `/\`) || strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml")
}

// Filter keeps the scenarios whose name contains substr.
func Filter(scenarios []*Scenario, substr string) []*Scenario {
	if substr == "" {
		return scenarios
	}
	var out []*Scenario
	for _, s := range scenarios {
		if strings.Contains(s.Name, substr) {
			out = append(out, s)
		}
	}
	return out
}
