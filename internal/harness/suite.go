package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Results  []ScenarioOutcome `json:"results"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "matched", "updated" or "" when absent
	Errors []string `json:"errors,omitempty"`
}

// SuiteOption configures RunSuite.
type SuiteOption func(*suiteConfig)

type suiteConfig struct {
	goldenDir string
	update    bool
}

// WithGoldenDir compares each trace against dir/<scenario name>.golden
// when that file exists.
func WithGoldenDir(dir string) SuiteOption {
	return func(c *suiteConfig) {
		c.goldenDir = dir
	}
}

// WithUpdate rewrites golden files instead of comparing them.
func WithUpdate(update bool) SuiteOption {
	return func(c *suiteConfig) {
		c.update = update
	}
}

// ScenarioFailure describes a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// FindScenarios lists .yaml and .yml files under dir in lexical order.
// A non-empty filter is a glob matched against the file name without
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// RunSuite loads and runs every scenario file in paths.
//
// For each file:
// 1. Load and validate the scenario
// 2. Run it via harness.Run
// 3. Compare or update the golden trace, if a golden dir is set
// 4. Collect pass/fail and errors
func RunSuite(paths []string, opts ...SuiteOption) *SuiteResult {
	var cfg suiteConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	result := &SuiteResult{Results: []ScenarioOutcome{}}

	for _, path := range paths {
		result.Total++
		outcome := ScenarioOutcome{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), Path: path}

		scenario, err := LoadScenario(path)
		if err != nil {
			outcome.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
			result.fail(outcome)
			continue
		}
		outcome.Name = scenario.Name

		runResult, err := Run(scenario)
		if err != nil {
			outcome.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
			result.fail(outcome)
			continue
		}

		if cfg.goldenDir != "" {
			status, err := checkGolden(cfg, scenario, runResult)
			if err != nil {
				outcome.Errors = []string{err.Error()}
				result.fail(outcome)
				continue
			}
			outcome.Golden = status
		}

		if !runResult.Pass {
			outcome.Errors = runResult.Errors
			result.fail(outcome)
			continue
		}

		outcome.Pass = true
		result.Passed++
		result.Results = append(result.Results, outcome)
	}

	return result
}

func (r *SuiteResult) fail(o ScenarioOutcome) {
	r.Failed++
	r.Results = append(r.Results, o)
	r.Failures = append(r.Failures, ScenarioFailure{
		ScenarioPath: o.Path,
		Error:        strings.Join(o.Errors, "; "),
	})
}

// checkGolden compares or rewrites the golden trace of one scenario.
func checkGolden(cfg suiteConfig, scenario *Scenario, result *Result) (string, error) {
	data, err := Snapshot(scenario, result).Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal trace: %w", err)
	}
	path := filepath.Join(cfg.goldenDir, scenario.Name+".golden")

	if cfg.update {
		if err := os.MkdirAll(cfg.goldenDir, 0o755); err != nil {
			return "", fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("write golden file: %w", err)
		}
		return "updated", nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), data) {
		return "", fmt.Errorf("trace does not match golden file %s (run with --update to regenerate)", path)
	}
	return "matched", nil
}
