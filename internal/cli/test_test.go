package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessGolden    = "../harness/testdata/golden"
)

const passingScenario = `
name: bootstrap_only
description: "Bootstrap an empty account"
assertions:
  - type: trace_count
    action: INIT_COMPLETE
    count: 1
`

const failingScenario = `
name: wrong_count
description: "Expects a second user load"
assertions:
  - type: trace_count
    action: SET_USER
    count: 2
`

func TestTestCommandMissingArgs(t *testing.T) {
	run := runCLI(t, nil, "test")
	require.Error(t, run.err)
	assert.Contains(t, run.err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	run := runCLI(t, nil, "test", "/nonexistent/scenarios")
	require.Error(t, run.err)
	assert.Equal(t, ExitCommandError, GetExitCode(run.err))
	assert.Contains(t, run.err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	run := runCLI(t, nil, "test", t.TempDir())
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, "No scenarios found")

	run = runCLI(t, nil, "--format", "json", "test", t.TempDir())
	require.NoError(t, run.err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	run := runCLI(t, nil, "test", harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, run.err, run.stdout)
	assert.Contains(t, run.stdout, "✓ create_and_complete")
	assert.Contains(t, run.stdout, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, run.stdout, "All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	run := runCLI(t, nil, "--format", "json", "test", harnessScenarios, "--golden", harnessGolden, "--filter", "partial_*")
	require.NoError(t, run.err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Total   int `json:"total"`
			Passed  int `json:"passed"`
			Results []struct {
				Name   string `json:"name"`
				Golden string `json:"golden"`
			} `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, "partial_bootstrap", resp.Data.Results[0].Name)
	assert.Equal(t, "matched", resp.Data.Results[0].Golden)
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(passingScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(failingScenario), 0o644))

	run := runCLI(t, nil, "test", dir)
	require.Error(t, run.err)
	assert.Equal(t, ExitFailure, GetExitCode(run.err))
	assert.Contains(t, run.stdout, "✓ bootstrap_only")
	assert.Contains(t, run.stdout, "✗ wrong_count")
	assert.Contains(t, run.stdout, "1 passed, 1 failed, 2 total")

	run = runCLI(t, nil, "--format", "json", "test", dir)
	require.Error(t, run.err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandUpdateGolden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(passingScenario), 0o644))

	run := runCLI(t, nil, "test", dir, "--update")
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, "bootstrap_only (golden updated)")

	golden := filepath.Join(dir, "golden", "bootstrap_only.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"bootstrap_only"`)

	run = runCLI(t, nil, "test", dir)
	require.NoError(t, run.err)

	require.NoError(t, os.WriteFile(golden, []byte(`{"trace":[]}`), 0o644))
	run = runCLI(t, nil, "test", dir)
	require.Error(t, run.err)
	assert.Contains(t, run.stdout, "does not match golden file")
}

func TestTestHelpText(t *testing.T) {
	run := runCLI(t, nil, "test", "--help")
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, "conformance")
	assert.Contains(t, run.stdout, "--update")
	assert.Contains(t, run.stdout, "--filter")
	assert.Contains(t, run.stdout, "scenarios-dir")
}
