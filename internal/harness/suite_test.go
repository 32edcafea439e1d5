package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	all, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	filtered, err := FindScenarios("testdata/scenarios", "create_*")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "create_and_complete.yaml", filepath.Base(filtered[0]))

	_, err = FindScenarios("testdata/scenarios", "[")
	assert.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_pass.yaml"), []byte(minimalScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_broken.yaml"), []byte("name: [unclosed"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_fail.yaml"), []byte(`
name: c_fail
description: "Wrong count"
assertions:
  - type: trace_count
    action: SET_USER
    count: 3
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	paths, err := FindScenarios(dir, "")
	require.NoError(t, err)
	require.Len(t, paths, 3)

	res := RunSuite(paths)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "minimal", res.Results[0].Name)
	assert.True(t, res.Results[0].Pass)
	assert.Contains(t, res.Results[1].Errors[0], "failed to load scenario")
	assert.Equal(t, "c_fail", res.Results[2].Name)
	require.Len(t, res.Failures, 2)
}

func TestRunSuite_Golden(t *testing.T) {
	dir := t.TempDir()
	goldenDir := filepath.Join(dir, "golden")
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	// No golden file yet: assertions only.
	res := RunSuite([]string{path}, WithGoldenDir(goldenDir))
	require.Equal(t, 1, res.Passed)
	assert.Empty(t, res.Results[0].Golden)

	res = RunSuite([]string{path}, WithGoldenDir(goldenDir), WithUpdate(true))
	require.Equal(t, 1, res.Passed)
	assert.Equal(t, "updated", res.Results[0].Golden)
	assert.FileExists(t, filepath.Join(goldenDir, "minimal.golden"))

	res = RunSuite([]string{path}, WithGoldenDir(goldenDir))
	require.Equal(t, 1, res.Passed)
	assert.Equal(t, "matched", res.Results[0].Golden)

	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "minimal.golden"), []byte(`{"trace":[]}`), 0o644))
	res = RunSuite([]string{path}, WithGoldenDir(goldenDir))
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Results[0].Errors[0], "does not match golden file")
}
