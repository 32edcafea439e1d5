package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace digest with testdata/golden/<name>.golden.
func TestScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "file name must match scenario name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_Canonical(t *testing.T) {
	scenario := &Scenario{Name: "snap"}
	result := NewResult()
	result.Trace = []TraceEvent{
		{Seq: 1, Kind: "SET_LOADING", Ref: true, Payload: map[string]interface{}{"loading": true}},
		{Seq: 2, Kind: "INIT_COMPLETE"},
	}

	data, err := Snapshot(scenario, result).Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"snap","session_id":"test-session-default","trace":[{"kind":"SET_LOADING","ref":true,"seq":1},{"kind":"INIT_COMPLETE","seq":2}]}`,
		string(data))
}
