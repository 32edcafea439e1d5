package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/remsync/internal/canon"
	"github.com/roach88/remsync/internal/testutil"
)

// TraceSnapshot captures the trace digest of a scenario execution.
// Serialized as canonical JSON for byte-stable comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	SessionID    string       `json:"session_id"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map for canonical JSON.
// Payloads are left out; ref carries the digest.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":  event.Seq,
			"kind": event.Kind,
		}
		if event.Ref != nil {
			eventMap["ref"] = event.Ref
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"session_id":    s.SessionID,
		"trace":         traceList,
	}
}

// Marshal returns the snapshot's canonical bytes.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return canon.Marshal(s.toCanonicalMap())
}

// Snapshot builds the trace snapshot of a result.
func Snapshot(scenario *Scenario, result *Result) *TraceSnapshot {
	sessionID := scenario.SessionID
	if sessionID == "" {
		sessionID = testutil.NewFixedSessionID("").Generate()
	}
	return &TraceSnapshot{
		ScenarioName: scenario.Name,
		SessionID:    sessionID,
		Trace:        result.Trace,
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	traceJSON, err := Snapshot(scenario, result).Marshal()
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
