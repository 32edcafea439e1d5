package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/remsync/internal/gateway"
)

// Scenario defines a conformance test scenario.
// Scenarios seed an in-memory service, bootstrap a session, run a flow of
// mutations and assert on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SessionID is the fixed journal session id.
	// If empty, defaults to "test-session-default".
	SessionID string `yaml:"session_id,omitempty"`

	// Now freezes the service clock. Defaults to testutil.Epoch.
	Now *time.Time `yaml:"now,omitempty"`

	// Bootstrap runs the session bootstrap before the flow. Default true.
	Bootstrap *bool `yaml:"bootstrap,omitempty"`

	// ResyncOnDelete controls the stats refresh after delete. Default true.
	ResyncOnDelete *bool `yaml:"resync_on_delete,omitempty"`

	Fixture Fixture `yaml:"fixture,omitempty"`

	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// Fixture seeds the in-memory service. Values use the service's JSON field
// names.
type Fixture struct {
	// User overlays the default account.
	User map[string]interface{} `yaml:"user,omitempty"`

	Reminders []map[string]interface{} `yaml:"reminders,omitempty"`

	// Categories replaces the default categories when present.
	Categories []map[string]interface{} `yaml:"categories,omitempty"`

	// Stats pins the stats response instead of computing it.
	Stats map[string]interface{} `yaml:"stats,omitempty"`

	// Fail lists gateway operations that fail on every call.
	Fail []string `yaml:"fail,omitempty"`

	// FailOnce lists gateway operations whose next call fails.
	FailOnce []string `yaml:"fail_once,omitempty"`
}

// FlowStep is one session operation.
type FlowStep struct {
	// Op is create, update, complete, delete, settings or refresh_stats.
	Op string `yaml:"op"`

	// Args are the operation arguments in service JSON field names.
	Args map[string]interface{} `yaml:"args"`

	// Expect is the expected outcome. Default "ok".
	Expect string `yaml:"expect,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check action kind appears in trace with args
	// - "trace_order": Check action kinds appear in order
	// - "trace_count": Check action kind appears exactly N times
	// - "final_state": Check reminders/categories/stats/user/session against expected values
	Type string `yaml:"type"`

	// Action is the action kind (used by trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected payload fields (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Table is reminders, categories, stats, user or session (final_state).
	Table string `yaml:"table,omitempty"`

	// Where selects rows of reminders or categories (used by final_state).
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Rows is the expected number of rows matching Where (final_state on
	// reminders or categories). When set, Expect may be omitted.
	Rows *int `yaml:"rows,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected kind order (used by trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Flow operations.
const (
	OpCreate       = "create"
	OpUpdate       = "update"
	OpComplete     = "complete"
	OpDelete       = "delete"
	OpSettings     = "settings"
	OpRefreshStats = "refresh_stats"
)

// Step outcomes.
const (
	ExpectOK              = "ok"
	ExpectError           = "error"
	ExpectValidationError = "validation_error"
	ExpectResyncError     = "resync_error"
)

// State tables.
const (
	TableReminders  = "reminders"
	TableCategories = "categories"
	TableStats      = "stats"
	TableUser       = "user"
	TableSession    = "session"
)

var (
	flowOps  = map[string]bool{OpCreate: true, OpUpdate: true, OpComplete: true, OpDelete: true, OpSettings: true, OpRefreshStats: true}
	outcomes = map[string]bool{ExpectOK: true, ExpectError: true, ExpectValidationError: true, ExpectResyncError: true}
	tables   = map[string]bool{TableReminders: true, TableCategories: true, TableStats: true, TableUser: true, TableSession: true}
)

// BootstrapEnabled reports whether the scenario bootstraps the session.
func (s *Scenario) BootstrapEnabled() bool {
	return s.Bootstrap == nil || *s.Bootstrap
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 && !s.BootstrapEnabled() {
		return fmt.Errorf("flow list is required when bootstrap is disabled")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if err := validateOps("fixture.fail", s.Fixture.Fail); err != nil {
		return err
	}
	if err := validateOps("fixture.fail_once", s.Fixture.FailOnce); err != nil {
		return err
	}

	for i, step := range s.Flow {
		if step.Op == "" {
			return fmt.Errorf("flow[%d]: op is required", i)
		}
		if !flowOps[step.Op] {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		if step.Args == nil && step.Op != OpRefreshStats {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if step.Expect != "" && !outcomes[step.Expect] {
			return fmt.Errorf("flow[%d]: unknown expect %q", i, step.Expect)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateOps(field string, ops []string) error {
	for i, name := range ops {
		known := false
		for _, op := range gateway.Ops {
			if string(op) == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%s[%d]: unknown gateway operation %q", field, i, name)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if !tables[a.Table] {
			return fmt.Errorf("assertions[%d]: unknown table %q", index, a.Table)
		}
		if len(a.Expect) == 0 && a.Rows == nil {
			return fmt.Errorf("assertions[%d]: expect or rows is required for final_state", index)
		}
		if a.Rows != nil && a.Table != TableReminders && a.Table != TableCategories {
			return fmt.Errorf("assertions[%d]: rows applies only to reminders and categories", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
