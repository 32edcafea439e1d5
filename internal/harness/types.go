package harness

// TraceEvent is one applied action as read back from the journal.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Kind string `json:"kind"`

	// Payload is the action in canonical value form (maps, slices,
	// json.Number). trace_contains matches args against it.
	Payload interface{} `json:"payload,omitempty"`

	// Ref is a compact digest of the payload used in golden snapshots.
	Ref interface{} `json:"ref,omitempty"`
}

// StepResult is the observed outcome of one flow step.
type StepResult struct {
	Op       string `json:"op"`
	Expected string `json:"expected"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every step outcome and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every applied action in seq order.
	Trace []TraceEvent `json:"trace"`

	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final session state in canonical value form, keyed
	// by table: reminders, categories, stats, user and session.
	State map[string]interface{} `json:"state,omitempty"`

	// FinalHash is the replayed final state hash.
	FinalHash string `json:"final_hash,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []StepResult{},
		Errors: []string{},
		State:  make(map[string]interface{}),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
