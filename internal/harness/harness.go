package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/remsync/internal/canon"
	"github.com/roach88/remsync/internal/coordinator"
	"github.com/roach88/remsync/internal/gateway"
	"github.com/roach88/remsync/internal/journal"
	"github.com/roach88/remsync/internal/model"
	"github.com/roach88/remsync/internal/session"
	"github.com/roach88/remsync/internal/state"
	"github.com/roach88/remsync/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and a fixed session id.
type Harness struct {
	session *session.Session
	journal *journal.Journal
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory service and journal.
//
// Execution flow:
// 1. Seed the in-memory service from the fixture
// 2. Bootstrap the session (unless disabled)
// 3. Execute flow steps and compare outcomes
// 4. Read the trace back from the journal and replay it
// 5. Evaluate assertions against trace and final state
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	now := testutil.Epoch
	if scenario.Now != nil {
		now = scenario.Now.UTC()
	}

	jr, err := journal.Open(":memory:",
		journal.WithIDGenerator(testutil.NewFixedSessionID(scenario.SessionID)),
		journal.WithNow(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer jr.Close()

	rec, err := jr.StartSession(ctx, scenario.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to start journal session: %w", err)
	}

	gw, err := buildGateway(scenario.Fixture, now)
	if err != nil {
		return nil, fmt.Errorf("failed to seed fixture: %w", err)
	}

	logger := testutil.QuietLogger()
	resync := scenario.ResyncOnDelete == nil || *scenario.ResyncOnDelete

	h := &Harness{
		session: session.New(gw,
			session.WithLogger(logger),
			session.WithClock(testutil.NewDeterministicClock()),
			session.WithRecorder(rec),
			session.WithDeleteResync(resync),
		),
		journal: jr,
		logger:  logger,
	}

	result := NewResult()

	if scenario.BootstrapEnabled() {
		if _, err := h.session.Start(ctx); err != nil {
			result.AddError(fmt.Sprintf("bootstrap failed: %v", err))
		}
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	if err := h.collectTrace(ctx, rec.SessionID(), result); err != nil {
		return nil, err
	}

	if err := h.verifyReplay(ctx, rec.SessionID(), result); err != nil {
		return nil, err
	}

	tables, err := stateTables(h.session.Snapshot())
	if err != nil {
		return nil, err
	}
	result.State = tables

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeFlow runs all flow steps and compares each outcome with its
// expect clause. Malformed args abort the run; outcome mismatches are
// recorded as result errors.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		expected := step.Expect
		if expected == "" {
			expected = ExpectOK
		}

		opErr, err := h.execute(ctx, step)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Op, err)
		}

		sr := StepResult{Op: step.Op, Expected: expected, Outcome: classify(opErr)}
		if opErr != nil {
			sr.Error = opErr.Error()
		}
		result.Steps = append(result.Steps, sr)

		if sr.Outcome != expected {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got %s (%s)",
				i, step.Op, expected, sr.Outcome, sr.Error))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"outcome", sr.Outcome,
		)
	}
	return nil
}

// execute runs one step. opErr is the operation's own result; err means
// the step itself is malformed.
func (h *Harness) execute(ctx context.Context, step FlowStep) (opErr error, err error) {
	switch step.Op {
	case OpCreate:
		var in model.CreateInput
		if err := decodeArgs(step.Args, &in); err != nil {
			return nil, err
		}
		_, opErr = h.session.Create(ctx, in)
		return opErr, nil

	case OpUpdate:
		id, rest, err := splitID(step.Args)
		if err != nil {
			return nil, err
		}
		clearCategory, _ := rest["clear_category"].(bool)
		delete(rest, "clear_category")
		var patch model.ReminderPatch
		if err := decodeArgs(rest, &patch); err != nil {
			return nil, err
		}
		patch.ClearCategory = clearCategory
		_, opErr = h.session.Update(ctx, id, patch)
		return opErr, nil

	case OpComplete:
		id, _, err := splitID(step.Args)
		if err != nil {
			return nil, err
		}
		_, opErr = h.session.Complete(ctx, id)
		return opErr, nil

	case OpDelete:
		id, _, err := splitID(step.Args)
		if err != nil {
			return nil, err
		}
		return h.session.Delete(ctx, id), nil

	case OpSettings:
		var patch model.SettingsPatch
		if err := decodeArgs(step.Args, &patch); err != nil {
			return nil, err
		}
		_, opErr = h.session.UpdateSettings(ctx, patch)
		return opErr, nil

	case OpRefreshStats:
		return h.session.RefreshStats(ctx), nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// classify maps an operation error to a step outcome.
func classify(err error) string {
	switch {
	case err == nil:
		return ExpectOK
	case coordinator.IsResyncError(err):
		return ExpectResyncError
	case model.IsValidationError(err):
		return ExpectValidationError
	default:
		return ExpectError
	}
}

// collectTrace reads the recorded session back from the journal.
func (h *Harness) collectTrace(ctx context.Context, sessionID string, result *Result) error {
	entries, err := h.journal.ReadSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}

	for _, e := range entries {
		payload, err := decodeCanonical(e.Payload)
		if err != nil {
			return fmt.Errorf("seq %d: %w", e.Seq, err)
		}
		a, err := e.Action()
		if err != nil {
			return fmt.Errorf("seq %d: %w", e.Seq, err)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     e.Seq,
			Kind:    string(e.Kind),
			Payload: payload,
			Ref:     ref(a),
		})
	}
	return nil
}

// verifyReplay replays the recorded session and checks it reproduces the
// live state.
func (h *Harness) verifyReplay(ctx context.Context, sessionID string, result *Result) error {
	rr, err := h.journal.Replay(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to replay: %w", err)
	}
	result.FinalHash = rr.FinalHash

	if !rr.Deterministic {
		result.AddError("replay is not deterministic")
	}
	if !rr.Consistent {
		result.AddError(fmt.Sprintf("replay diverged from recorded state at %d step(s)", len(rr.Mismatches)))
	}

	live, err := h.session.Snapshot().Hash()
	if err != nil {
		return fmt.Errorf("failed to hash live state: %w", err)
	}
	if live != rr.FinalHash {
		result.AddError(fmt.Sprintf("replayed final hash %s differs from live state %s", rr.FinalHash, live))
	}
	return nil
}

// buildGateway seeds an in-memory service from the fixture.
func buildGateway(f Fixture, now time.Time) (*gateway.Memory, error) {
	opts := []gateway.MemoryOption{
		gateway.WithNow(func() time.Time { return now }),
	}

	if f.User != nil {
		user := gateway.DefaultUser()
		if err := decodeArgs(f.User, &user); err != nil {
			return nil, fmt.Errorf("user: %w", err)
		}
		opts = append(opts, gateway.WithUser(user))
	}

	if f.Categories != nil {
		cats := make([]model.Category, len(f.Categories))
		for i, raw := range f.Categories {
			if err := decodeArgs(raw, &cats[i]); err != nil {
				return nil, fmt.Errorf("categories[%d]: %w", i, err)
			}
		}
		opts = append(opts, gateway.WithCategories(cats))
	}

	if len(f.Reminders) > 0 {
		rs := make([]model.Reminder, len(f.Reminders))
		for i, raw := range f.Reminders {
			if err := decodeArgs(raw, &rs[i]); err != nil {
				return nil, fmt.Errorf("reminders[%d]: %w", i, err)
			}
			if rs[i].ID.IsZero() {
				return nil, fmt.Errorf("reminders[%d]: id is required", i)
			}
			if rs[i].CreatedAt.IsZero() {
				rs[i].CreatedAt = now
			}
		}
		opts = append(opts, gateway.WithReminders(rs))
	}

	if f.Stats != nil {
		var st model.Stats
		if err := decodeArgs(f.Stats, &st); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		opts = append(opts, gateway.WithStats(st))
	}

	mem := gateway.NewMemory(opts...)
	for _, op := range f.Fail {
		mem.Fail(gateway.Op(op), nil)
	}
	for _, op := range f.FailOnce {
		mem.FailOnce(gateway.Op(op), nil)
	}
	return mem, nil
}

// decodeArgs converts YAML-parsed args into v through JSON, rejecting
// fields v does not declare.
func decodeArgs(args map[string]interface{}, v interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

// splitID extracts the required id argument and returns the remaining args.
func splitID(args map[string]interface{}) (model.ID, map[string]interface{}, error) {
	raw, ok := args["id"]
	if !ok {
		return "", nil, errors.New("id is required")
	}
	var holder struct {
		ID model.ID `json:"id"`
	}
	if err := decodeArgs(map[string]interface{}{"id": raw}, &holder); err != nil {
		return "", nil, err
	}

	rest := make(map[string]interface{}, len(args))
	for k, v := range args {
		if k != "id" {
			rest[k] = v
		}
	}
	return holder.ID, rest, nil
}

func decodeCanonical(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

// stateTables renders the final state in canonical value form.
func stateTables(s state.State) (map[string]interface{}, error) {
	tables := map[string]interface{}{
		TableSession: map[string]interface{}{
			"loading": s.Loading,
			"error":   s.Error,
		},
	}
	for name, v := range map[string]interface{}{
		TableReminders:  s.Reminders,
		TableCategories: s.Categories,
		TableStats:      s.Stats,
		TableUser:       s.User,
	} {
		val, err := canon.ValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("state %s: %w", name, err)
		}
		tables[name] = val
	}
	return tables, nil
}

// ref digests an action for golden snapshots: reminders as "id:status",
// collections as id lists, stats as their counters.
func ref(a state.Action) interface{} {
	switch v := a.(type) {
	case state.SetLoading:
		return v.Loading
	case state.SetError:
		return v.Message
	case state.SetUser:
		return v.User.ID.String()
	case state.SetReminders:
		ids := make([]interface{}, len(v.Reminders))
		for i, r := range v.Reminders {
			ids[i] = reminderRef(r)
		}
		return ids
	case state.AddReminder:
		return reminderRef(v.Reminder)
	case state.UpdateReminder:
		return reminderRef(v.Reminder)
	case state.RemoveReminder:
		return v.ID.String()
	case state.SetCategories:
		ids := make([]interface{}, len(v.Categories))
		for i, c := range v.Categories {
			ids[i] = c.ID.String()
		}
		return ids
	case state.SetStats:
		return map[string]interface{}{
			"active":    v.Stats.Active,
			"completed": v.Stats.Completed,
			"missed":    v.Stats.Missed,
			"total":     v.Stats.Total,
		}
	}
	return nil
}

func reminderRef(r model.Reminder) string {
	return r.ID.String() + ":" + string(r.Status)
}
