// Package harness runs YAML conformance scenarios against a real session.
//
// # Scenario Format
//
//	name: create_and_complete
//	description: "What this scenario validates"
//	session_id: test-session-001     # optional, fixed for golden files
//	now: 2026-03-01T09:00:00Z        # optional service clock
//	bootstrap: true                  # optional, default true
//	resync_on_delete: true           # optional, default true
//	fixture:
//	  user: { language: en }
//	  reminders:
//	    - { id: r1, title: "Water plants", remind_at: 2026-03-01T12:00:00Z }
//	  categories: [ ... ]            # omitted means service defaults
//	  stats: { ... }                 # pins the stats response
//	  fail: [fetch_stats]            # operations that always fail
//	  fail_once: [create_reminder]   # operations that fail once
//	flow:
//	  - op: create
//	    args: { title: "Buy milk", remind_at: 2026-03-02T10:00:00Z }
//	    expect: ok
//	assertions:
//	  - type: trace_contains
//	    action: ADD_REMINDER
//	    args: { reminder: { title: "Buy milk" } }
//	  - type: final_state
//	    table: reminders
//	    where: { id: r2 }
//	    expect: { status: active }
//
// # Flow Operations
//
// create, update, complete, delete, settings and refresh_stats map onto the
// session's mutation operations. update takes id, the patch fields and an
// optional clear_category flag. Each step expects one of ok, error,
// validation_error or resync_error (default ok).
//
// # Assertion Types
//
//   - trace_contains: an action of the given kind whose payload contains args
//   - trace_order: action kinds appear as a subsequence in this order
//   - trace_count: an action kind appears exactly count times
//   - final_state: a row of reminders, categories, stats, user or session
//     matches expect (reminders and categories are filtered by where)
//
// # Determinism
//
// Every run uses a fresh in-memory gateway, a deterministic logical clock,
// a fixed service clock and a fixed journal session id. Actions are
// recorded to an in-memory journal and the trace is read back from it; the
// recorded session is then replayed and a run whose replay diverges fails.
package harness
