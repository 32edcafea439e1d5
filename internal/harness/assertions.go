package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/remsync/internal/canon"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Kind, event.Ref)
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains an action of the given
// kind whose payload contains args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := normalize(assertion.Args)
	if err != nil {
		return err
	}

	for _, event := range trace {
		if event.Kind == assertion.Action && matchSubset(event.Payload, expected) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the kinds appear as a subsequence of the
// trace. Intervening actions are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Actions) && event.Kind == assertion.Actions[next] {
			next++
		}
	}

	if next < len(assertion.Actions) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
			Actual:   fmt.Sprintf("matched %d of %d, missing %s after %v", next, len(assertion.Actions), assertion.Actions[next], assertion.Actions[:next]),
			Trace:    trace,
		}
	}

	return nil
}

// assertTraceCount checks if the kind appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks a final state table against expected values.
// reminders and categories are filtered by where; with rows set the number
// of matches must equal rows, otherwise exactly one row must match.
func assertFinalState(tables map[string]interface{}, assertion Assertion) error {
	table, ok := tables[assertion.Table]
	if !ok {
		return fmt.Errorf("final_state: unknown table %q", assertion.Table)
	}

	expect, err := normalize(assertion.Expect)
	if err != nil {
		return err
	}

	switch assertion.Table {
	case TableReminders, TableCategories:
		return assertRows(table, assertion, expect)
	}

	if table == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s to be set", assertion.Table),
			Actual:   "null",
		}
	}
	return checkFields(assertion.Table, table, expect)
}

func assertRows(table interface{}, assertion Assertion, expect map[string]interface{}) error {
	where, err := normalize(assertion.Where)
	if err != nil {
		return err
	}

	rows, _ := table.([]interface{})
	var matched []interface{}
	for _, row := range rows {
		if matchSubset(row, where) {
			matched = append(matched, row)
		}
	}

	whereDesc := formatWhereClause(assertion.Where)

	if assertion.Rows != nil {
		if len(matched) != *assertion.Rows {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%d row(s) in %s where %s", *assertion.Rows, assertion.Table, whereDesc),
				Actual:   fmt.Sprintf("%d row(s)", len(matched)),
			}
		}
		if len(expect) == 0 {
			return nil
		}
		for _, row := range matched {
			if err := checkFields(assertion.Table, row, expect); err != nil {
				return err
			}
		}
		return nil
	}

	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
		return checkFields(assertion.Table, matched[0], expect)
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}
}

// checkFields compares expected fields with a row (subset semantics).
func checkFields(table string, row interface{}, expect map[string]interface{}) error {
	actual, ok := row.(map[string]interface{})
	if !ok {
		return fmt.Errorf("final_state: %s is not an object", table)
	}

	for _, key := range canon.SortedKeys(expect) {
		expectedValue := expect[key]
		actualValue, exists := actual[key]
		if !exists {
			// omitempty fields are absent when empty
			if isEmptyValue(expectedValue) {
				continue
			}
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist in %s", key, table),
				Actual:   fmt.Sprintf("field %q not present", key),
			}
		}
		if !matchSubset(actualValue, expectedValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", table, key, expectedValue),
				Actual:   fmt.Sprintf("%s.%s = %v", table, key, actualValue),
			}
		}
	}
	return nil
}

// formatWhereClause formats a where clause for error messages.
func formatWhereClause(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(all rows)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// normalize converts YAML-parsed values into the canonical value space so
// they compare equal to payloads and state (ints become json.Number).
func normalize(m map[string]interface{}) (map[string]interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	v, err := canon.ValueOf(m)
	if err != nil {
		return nil, fmt.Errorf("normalize expected values: %w", err)
	}
	out, _ := v.(map[string]interface{})
	return out, nil
}

// matchSubset reports whether actual contains expected. Objects match when
// every expected key matches; numbers compare by value; everything else
// must be equal.
func matchSubset(actual, expected interface{}) bool {
	switch exp := expected.(type) {
	case nil:
		return actual == nil
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return false
		}
		for k, ev := range exp {
			av, exists := act[k]
			if !exists {
				if isEmptyValue(ev) {
					continue
				}
				return false
			}
			if !matchSubset(av, ev) {
				return false
			}
		}
		return true
	case json.Number:
		act, ok := actual.(json.Number)
		if !ok {
			return false
		}
		if act == exp {
			return true
		}
		af, aerr := act.Float64()
		ef, eerr := exp.Float64()
		return aerr == nil && eerr == nil && af == ef
	}
	return reflect.DeepEqual(actual, expected)
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	}
	return false
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
