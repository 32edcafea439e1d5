package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/remsync/internal/state"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("journal: session not found")

// SessionInfo summarises a recorded session.
type SessionInfo struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	StartedAt string `json:"started_at"`
	Actions   int    `json:"actions"`
	LastSeq   int64  `json:"last_seq"`
}

// Entry is one recorded action.
type Entry struct {
	SessionID  string          `json:"session_id"`
	Seq        int64           `json:"seq"`
	Kind       state.Kind      `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	ActionHash string          `json:"action_hash"`
	StateHash  string          `json:"state_hash"`
}

// Action decodes the recorded action.
func (e Entry) Action() (state.Action, error) {
	return state.DecodeAction(e.Kind, e.Payload)
}

// Sessions lists recorded sessions, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.label, s.started_at, COUNT(a.seq), COALESCE(MAX(a.seq), 0)
		FROM sessions s
		LEFT JOIN actions a ON a.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionInfo{}
	for rows.Next() {
		var si SessionInfo
		if err := rows.Scan(&si.ID, &si.Label, &si.StartedAt, &si.Actions, &si.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, si)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// LatestSession returns the most recently started session.
func (j *Journal) LatestSession(ctx context.Context) (SessionInfo, error) {
	all, err := j.Sessions(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	if len(all) == 0 {
		return SessionInfo{}, ErrSessionNotFound
	}
	return all[len(all)-1], nil
}

// ReadSession returns a session's actions in seq order. Kinds, when given,
// filter the result.
func (j *Journal) ReadSession(ctx context.Context, sessionID string, kinds ...state.Kind) ([]Entry, error) {
	var exists int
	err := j.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, payload, action_hash, state_hash
		FROM actions
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	want := make(map[state.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	out := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			kind    string
			payload string
		)
		if err := rows.Scan(&e.SessionID, &e.Seq, &kind, &payload, &e.ActionHash, &e.StateHash); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		e.Kind = state.Kind(kind)
		e.Payload = json.RawMessage(payload)
		if len(want) > 0 && !want[e.Kind] {
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return out, nil
}
