package journal

import (
	"context"
	"fmt"

	"github.com/roach88/remsync/internal/canon"
	"github.com/roach88/remsync/internal/state"
)

// Recorder appends one session's actions. It implements state.Recorder.
type Recorder struct {
	j         *Journal
	sessionID string
}

var _ state.Recorder = (*Recorder)(nil)

// timestampLayout is fixed width so started_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// StartSession registers a new session and returns its recorder.
func (j *Journal) StartSession(ctx context.Context, label string) (*Recorder, error) {
	id := j.ids.Generate()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, label, j.now().UTC().Format(timestampLayout))
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return &Recorder{j: j, sessionID: id}, nil
}

// SessionID returns the id of the recorded session.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Record appends an applied action. Re-recording the same seq is a no-op.
func (r *Recorder) Record(seq int64, a state.Action, stateHash string) error {
	return r.RecordContext(context.Background(), seq, a, stateHash)
}

// RecordContext is Record with a caller-supplied context.
func (r *Recorder) RecordContext(ctx context.Context, seq int64, a state.Action, stateHash string) error {
	payload, err := canon.Encode(a)
	if err != nil {
		return fmt.Errorf("record seq %d: %w", seq, err)
	}
	actionHash := canon.HashBytes(canon.DomainAction, append([]byte(string(a.Kind())+"\x00"), payload...))

	_, err = r.j.db.ExecContext(ctx, `
		INSERT INTO actions (session_id, seq, kind, payload, action_hash, state_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`, r.sessionID, seq, string(a.Kind()), string(payload), actionHash, stateHash)
	if err != nil {
		return fmt.Errorf("record seq %d: %w", seq, err)
	}
	return nil
}
