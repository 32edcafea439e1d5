package journal

import (
	"context"
	"fmt"

	"github.com/roach88/remsync/internal/state"
)

// Mismatch is a step whose replayed state hash differs from the recorded one.
type Mismatch struct {
	Seq      int64      `json:"seq"`
	Kind     state.Kind `json:"kind"`
	Recorded string     `json:"recorded"`
	Replayed string     `json:"replayed"`
}

// ReplayResult reports a replay of one session.
type ReplayResult struct {
	SessionID string `json:"session_id"`
	Steps     int    `json:"steps"`

	// Deterministic is true when two independent replays produced the same
	// final state hash.
	Deterministic bool `json:"deterministic"`

	// Consistent is true when every replayed step matched the state hash
	// recorded when the action was first applied.
	Consistent bool       `json:"consistent"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`

	FinalHash string      `json:"final_hash"`
	Final     state.State `json:"-"`
}

// Replay re-reduces a recorded session from state.Initial() twice and
// compares both runs with each other and with the recorded hashes.
//
// Recorded sessions start from state.Initial(); a session recorded with a
// different starting state reports mismatches.
func (j *Journal) Replay(ctx context.Context, sessionID string) (ReplayResult, error) {
	entries, err := j.ReadSession(ctx, sessionID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	actions := make([]state.Action, len(entries))
	for i, e := range entries {
		a, err := e.Action()
		if err != nil {
			return ReplayResult{}, fmt.Errorf("replay seq %d: %w", e.Seq, err)
		}
		actions[i] = a
	}

	res := ReplayResult{SessionID: sessionID, Steps: len(entries), Consistent: true}

	first := state.Initial()
	for i, a := range actions {
		first = state.Reduce(first, a)
		h, err := first.Hash()
		if err != nil {
			return ReplayResult{}, fmt.Errorf("replay seq %d: %w", entries[i].Seq, err)
		}
		if h != entries[i].StateHash {
			res.Consistent = false
			res.Mismatches = append(res.Mismatches, Mismatch{
				Seq:      entries[i].Seq,
				Kind:     entries[i].Kind,
				Recorded: entries[i].StateHash,
				Replayed: h,
			})
		}
	}

	second := state.ReduceAll(state.Initial(), actions...)

	h1, err := first.Hash()
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	h2, err := second.Hash()
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	res.Deterministic = h1 == h2
	res.FinalHash = h1
	res.Final = first
	return res, nil
}
