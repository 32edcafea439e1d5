package testutil

// FixedSessionID returns the same session id every time, so journals
// written by the same scenario are byte-identical.
//
// Thread-safety: stateless, safe for concurrent use.
type FixedSessionID struct {
	id string
}

// NewFixedSessionID creates a generator for id. An empty id selects
// "test-session-default".
func NewFixedSessionID(id string) *FixedSessionID {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedSessionID{id: id}
}

// Generate returns the fixed id.
func (g *FixedSessionID) Generate() string {
	return g.id
}
