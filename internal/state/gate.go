package state

import "sync"

// TicketGate orders overlapping fetches of one resource. Each fetch takes a
// ticket before its request; its response commits only if no later ticket
// has committed first. Safe for concurrent use.
type TicketGate struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
}

// NewTicketGate creates an empty gate.
func NewTicketGate() *TicketGate {
	return &TicketGate{}
}

// Take issues the next ticket.
func (g *TicketGate) Take() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued++
	return g.issued
}

// Commit runs commit and returns true unless a newer ticket has already
// committed. commit runs under the gate lock, so commits never interleave.
func (g *TicketGate) Commit(ticket uint64, commit func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ticket < g.applied {
		return false
	}
	g.applied = ticket
	commit()
	return true
}
