// Package state holds the session state of the reminder client and the only
// code allowed to change it.
//
// State is an immutable value. Every change is expressed as an Action and
// applied by Reduce, a pure and total function: the same ordered action
// sequence applied to Initial() always yields the same State, which the
// journal verifies by replaying recorded sessions and comparing hashes.
//
// Store owns the current State for a session. It is the single writer:
// callers Dispatch actions and read copies through Snapshot.
package state
