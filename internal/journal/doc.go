// Package journal records the actions a session applies to its state in a
// SQLite database, and replays them to check the reducer is deterministic.
//
// The journal is a diagnostic trace. Nothing restores a live session from
// it: state always comes from the remote service.
//
// # Layout
//
//   - sessions: one row per recorded session, keyed by a UUIDv7
//   - actions: append-only, UNIQUE(session_id, seq), payload as JSON
//
// All reads are ORDER BY seq ASC; wall-clock columns are informational only.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - One open connection: SQLite has a single writer
package journal
