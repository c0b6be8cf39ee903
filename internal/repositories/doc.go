// Package repositories implements SQLite persistence for yomi's client state.
//
// Key Implementations:
//   - [SettingsRepository] : key/value settings (bearer token, per-user sync flags), satisfies store.Store
//   - [JobRepository] : history of jobs this client submitted or watched, keyed by the remote job id
//
// Sequence numbers provide stable, human-readable ordering (e.g., job #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
