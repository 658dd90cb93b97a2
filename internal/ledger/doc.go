// Package ledger provides SQLite-backed history of scenario runs.
//
// Each run is stored with its executed steps and teardown artifacts:
//   - runs: one row per scenario run, keyed by a UUIDv7
//   - steps: the executed trace, ordered by seq
//   - artifacts: the per-actor screenshot path or the error that prevented it
//
// The ledger runs in WAL mode with foreign keys on and a five second busy
// timeout. Its version lives in PRAGMA user_version; Open applies any
// newer migrations and refuses a ledger written by a newer build.
//
// Runs are append-only. A run and its children are written in one
// transaction, so readers never see a partial run.
package ledger
