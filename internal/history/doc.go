// Package history persists completed 7-Zip runs in a SQLite database.
//
// Each run row stores the final classification (stage, data type, outcome,
// metadata) and, optionally, the encoded raw transcript so the run can be
// replayed later. The store follows the usual SQLite discipline: WAL journal,
// busy timeout and retries on SQLITE_BUSY, and an explicit schema version
// that must match the binary.
package history
