// Package history keeps a SQLite ledger of finished job outcomes. Only
// results are stored; in-flight job state lives in package jobs and is
// never persisted. A nil *Store behaves as a disabled ledger.
package history
