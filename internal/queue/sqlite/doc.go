// Package sqlite is the default queue.Store backend, a single-file SQLite
// database opened in WAL mode. Contended operations are retried briefly on
// SQLITE_BUSY; the claim retries the whole transaction so every attempt
// re-validates against a fresh snapshot.
package sqlite
