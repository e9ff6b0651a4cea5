// Package sqlite provides the SQLite-backed metadata store: spaces,
// items, and query history. Single-row updates and deletes are atomic
// with respect to concurrent readers; the database runs in WAL mode.
package sqlite
