// Package store owns the single native SQLite session behind a database
// handle.
//
// A Store pins exactly one connection from a database/sql pool capped at one
// open connection, and drives the driver directly through
// (*sql.Conn).Raw: prepare, bind, step, finalize, column metadata, the
// changes()/last_insert_rowid() counters and native transaction control.
// The store never schedules work; callers serialize access to it.
//
// # Database Configuration
//
//   - WAL mode: Concurrent readers from other processes during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks held by other processes up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All of these can be overridden through Config.
//
// # Errors
//
// Engine failures surface as *EngineError carrying SQLite's message text
// verbatim. Any use after Close fails with ErrClosed.
package store
