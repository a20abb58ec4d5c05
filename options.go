package opsql

import (
	"log/slog"
	"time"

	"github.com/roach88/opsql/internal/store"
)

// Config describes how a database is opened.
type Config = store.Config

// DefaultConfig returns WAL journaling, synchronous=NORMAL, a 5s busy
// timeout and foreign keys on.
func DefaultConfig() Config {
	return store.DefaultConfig()
}

// MemoryName opens a private in-memory database.
const MemoryName = store.MemoryName

// Option configures Open.
type Option func(*options)

type options struct {
	cfg    Config
	logger *slog.Logger
}

// WithConfig replaces the whole configuration. Name is kept from Open.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		name := o.cfg.Name
		o.cfg = cfg
		o.cfg.Name = name
	}
}

// WithLocation sets the directory holding the database file.
func WithLocation(dir string) Option {
	return func(o *options) {
		o.cfg.Location = dir
	}
}

// WithJournalMode sets PRAGMA journal_mode.
func WithJournalMode(mode string) Option {
	return func(o *options) {
		o.cfg.JournalMode = mode
	}
}

// WithSynchronous sets PRAGMA synchronous.
func WithSynchronous(mode string) Option {
	return func(o *options) {
		o.cfg.Synchronous = mode
	}
}

// WithBusyTimeout sets PRAGMA busy_timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.cfg.BusyTimeout = d
	}
}

// WithForeignKeys sets PRAGMA foreign_keys.
func WithForeignKeys(on bool) Option {
	return func(o *options) {
		o.cfg.ForeignKeys = on
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
