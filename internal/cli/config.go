package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/opsql"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeInvalidArgs = "E002" // Malformed --args or command input
	ErrCodeConfig      = "E003" // Config file unreadable or invalid
	ErrCodeLoadFailed  = "E004" // Batch file could not be loaded
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeOpenFailed  = "E006" // Database could not be opened

	ErrCodeEngine      = "E101" // SQLite rejected a statement
	ErrCodeBatchFailed = "E102" // A batch command failed; batch rolled back
)

// commandError is a failure of the command itself rather than of the
// database: bad input, unreadable files.
type commandError struct {
	Code string
	Err  error
}

func (e *commandError) Error() string {
	return e.Err.Error()
}

func (e *commandError) Unwrap() error {
	return e.Err
}

func newCommandError(code string, err error) *commandError {
	return &commandError{Code: code, Err: err}
}

// loadConfig reads a YAML database config. Keys missing from the file keep
// their default values.
func loadConfig(path string) (opsql.Config, error) {
	cfg := opsql.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// newLogger builds the CLI logger: text on w, Debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openDB opens the database at dbPath using the config named by opts.
// An empty dbPath falls back to the config's location and name.
func openDB(opts *RootOptions, dbPath string, logger *slog.Logger) (*opsql.DB, error) {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return nil, newCommandError(ErrCodeConfig, err)
	}

	name := cfg.Name
	if dbPath != "" {
		name = dbPath
		cfg.Location = ""
		if dbPath != opsql.MemoryName {
			cfg.Location = filepath.Dir(dbPath)
			name = filepath.Base(dbPath)
		}
	}
	if name == "" {
		return nil, newCommandError(ErrCodeInvalidArgs, errors.New("--db or a config name is required"))
	}

	db, err := opsql.Open(name, opsql.WithConfig(cfg), opsql.WithLogger(logger))
	if err != nil {
		return nil, newCommandError(ErrCodeOpenFailed, err)
	}
	return db, nil
}

// reportError writes err through the formatter and returns the ExitError
// for it. Database errors keep SQLite's message unchanged.
func reportError(f *OutputFormatter, err error) error {
	var ce *commandError
	if errors.As(err, &ce) {
		_ = f.Error(ce.Code, ce.Err.Error(), nil)
		return WrapExitError(ExitCommandError, ce.Code, ce.Err)
	}

	var be *opsql.BatchError
	if errors.As(err, &be) {
		_ = f.Error(ErrCodeBatchFailed, be.Err.Error(), map[string]any{"index": be.Index})
		return WrapExitError(ExitFailure, ErrCodeBatchFailed, err)
	}

	var ee *opsql.EngineError
	if errors.As(err, &ee) {
		_ = f.Error(ErrCodeEngine, ee.Message, map[string]any{"code": int(ee.Code), "extended_code": int(ee.ExtendedCode)})
		return WrapExitError(ExitFailure, ErrCodeEngine, err)
	}

	_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitFailure, ErrCodeGeneric, err)
}
