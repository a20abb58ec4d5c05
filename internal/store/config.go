package store

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// MemoryName opens a private in-memory database.
const MemoryName = ":memory:"

// Allowed pragma values.
var (
	JournalModes = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
	SyncModes    = []string{"OFF", "NORMAL", "FULL", "EXTRA"}
)

// Config describes how to open a database.
// Fields missing from a YAML document keep the values of DefaultConfig.
type Config struct {
	// Name is the database file name, or MemoryName.
	Name string `yaml:"name"`
	// Location is the directory holding the file. Empty means the working
	// directory. Ignored for in-memory databases.
	Location string `yaml:"location"`
	// JournalMode is one of JournalModes.
	JournalMode string `yaml:"journal_mode"`
	// Synchronous is one of SyncModes.
	Synchronous string `yaml:"synchronous"`
	// BusyTimeout bounds how long the engine waits on locks held by other
	// processes.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	// ForeignKeys enables foreign key enforcement.
	ForeignKeys bool `yaml:"foreign_keys"`
}

// DefaultConfig returns the configuration used when no option overrides it.
func DefaultConfig() Config {
	return Config{
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		BusyTimeout: 5 * time.Second,
		ForeignKeys: true,
	}
}

// Path returns the path handed to the driver.
func (c Config) Path() string {
	if c.IsMemory() {
		return MemoryName
	}
	return filepath.Join(c.Location, c.Name)
}

// IsMemory reports whether the config names an in-memory database.
func (c Config) IsMemory() bool {
	return c.Name == MemoryName
}

// Validate checks the config and normalizes pragma values to upper case.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("database name is required")
	}
	c.JournalMode = strings.ToUpper(c.JournalMode)
	if !slices.Contains(JournalModes, c.JournalMode) {
		return fmt.Errorf("invalid journal mode %q: must be one of %v", c.JournalMode, JournalModes)
	}
	c.Synchronous = strings.ToUpper(c.Synchronous)
	if !slices.Contains(SyncModes, c.Synchronous) {
		return fmt.Errorf("invalid synchronous mode %q: must be one of %v", c.Synchronous, SyncModes)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy timeout must not be negative: %s", c.BusyTimeout)
	}
	return nil
}
