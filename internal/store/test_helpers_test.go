package store

import (
	"context"
	"testing"
)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Name = "test.db"
	cfg.Location = t.TempDir()
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createUserTable creates the STRICT table most tests write to.
func createUserTable(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.Exec(context.Background(),
		"CREATE TABLE User (id INT PRIMARY KEY, name TEXT NOT NULL, age INT, networth REAL, nickname TEXT) STRICT", nil)
	if err != nil {
		t.Fatalf("create table failed: %v", err)
	}
}
