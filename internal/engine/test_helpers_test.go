package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/opsql/internal/ir"
	"github.com/roach88/opsql/internal/scheduler"
	"github.com/roach88/opsql/internal/store"
)

const createUserSQL = `CREATE TABLE User (
	id INT PRIMARY KEY,
	name TEXT NOT NULL,
	age INT,
	networth REAL,
	nickname TEXT
) STRICT`

// newTestClient opens a temp-dir database with the User table.
func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.Name = "engine.db"
	cfg.Location = t.TempDir()

	s, err := store.Open(context.Background(), cfg)
	require.NoError(t, err)

	c := New(s, opts...)
	t.Cleanup(func() { c.Close() })

	_, err = c.Execute(context.Background(), createUserSQL)
	require.NoError(t, err)
	return c
}

func insertUser(id int, name string) Command {
	return Command{
		SQL:  "INSERT INTO User (id, name) VALUES (?, ?)",
		Args: []any{id, name},
	}
}

func countUsers(t *testing.T, c *Client) int64 {
	t.Helper()
	res, err := c.Execute(context.Background(), "SELECT count(*) AS n FROM User")
	require.NoError(t, err)
	require.Equal(t, 1, res.Rows.Len())
	n, ok := res.Rows.At(0).Get("n")
	require.True(t, ok)
	return int64(n.(ir.Int))
}

// fixedIDs returns a lease id generator with predetermined ids, padded
// with generated ones for any further leases.
func fixedIDs(ids ...string) scheduler.IDGenerator {
	return &paddedGenerator{fixed: scheduler.NewFixedGenerator(ids...), left: len(ids)}
}

type paddedGenerator struct {
	fixed *scheduler.FixedGenerator
	mu    sync.Mutex
	left  int
}

func (g *paddedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.left > 0 {
		g.left--
		return g.fixed.Generate()
	}
	return scheduler.UUIDv7Generator{}.Generate()
}
