package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opsql/internal/ir"
	"github.com/roach88/opsql/internal/store"
)

func TestExecuteBatch_Commits(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	br, err := c.ExecuteBatch(ctx, []Command{
		insertUser(1, "Alice"),
		insertUser(2, "Bob"),
		{SQL: "UPDATE User SET age = 40"},
		{SQL: "SELECT * FROM User"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4), br.RowsAffected, "two inserts plus two updated rows")
	require.Len(t, br.Results, 4)
	assert.Equal(t, int64(2), br.Results[2].RowsAffected)
	assert.Equal(t, 2, br.Results[3].Rows.Len())
	assert.Equal(t, int64(2), countUsers(t, c))
}

func TestExecuteBatch_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.ExecuteBatch(ctx, []Command{
		insertUser(1, "Alice"),
		{SQL: "INSERT INTO User (id, name) VALUES (?, ?)", Args: []any{"sushi", "Oscar"}},
		insertUser(3, "Carol"),
	})
	require.Error(t, err)

	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 1, be.Index)
	assert.Equal(t, "cannot store TEXT value in INT column User.id", be.Err.Error())
	assert.Equal(t, "cannot store TEXT value in INT column User.id", err.Error())

	_, ok := store.AsEngineError(err)
	assert.True(t, ok, "batch errors unwrap to the engine error")

	assert.Equal(t, int64(0), countUsers(t, c))
}

func TestExecuteBatch_Empty(t *testing.T) {
	c := newTestClient(t)

	br, err := c.ExecuteBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, br)
}

func TestExecuteBatchAsync(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	br, err := c.ExecuteBatchAsync(ctx, []Command{
		insertUser(1, "Alice"),
		insertUser(2, "Bob"),
	}).Await(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), br.RowsAffected)

	res, err := c.Execute(ctx, "SELECT id, name FROM User ORDER BY id")
	require.NoError(t, err)
	require.Equal(t, 2, res.Rows.Len())
	assert.Equal(t, map[string]any{"id": int64(1), "name": "Alice"}, res.Rows.At(0).Map())
	assert.Equal(t, map[string]any{"id": int64(2), "name": "Bob"}, res.Rows.At(1).Map())
}

func TestExecuteBatch_InsideTransaction(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	rollback := errors.New("undo everything")
	err := c.Transaction(ctx, func(ctx context.Context, tx *Tx) error {
		if _, err := tx.Execute(ctx, "INSERT INTO User (id, name) VALUES (?, ?)", 1, "tx"); err != nil {
			return err
		}

		// A failing nested batch undoes only its own commands.
		_, err := c.ExecuteBatch(ctx, []Command{
			insertUser(2, "batch"),
			insertUser(1, "duplicate"),
		})
		var be *BatchError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, 1, be.Index)

		res, err := tx.Execute(ctx, "SELECT count(*) FROM User")
		require.NoError(t, err)
		assert.Equal(t, ir.Int(1), res.Rows.At(0).At(0))

		// A succeeding one stays part of the transaction.
		_, err = c.ExecuteBatch(ctx, []Command{insertUser(3, "batch")})
		require.NoError(t, err)

		return rollback
	})
	assert.Same(t, rollback, err)
	assert.Equal(t, int64(0), countUsers(t, c))
}
