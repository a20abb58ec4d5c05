package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opsql"
)

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// seedDB creates a database holding one User row and returns its path.
func seedDB(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	db, err := opsql.Open("app.db", opsql.WithLocation(dir))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Execute(context.Background(),
		`CREATE TABLE User (id INTEGER PRIMARY KEY, name TEXT NOT NULL, networth REAL) STRICT`)
	require.NoError(t, err)
	_, err = db.Execute(context.Background(),
		`INSERT INTO User (id, name, networth) VALUES (?, ?, ?)`, 7, "Ann", 12.5)
	require.NoError(t, err)

	return filepath.Join(dir, "app.db")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestExec_SelectGolden(t *testing.T) {
	dbPath := seedDB(t)

	for _, format := range []string{"text", "json"} {
		t.Run(format, func(t *testing.T) {
			out, err := runCLI(t, "--format", format, "exec", "--db", dbPath, "SELECT * FROM User")
			require.NoError(t, err)
			newGolden(t).Assert(t, "exec_select."+format, []byte(out))
		})
	}
}

func TestExec_InsertWithArgs(t *testing.T) {
	dbPath := seedDB(t)

	out, err := runCLI(t, "exec", "--db", dbPath,
		"INSERT INTO User (id, name, networth) VALUES (?, ?, ?)", "--args", `[8, "Bob", 1.5]`)
	require.NoError(t, err)
	newGolden(t).Assert(t, "exec_insert.text", []byte(out))

	out, err = runCLI(t, "--format", "json", "exec", "--db", dbPath,
		"SELECT name FROM User WHERE id = ?", "--args", "[8]")
	require.NoError(t, err)
	assert.Contains(t, out, `"rows":[{"name":"Bob"}]`)
}

func TestExec_EngineError(t *testing.T) {
	dbPath := seedDB(t)

	out, err := runCLI(t, "exec", "--db", dbPath, "SELECT * FROM tableThatDoesNotExist")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	newGolden(t).Assert(t, "exec_error.text", []byte(out))
}

func TestExec_EngineErrorJSONDetails(t *testing.T) {
	dbPath := seedDB(t)

	out, err := runCLI(t, "--format", "json", "exec", "--db", dbPath,
		"INSERT INTO User (id, name) VALUES (7, 'Dup')")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.JSONEq(t,
		`{"status":"error","error":{"code":"E101","message":"UNIQUE constraint failed: User.id","details":{"code":19,"extended_code":1555}}}`,
		out)
}

func TestExec_InvalidArgs(t *testing.T) {
	dbPath := seedDB(t)

	tests := []struct {
		name string
		args string
	}{
		{"not_json", "[1,"},
		{"object", `{"id": 1}`},
		{"nested_array", "[[1]]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, "exec", "--db", dbPath, "SELECT ?", "--args", tt.args)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error [E002]")
		})
	}
}

func TestExec_InMemory(t *testing.T) {
	out, err := runCLI(t, "exec", "--db", opsql.MemoryName, "SELECT 1 + 1 AS two")
	require.NoError(t, err)
	assert.Equal(t, "two\n2\n(1 row)\nrows affected: 0, insert id: NULL\n", out)
}

func TestExec_RequiresDatabase(t *testing.T) {
	out, err := runCLI(t, "exec", "SELECT 1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestExec_UsesConfigFile(t *testing.T) {
	dbPath := seedDB(t)
	cfg := writeFile(t, "opsql.yaml", "name: app.db\nlocation: "+filepath.Dir(dbPath)+"\nbusy_timeout: 250ms\n")

	out, err := runCLI(t, "--config", cfg, "exec", "SELECT count(*) AS n FROM User")
	require.NoError(t, err)
	assert.Equal(t, "n\n1\n(1 row)\nrows affected: 0, insert id: NULL\n", out)
}

func TestExec_BadConfigFile(t *testing.T) {
	cfg := writeFile(t, "opsql.yaml", "name: app.db\nunknown_key: true\n")

	out, err := runCLI(t, "--config", cfg, "exec", "SELECT 1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestBatch_YAMLCommitsGolden(t *testing.T) {
	dbPath := seedDB(t)
	batch := writeFile(t, "seed.yaml", `commands:
  - sql: INSERT INTO User (id, name) VALUES (?, ?)
    args: [1, Bea]
  - sql: INSERT INTO User (id, name) VALUES (?, ?)
    args: [2, Cal]
`)

	out, err := runCLI(t, "--format", "json", "batch", "--db", dbPath, batch)
	require.NoError(t, err)
	newGolden(t).Assert(t, "batch_commit.json", []byte(out))

	out, err = runCLI(t, "exec", "--db", dbPath, "SELECT count(*) AS n FROM User")
	require.NoError(t, err)
	assert.Contains(t, out, "n\n3\n")
}

func TestBatch_CUE(t *testing.T) {
	dbPath := seedDB(t)
	batch := writeFile(t, "seed.cue", `commands: [
	{sql: "INSERT INTO User (id, name, networth) VALUES (?, ?, ?)", args: [1, "Bea", 2.5]},
	{sql: "UPDATE User SET networth = networth + 1"},
]
`)

	out, err := runCLI(t, "batch", "--db", dbPath, batch)
	require.NoError(t, err)
	assert.Equal(t, "batch committed: 2 commands, rows affected: 3\n", out)
}

func TestBatch_FailureRollsBackGolden(t *testing.T) {
	dbPath := seedDB(t)
	batch := writeFile(t, "bad.yaml", `commands:
  - sql: INSERT INTO User (id, name) VALUES (3, 'Dee')
  - sql: INSERT INTO User (id, name) VALUES (7, 'Dup')
`)

	out, err := runCLI(t, "--format", "json", "batch", "--db", dbPath, batch)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	newGolden(t).Assert(t, "batch_error.json", []byte(out))

	out, err = runCLI(t, "exec", "--db", dbPath, "SELECT count(*) AS n FROM User WHERE id = 3")
	require.NoError(t, err)
	assert.Contains(t, out, "n\n0\n")
}

func TestBatch_MissingFile(t *testing.T) {
	out, err := runCLI(t, "batch", "--db", opsql.MemoryName, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestLoad_SQLFileGolden(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "fresh.db")
	script := writeFile(t, "schema.sql", `CREATE TABLE Item (id INTEGER PRIMARY KEY, label TEXT);
INSERT INTO Item (label) VALUES ('a');
INSERT INTO Item (label) VALUES ('b');
`)

	out, err := runCLI(t, "load", "--db", dbPath, script)
	require.NoError(t, err)
	newGolden(t).Assert(t, "load.text", []byte(out))

	out, err = runCLI(t, "exec", "--db", dbPath, "SELECT label FROM Item ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, "label\na\nb\n(2 rows)\nrows affected: 0, insert id: NULL\n", out)
}

func TestLoad_MissingFile(t *testing.T) {
	out, err := runCLI(t, "load", "--db", opsql.MemoryName, filepath.Join(t.TempDir(), "missing.sql"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}
