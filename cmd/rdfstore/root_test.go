package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI and returns what it printed
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	require.NoError(t, err, "rdfstore %s", strings.Join(args, " "))
	return out
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rdfstore", cmd.Use)
	assert.Contains(t, cmd.Long, "N-Triples")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"add"}, {"remove"}, {"list"}, {"size"}, {"resolve"}, {"node"},
		{"namespace", "set"}, {"namespace", "get"}, {"namespace", "list"}, {"namespace", "remove"},
		{"optimize"}, {"export"}, {"purge"}, {"stats"},
	}

	for _, path := range commands {
		name := strings.Join(path, " ")
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %s should exist", name)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	for _, name := range []string{"db", "config", "in-memory"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestStatementCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "store")

	out := mustRun(t, "--db", db, "add", "<http://example.org/alice>", "<http://example.org/knows>", "<http://example.org/bob>")
	assert.Equal(t, "Added 1 statement(s)\n", out)
	mustRun(t, "--db", db, "add", "--inferred", "<http://example.org/bob>", "<http://example.org/name>", `"Bob Smith"@en`, "<http://example.org/g>")

	out = mustRun(t, "--db", db, "list")
	assert.Equal(t,
		"<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .\n"+
			"<http://example.org/bob> <http://example.org/name> \"Bob Smith\"@en <http://example.org/g> .\n",
		out)

	out = mustRun(t, "--db", db, "list", "--explicit")
	assert.NotContains(t, out, "Bob Smith")

	out = mustRun(t, "--db", db, "list", "?s", "?p", "?o", "<http://example.org/g>")
	assert.Contains(t, out, "Bob Smith")
	assert.NotContains(t, out, "knows")

	out = mustRun(t, "--db", db, "list", "--markdown")
	assert.Contains(t, out, "_2 statements_")

	assert.Equal(t, "2\n", mustRun(t, "--db", db, "size"))

	_, err := run(t, "", "--db", db, "remove")
	assert.Error(t, err, "an empty pattern needs --all")

	out = mustRun(t, "--db", db, "remove", "<http://example.org/alice>")
	assert.Equal(t, "Removed 1 statement(s)\n", out)
	assert.Equal(t, "1\n", mustRun(t, "--db", db, "size"))

	out = mustRun(t, "--db", db, "stats")
	assert.Contains(t, out, "tombstones")

	assert.Equal(t, "Purged 1 tombstone(s)\n", mustRun(t, "--db", db, "purge"))

	out = mustRun(t, "--db", db, "remove", "--all")
	assert.Equal(t, "Removed 1 statement(s)\n", out)
}

func TestAddFromFile(t *testing.T) {
	db := filepath.Join(t.TempDir(), "store")
	input := `# people
<http://example.org/a> <http://example.org/p> "one two" .
<http://example.org/a> <http://example.org/p> "3"^^<http://www.w3.org/2001/XMLSchema#integer> .

_:b0 <http://example.org/p> <http://example.org/a> <http://example.org/g> .
`
	out, err := run(t, input, "--db", db, "add", "--file", "-")
	require.NoError(t, err)
	assert.Equal(t, "Added 3 statement(s)\n", out)
	assert.Equal(t, "3\n", mustRun(t, "--db", db, "size"))

	_, err = run(t, "<http://example.org/a> <http://example.org/p>\n", "--db", db, "add", "-f", "-")
	assert.Error(t, err, "two terms are not a statement")

	_, err = run(t, "", "--db", db, "add")
	assert.Error(t, err)
}

func TestNamespaceCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "store")

	mustRun(t, "--db", db, "namespace", "set", "foaf", "http://xmlns.com/foaf/0.1/")
	mustRun(t, "--db", db, "namespace", "set", "ex", "http://example.org/")
	assert.Equal(t, "http://xmlns.com/foaf/0.1/\n", mustRun(t, "--db", db, "namespace", "get", "foaf"))
	assert.Equal(t, "ex: http://example.org/\nfoaf: http://xmlns.com/foaf/0.1/\n",
		mustRun(t, "--db", db, "namespace", "list"))

	mustRun(t, "--db", db, "add", "ex:alice", "foaf:name", `"Alice"`)
	out := mustRun(t, "--db", db, "list", "ex:alice")
	assert.Equal(t, "<http://example.org/alice> <http://xmlns.com/foaf/0.1/name> \"Alice\" .\n", out)

	out = mustRun(t, "--db", db, "list", "--prefix", "http://example.org/")
	assert.Contains(t, out, "Alice")
	out = mustRun(t, "--db", db, "list", "--prefix", "http://other.org/")
	assert.Empty(t, out)

	mustRun(t, "--db", db, "namespace", "remove", "foaf")
	_, err := run(t, "", "--db", db, "namespace", "get", "foaf")
	assert.Error(t, err)

	_, err = run(t, "", "--db", db, "namespace", "set", "bad", "no-scheme")
	assert.Error(t, err)
}

func TestNodeCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "store")

	out := mustRun(t, "--db", db, "resolve", `"hello"@en`)
	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.Len(t, fields, 2)
	assert.Equal(t, `"hello"@en`, fields[1])

	again := mustRun(t, "--db", db, "resolve", `"hello"@EN`)
	assert.Equal(t, out, again, "language tags are case-insensitive")

	assert.Equal(t, "\"hello\"@en\n", mustRun(t, "--db", db, "node", fields[0]))

	_, err := run(t, "", "--db", db, "node", "999999")
	assert.Error(t, err)
	_, err = run(t, "", "--db", db, "node", "abc")
	assert.Error(t, err)
}

func TestOptimizeCommand(t *testing.T) {
	out := mustRun(t, "optimize", "--stats",
		"(slice :limit 10 (projection ?s (join (pattern ?s ?p ?o) (pattern ?o ?q ?r))))")
	assert.Equal(t, `(projection ?s
  (slice :limit 10
    (join
      (pattern ?s ?p ?o)
      (pattern ?o ?q ?r))))
; rounds=2 rotations: Slice=1 Distinct=0 Reduced=0
`, out)

	out, err := run(t, "(distinct (extension e (pattern ?s ?p ?o)))", "optimize")
	require.NoError(t, err)
	assert.Equal(t, "(extension e\n  (distinct\n    (pattern ?s ?p ?o)))\n", out)

	_, err = run(t, "", "optimize", "(frobnicate)")
	assert.Error(t, err)
}

func TestOptimizeWithConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rdfstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("optimizer:\n  global_preconditions: true\n"), 0644))

	out := mustRun(t, "--config", path, "optimize", "--stats", "(slice :limit 1 (projection ?x (order ?x (pattern ?x ?p ?o))))")
	assert.Contains(t, out, "skipped")
	assert.True(t, strings.HasPrefix(out, "(slice :limit 1\n"))

	require.NoError(t, os.WriteFile(path, []byte("output:\n  color: sometimes\n"), 0644))
	_, err := run(t, "", "--config", path, "size")
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "store")
	mustRun(t, "--db", db, "add", "<http://example.org/a>", "<http://example.org/p>", `"x"`)

	out := mustRun(t, "--db", db, "export")
	assert.Contains(t, out, "_1 statements_")

	out = mustRun(t, "--db", db, "export", "--format", "sqlite", "--dsn", filepath.Join(dir, "out.sqlite"))
	assert.Equal(t, "Exported 3 nodes, 1 statements, 0 tombstones\n", out)

	_, err := run(t, "", "--db", db, "export", "--format", "turtle")
	assert.Error(t, err)
}

func TestVerboseEvents(t *testing.T) {
	db := filepath.Join(t.TempDir(), "store")
	out := mustRun(t, "--db", db, "--verbose", "add", "<http://example.org/a>", "<http://example.org/p>", "<http://example.org/b>")
	assert.Contains(t, out, "begins at version")
	assert.Contains(t, out, "committed version")
}

func TestSplitTerms(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`<a> <b> <c> .`, []string{"<a>", "<b>", "<c>", "."}},
		{`<a> <b> "x y" <g>`, []string{"<a>", "<b>", `"x y"`, "<g>"}},
		{`_:b <p> "say \"hi\" now"@en`, []string{"_:b", "<p>", `"say \"hi\" now"@en`}},
		{`ex:a  ex:b	"1"^^<http://www.w3.org/2001/XMLSchema#integer>`, []string{"ex:a", "ex:b", `"1"^^<http://www.w3.org/2001/XMLSchema#integer>`}},
	}
	for _, tt := range tests {
		got, err := splitTerms(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	_, err := splitTerms(`<a> <b> "open`)
	assert.Error(t, err)
}
