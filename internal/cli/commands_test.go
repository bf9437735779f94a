package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/kvsync/pkg/errors"
	"github.com/arthur-debert/kvsync/pkg/host/filestore"
)

// isolate keeps config, logs and data of a test inside temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	return t.TempDir()
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--dir", dir, "--format", "text"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSetGet(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "set", "message", "Hello, World!")
	require.NoError(t, err)
	_, err = run(t, dir, "set", "total", "42")
	require.NoError(t, err)
	_, err = run(t, dir, "set", "code", "42", "--string")
	require.NoError(t, err)

	out, err := run(t, dir, "get", "message")
	require.NoError(t, err)
	assert.Equal(t, "\"Hello, World!\"\n", out)

	out, err = run(t, dir, "get", "total")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = run(t, dir, "get", "code")
	require.NoError(t, err)
	assert.Equal(t, "\"42\"\n", out)

	store, err := filestore.Open(dir)
	require.NoError(t, err)
	raw, ok := store.GetItem("total")
	require.True(t, ok)
	assert.Equal(t, "42", raw)
}

func TestGetMissing(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "get", "nothing")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestPaths(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "set", "settings", "dark", "--path", "theme.name")
	require.NoError(t, err)

	out, err := run(t, dir, "get", "settings", "--path", "theme.name")
	require.NoError(t, err)
	assert.Equal(t, "\"dark\"\n", out)

	_, err = run(t, dir, "get", "settings", "--path", "theme.size")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestPrefixListRemoveClear(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "--prefix", "a-", "set", "x", "1")
	require.NoError(t, err)
	_, err = run(t, dir, "--prefix", "a-", "set", "y", "2")
	require.NoError(t, err)
	_, err = run(t, dir, "--prefix", "b-", "set", "x", "3")
	require.NoError(t, err)

	out, err := run(t, dir, "--prefix", "a-", "list")
	require.NoError(t, err)
	assert.Equal(t, "x\t1\ny\t2\n", out)

	out, err = run(t, dir, "list")
	require.NoError(t, err)
	assert.Equal(t, "a-x\t1\na-y\t2\nb-x\t3\n", out)

	_, err = run(t, dir, "--prefix", "a-", "rm", "x")
	require.NoError(t, err)
	_, err = run(t, dir, "--prefix", "a-", "get", "x")
	assert.Error(t, err)

	_, err = run(t, dir, "--prefix", "a-", "clear")
	require.NoError(t, err)
	out, err = run(t, dir, "list")
	require.NoError(t, err)
	assert.Equal(t, "b-x\t3\n", out, "clearing a prefix keeps other items")

	_, err = run(t, dir, "clear")
	require.NoError(t, err)
	out, err = run(t, dir, "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestListJSON(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "set", "k", `{"a":[1,2]}`)
	require.NoError(t, err)

	out, err := run(t, dir, "list", "--format", "json")
	require.NoError(t, err)

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "k", items[0]["key"])
	assert.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, items[0]["value"])
}

func TestInvalidFormat(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "list", "--format", "xml")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestConfigCmd(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, dir, "--prefix", "p-", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "[storage]")
	assert.Contains(t, out, "prefix = 'p-'")
	assert.Contains(t, out, dir)

	out, err = run(t, dir, "config", "--defaults")
	require.NoError(t, err)
	assert.Contains(t, out, `# format = "auto"`)
}

func TestVersionCmd(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, dir, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "kvsync version "))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch(t *testing.T) {
	dir := isolate(t)

	out := &lockedBuffer{}
	cmd := NewRootCmd()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--dir", dir, "--format", "text", "--prefix", "app:", "watch"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	writer, err := filestore.Open(dir)
	require.NoError(t, err)

	n := 0
	require.Eventually(t, func() bool {
		n++
		_ = writer.SetItem("other:x", "0")
		_ = writer.SetItem("app:count", strings.Repeat("1", n))
		return strings.Contains(out.String(), "count")
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	assert.NotContains(t, out.String(), "other:x")
	assert.NotContains(t, out.String(), "app:count", "keys are shown without the prefix")
}

func TestConfirmations(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, dir, "set", "message", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Set message\n", out)

	out, err = run(t, dir, "rm", "message")
	require.NoError(t, err)
	assert.Equal(t, "Removed message\n", out)

	_, err = run(t, dir, "--prefix", "p-", "set", "a", "1")
	require.NoError(t, err)
	out, err = run(t, dir, "--prefix", "p-", "clear")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 items under p-\n", out)

	out, err = run(t, dir, "clear")
	require.NoError(t, err)
	assert.Equal(t, "Cleared the store\n", out)

	out, err = run(t, dir, "-q", "set", "message", "hi")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGetPathNull(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "set", "settings", `{"accent":null}`)
	require.NoError(t, err)

	out, err := run(t, dir, "get", "settings", "--path", "accent")
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)
}

func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestExecute(t *testing.T) {
	dir := isolate(t)

	t.Run("success", func(t *testing.T) {
		stdout, stderr, code := execute(t, "--dir", dir, "--format", "text", "set", "k", "1")
		assert.Equal(t, 0, code)
		assert.Equal(t, "Set k\n", stdout)
		assert.Empty(t, stderr)
	})

	t.Run("text error with details", func(t *testing.T) {
		_, stderr, code := execute(t, "--dir", dir, "--format", "text", "--prefix", "p-", "get", "nothing")
		assert.Equal(t, 1, code)
		assert.Equal(t, "Error: [NOT_FOUND] item \"nothing\" not found\n  item: nothing\n  prefix: p-\n", stderr)
	})

	t.Run("json error", func(t *testing.T) {
		stdout, stderr, code := execute(t, "--dir", dir, "--format", "json", "get", "k", "--path", "a.b")
		assert.Equal(t, 1, code)
		assert.Empty(t, stdout)

		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(stderr), &doc))
		assert.Equal(t, "NOT_FOUND", doc["code"])
		assert.Equal(t, map[string]any{"item": "k", "path": "a.b"}, doc["details"])
	})

	t.Run("config failure uses the format flag", func(t *testing.T) {
		_, stderr, code := execute(t, "--dir", dir, "--format", "json", "--config", filepath.Join(dir, "kvsync.ini"), "list")
		assert.Equal(t, 1, code)

		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(stderr), &doc))
		assert.Equal(t, "CONFIG_LOAD", doc["code"])
	})

	t.Run("invalid format falls back to text", func(t *testing.T) {
		_, stderr, code := execute(t, "--dir", dir, "--format", "xml", "list")
		assert.Equal(t, 1, code)
		assert.True(t, strings.HasPrefix(stderr, "Error: [INVALID_INPUT]"))
	})
}
