package session

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/zipmap/internal/db"
	"github.com/ryanm101/zipmap/internal/executor"
	"github.com/ryanm101/zipmap/internal/inventory"
	"github.com/ryanm101/zipmap/internal/logging"
	"github.com/ryanm101/zipmap/internal/match"
	"github.com/ryanm101/zipmap/internal/ziptest"
)

// courseFixture: hw1 shares a.txt with old/, hw2 shares nothing.
func courseFixture(t *testing.T) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	ziptest.Write(t, fs, "/src/hw1.zip", "a.txt", "sub/b.txt")
	ziptest.Write(t, fs, "/src/hw2.zip", "x.txt")
	require.NoError(t, fs.MkdirAll("/dst/course", 0755))
	ziptest.Touch(t, fs, "/dst/old/a.txt")
	return fs
}

func run(t *testing.T, fs billy.Filesystem, input, sourceRoot, targetRoot string) (string, error) {
	t.Helper()
	database, err := db.Open(context.Background(), db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	ix, err := match.NewIndex(database, fs, 0)
	require.NoError(t, err)

	var out bytes.Buffer
	s := New(inventory.NewScanner(fs, ""), ix, executor.New(fs), strings.NewReader(input), &out)
	err = s.Run(context.Background(), sourceRoot, targetRoot)
	return out.String(), err
}

func readFile(t *testing.T, fs billy.Filesystem, path string) string {
	t.Helper()
	data, err := util.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func exists(fs billy.Filesystem, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

func TestRun_InitialAutoMapping(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "q\n", "/src", "/dst")
	require.NoError(t, err)

	assert.Contains(t, out, "a /src/hw1.zip -> /dst/old\n")
	assert.Contains(t, out, "b /src/hw2.zip -> (none)\n")
	assert.Contains(t, out, "1 /dst/course\n")
	assert.Contains(t, out, "2 /dst/old\n")
	assert.Equal(t, 1, strings.Count(out, promptCommand))
}

func TestRun_AssignAndExecute(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "b1\nx\n", "/src", "/dst")
	require.NoError(t, err)

	assert.Contains(t, out, "b /src/hw2.zip -> /dst/course\n")
	assert.Contains(t, out, "Extracted 2 archive(s)")

	assert.Equal(t, "a.txt", readFile(t, fs, "/dst/old/a.txt"))
	assert.Equal(t, "sub/b.txt", readFile(t, fs, "/dst/old/sub/b.txt"))
	assert.Equal(t, "x.txt", readFile(t, fs, "/dst/course/x.txt"))

	// x never deletes.
	assert.True(t, exists(fs, "/src/hw1.zip"))
	assert.True(t, exists(fs, "/src/hw2.zip"))
}

func TestRun_ExecuteAndDelete(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "X\n", "/src", "/dst")
	require.NoError(t, err)

	assert.Contains(t, out, "Deleted 1 archive(s)")
	assert.True(t, exists(fs, "/dst/old/sub/b.txt"))
	assert.False(t, exists(fs, "/src/hw1.zip"))
	assert.True(t, exists(fs, "/src/hw2.zip"))
}

func TestRun_ExecuteAndDeleteKeepsFailedArchives(t *testing.T) {
	fs := courseFixture(t)
	require.NoError(t, util.WriteFile(fs, "/src/bad.zip", []byte("not a zip"), 0644))

	// Sources sort as bad, hw1, hw2.
	out, err := run(t, fs, "a1\nX\n", "/src", "/dst")
	require.ErrorIs(t, err, ErrBatchFailed)
	assert.ErrorIs(t, err, executor.ErrExtraction)

	assert.Contains(t, out, "1 extract operation(s) failed")
	assert.True(t, exists(fs, "/src/bad.zip"))
	assert.False(t, exists(fs, "/src/hw1.zip"))
}

func TestRun_UnassignWithZero(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "a0\nx\n", "/src", "/dst")
	require.NoError(t, err)

	assert.Contains(t, out, "a /src/hw1.zip -> (none)\n")
	assert.NotContains(t, out, "Extracted")
	assert.False(t, exists(fs, "/dst/old/sub"))
}

func TestRun_InvalidIDsReportAndContinue(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "z1\na7\nq\n", "/src", "/dst")
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "Error: "))
	assert.Contains(t, out, "source id 'z' out of range")
	assert.Contains(t, out, "target id '7' out of range")
	assert.Equal(t, 3, strings.Count(out, promptCommand))
	// Mapping untouched.
	assert.Equal(t, 3, strings.Count(out, "a /src/hw1.zip -> /dst/old\n"))
}

func TestRun_UnknownInputIgnored(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "\nk\nabc\nq\n", "/src", "/dst")
	require.NoError(t, err)

	assert.NotContains(t, out, "Error: ")
	assert.Equal(t, 4, strings.Count(out, promptCommand))
}

func TestRun_ClearAndAutoMap(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "c\nq\n", "/src", "/dst")
	require.NoError(t, err)
	assert.Contains(t, out, "a /src/hw1.zip -> (none)\n")

	out, err = run(t, fs, "c\na\nq\n", "/src", "/dst")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSuffix(out, promptCommand),
		"a /src/hw1.zip -> /dst/old\nb /src/hw2.zip -> (none)\n\n"))
}

func TestRun_AutoBest(t *testing.T) {
	fs := courseFixture(t)
	// hw1 now overlaps both targets, old/ by more.
	ziptest.Touch(t, fs, "/dst/course/a.txt", "/dst/old/sub/b.txt")

	out, err := run(t, fs, "A\nq\n", "/src", "/dst")
	require.NoError(t, err)

	// The initial unique pass leaves hw1 ambiguous.
	assert.Contains(t, out, "a /src/hw1.zip -> (none)\n")
	assert.Contains(t, out, "a /src/hw1.zip -> /dst/old\n")
}

func TestRun_Help(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "h\nq\n", "/src", "/dst")
	require.NoError(t, err)
	assert.Contains(t, out, "Auto mapping, choosing the best match")
}

func TestRun_ReloadSeesNewArchives(t *testing.T) {
	fs := courseFixture(t)

	database, err := db.Open(context.Background(), db.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = database.Close() }()
	ix, err := match.NewIndex(database, fs, 0)
	require.NoError(t, err)

	// Drop a new archive into the source root while the first prompt waits.
	in := &hookReader{lines: []string{"r\n", "q\n"}, before: map[int]func(){
		0: func() { ziptest.Write(t, fs, "/src/hw3.zip", "a.txt") },
	}}
	var out bytes.Buffer
	s := New(inventory.NewScanner(fs, ""), ix, executor.New(fs), in, &out)
	require.NoError(t, s.Run(context.Background(), "/src", "/dst"))

	first := out.String()[:strings.Index(out.String(), promptCommand)]
	assert.NotContains(t, first, "hw3")
	assert.Contains(t, out.String(), "c /src/hw3.zip\n")
	assert.Contains(t, out.String(), "c /src/hw3.zip -> /dst/old\n")
}

func TestRun_DeleteAndReload(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "d\nq\n", "/src", "/dst")
	require.NoError(t, err)

	assert.Contains(t, out, "Deleted 1 archive(s)")
	assert.False(t, exists(fs, "/src/hw1.zip"))
	assert.False(t, exists(fs, "/dst/old/sub"))

	// After the reload hw2 is the only source left.
	last := out[strings.LastIndex(out, "Source items"):]
	assert.Contains(t, last, "a /src/hw2.zip\n")
	assert.NotContains(t, last, "hw1")
}

func TestRun_EOFQuits(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "", "/src", "/dst")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, promptCommand))

	// An unterminated final line still counts.
	_, err = run(t, fs, "x", "/src", "/dst")
	require.NoError(t, err)
	assert.True(t, exists(fs, "/dst/old/sub/b.txt"))
}

func TestRun_CRLF(t *testing.T) {
	fs := courseFixture(t)

	_, err := run(t, fs, "b1\r\nx\r\n", "/src", "/dst")
	require.NoError(t, err)
	assert.True(t, exists(fs, "/dst/course/x.txt"))
}

func TestRun_PromptsForRoots(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "/src\n/dst\nq\n", "", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, promptSource+promptTarget+"Source items\n"))
	assert.Contains(t, out, "a /src/hw1.zip -> /dst/old\n")
}

func TestRun_MissingRootInput(t *testing.T) {
	fs := courseFixture(t)

	_, err := run(t, fs, "", "", "/dst")
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestRun_RootNotFound(t *testing.T) {
	fs := courseFixture(t)

	out, err := run(t, fs, "q\n", "/nope", "/dst")
	require.ErrorIs(t, err, inventory.ErrNotFound)
	assert.NotContains(t, out, promptCommand)

	_, err = run(t, fs, "q\n", "/src", "/nope")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestRun_NoTargets(t *testing.T) {
	fs := memfs.New()
	ziptest.Write(t, fs, "/src/hw1.zip", "a.txt")
	require.NoError(t, fs.MkdirAll("/dst", 0755))

	out, err := run(t, fs, "a1\nx\n", "/src", "/dst")
	require.NoError(t, err)

	assert.Contains(t, out, "a /src/hw1.zip -> (none)\n")
	assert.Contains(t, out, "Error: ")
}

func TestRun_CanceledContext(t *testing.T) {
	fs := courseFixture(t)

	database, err := db.Open(context.Background(), db.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = database.Close() }()
	ix, err := match.NewIndex(database, fs, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(inventory.NewScanner(fs, ""), ix, executor.New(fs), strings.NewReader("x\n"), &bytes.Buffer{})
	require.Error(t, s.Run(ctx, "/src", "/dst"))
	assert.False(t, exists(fs, "/dst/old/sub"))
}

func TestBatchErr(t *testing.T) {
	assert.NoError(t, batchErr(&executor.Result{Op: executor.OpExtract, Succeeded: 2}))

	failed := &executor.Result{Op: executor.OpDelete, Failed: 1, Errors: []error{
		&executor.DeletionError{Archive: "/src/a.zip", Err: assert.AnError},
	}}
	err := batchErr(&executor.Result{Op: executor.OpExtract}, failed)
	assert.ErrorIs(t, err, ErrBatchFailed)
	assert.ErrorIs(t, err, executor.ErrDeletion)
	assert.ErrorIs(t, err, assert.AnError)
}

// hookReader serves one line per Read and runs a hook before serving the
// line at that position.
type hookReader struct {
	lines  []string
	before map[int]func()
	pos    int
}

func (r *hookReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.lines) {
		return 0, io.EOF
	}
	if hook, ok := r.before[r.pos]; ok {
		hook()
	}
	n := copy(p, r.lines[r.pos])
	r.pos++
	return n, nil
}

func TestRun_PathResolver(t *testing.T) {
	fs := courseFixture(t)

	database, err := db.Open(context.Background(), db.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = database.Close() }()
	ix, err := match.NewIndex(database, fs, 0)
	require.NoError(t, err)

	resolve := func(p string) (string, error) { return "/" + p, nil }
	var out bytes.Buffer
	s := New(inventory.NewScanner(fs, ""), ix, executor.New(fs), strings.NewReader("dst\nq\n"), &out,
		WithPathResolver(resolve))
	require.NoError(t, s.Run(context.Background(), "src", ""))

	assert.Contains(t, out.String(), "a /src/hw1.zip -> /dst/old\n")
}

// promptWriter signals on prompted each time the command prompt is written.
type promptWriter struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	prompted chan struct{}
}

func (w *promptWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if string(p) == promptCommand {
		select {
		case w.prompted <- struct{}{}:
		default:
		}
	}
	return w.buf.Write(p)
}

func TestRun_CancelWhileWaitingForInput(t *testing.T) {
	fs := courseFixture(t)

	database, err := db.Open(context.Background(), db.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = database.Close() }()
	ix, err := match.NewIndex(database, fs, 0)
	require.NoError(t, err)

	// The writer end stays open, so reads block until cancellation.
	in, held := io.Pipe()
	defer func() { _ = held.Close() }()
	out := &promptWriter{prompted: make(chan struct{}, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(inventory.NewScanner(fs, ""), ix, executor.New(fs), in, out)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "/src", "/dst") }()

	select {
	case <-out.prompted:
	case <-time.After(5 * time.Second):
		t.Fatal("no command prompt")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.False(t, exists(fs, "/dst/old/sub"))
}

func TestRun_CancelAtRootPrompt(t *testing.T) {
	fs := courseFixture(t)

	in, held := io.Pipe()
	defer func() { _ = held.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(inventory.NewScanner(fs, ""), nil, executor.New(fs), in, &bytes.Buffer{})
	assert.ErrorIs(t, s.Run(ctx, "", "/dst"), context.Canceled)
}

func TestRun_LogsCommands(t *testing.T) {
	var logs bytes.Buffer
	logging.Setup(logging.Config{Format: "text", Level: "debug", Output: &logs})
	t.Cleanup(func() { logging.Setup(logging.DefaultConfig()) })

	fs := courseFixture(t)
	_, err := run(t, fs, "b1\nq\n", "/src", "/dst")
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "kind=assign terminal=false")
	assert.Contains(t, logs.String(), "previous=\"\" target=/dst/course")
	assert.Contains(t, logs.String(), "kind=quit terminal=true")
	assert.Contains(t, logs.String(), "sources=2 assigned=1")
}
