package toolexec

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/pkg/types"
)

func TestReadWriteEditRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	write := NewWriteTool(dir)
	args, _ := json.Marshal(writeInput{FilePath: path, Content: "hello world"})
	res, err := write.Execute(context.Background(), args, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	read := NewReadTool(dir)
	args, _ = json.Marshal(readInput{FilePath: path})
	res, err = read.Execute(context.Background(), args, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "hello world")

	edit := NewEditTool(dir)
	args, _ = json.Marshal(editInput{FilePath: path, OldString: "world", NewString: "go"})
	res, err = edit.Execute(context.Background(), args, nil)
	require.NoError(t, err)

	data, _ := os.ReadFile(path)
	assert.Equal(t, "hello go", string(data))
}

func TestEditRejectsAmbiguousMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo\nfoo\n"), 0644))

	edit := NewEditTool(dir)
	args, _ := json.Marshal(editInput{FilePath: path, OldString: "foo", NewString: "bar"})
	_, err := edit.Execute(context.Background(), args, nil)
	assert.Error(t, err)
}

func TestBashToolCapturesOutput(t *testing.T) {
	bash := NewBashTool(t.TempDir())
	args, _ := json.Marshal(bashInput{Command: "echo hi"})
	res, err := bash.Execute(context.Background(), args, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "hi")
}

func TestBashToolNonZeroExit(t *testing.T) {
	bash := NewBashTool(t.TempDir())
	args, _ := json.Marshal(bashInput{Command: "exit 3"})
	res, _ := bash.Execute(context.Background(), args, nil)
	assert.Equal(t, 3, res.ExitCode)
}

func TestGlobToolMatchesPattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.go"), []byte("package x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.txt"), []byte("text"), 0644))

	g := NewGlobTool(dir)
	args, _ := json.Marshal(globInput{Pattern: "*.go"})
	res, err := g.Execute(context.Background(), args, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "x.go")
	assert.NotContains(t, res.Output, "x.txt")
}

func TestGrepToolFindsMatchingLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("func Foo() {}\nfunc Bar() {}\n"), 0644))

	g := NewGrepTool(dir)
	args, _ := json.Marshal(grepInput{Pattern: "Foo"})
	res, err := g.Execute(context.Background(), args, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "Foo")
	assert.NotContains(t, res.Output, "Bar")
}

func TestListToolSkipsIgnoredDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0644))

	l := NewListTool(dir)
	res, err := l.Execute(context.Background(), json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "README.md")
	assert.NotContains(t, res.Output, ".git")
}

type memoryTodoSink struct {
	mu    sync.Mutex
	todos map[string][]types.Todo
}

func newMemoryTodoSink() *memoryTodoSink {
	return &memoryTodoSink{todos: make(map[string][]types.Todo)}
}

func (s *memoryTodoSink) SetTodos(sessionID string, todos []types.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todos[sessionID] = todos
}

func (s *memoryTodoSink) GetTodos(sessionID string) []types.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.todos[sessionID]
}

func TestTodoWriteThenReadRoundTrip(t *testing.T) {
	sink := newMemoryTodoSink()
	write := NewTodoWriteTool(sink)
	read := NewTodoReadTool(sink)
	toolCtx := &Context{SessionID: "s1"}

	args, _ := json.Marshal(todoWriteInput{Todos: []types.Todo{{ID: "1", Content: "do thing", Status: types.TodoPending}}})
	_, err := write.Execute(context.Background(), args, toolCtx)
	require.NoError(t, err)

	res, err := read.Execute(context.Background(), nil, toolCtx)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "do thing")
}

func TestRegistryExecuteUnknownToolReturnsError(t *testing.T) {
	r := NewRegistry()
	res, err := r.Execute(context.Background(), "nope", nil, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRegistryExecuteDispatchesToRegisteredTool(t *testing.T) {
	r := NewRegistry()
	dir := t.TempDir()
	r.Register(NewWriteTool(dir))

	args, _ := json.Marshal(writeInput{FilePath: filepath.Join(dir, "f.txt"), Content: "x"})
	res, err := r.Execute(context.Background(), "write", args, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}
