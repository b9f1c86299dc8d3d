package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const listDescription = `Lists files and directories in a specified path.

Usage:
- Returns entry names, kind (file/dir), and sizes
- Useful for exploring directory structure`

var defaultIgnorePatterns = []string{
	"node_modules/", "__pycache__/", ".git/", "dist/", "build/", "target/",
	"vendor/", "bin/", "obj/", ".idea/", ".vscode/", ".cache/", "tmp/",
}

// ListTool lists a directory's immediate entries ("ls"), filtering out
// common build/vcs/cache directories by default.
type ListTool struct{ workDir string }

type listInput struct {
	Path   string   `json:"path,omitempty"`
	Ignore []string `json:"ignore,omitempty"`
}

type fileEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

func NewListTool(workDir string) *ListTool { return &ListTool{workDir: workDir} }

func (t *ListTool) ID() string          { return "ls" }
func (t *ListTool) Description() string { return listDescription }

func (t *ListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "The absolute path to the directory to list"},
			"ignore": {"type": "array", "items": {"type": "string"}, "description": "Glob patterns to ignore"}
		}
	}`)
}

func (t *ListTool) Execute(_ context.Context, args json.RawMessage, toolCtx *Context) (Result, error) {
	var params listInput
	if err := json.Unmarshal(args, &params); err != nil {
		return errResult(fmt.Errorf("invalid input: %w", err))
	}

	listPath := resolveDir(t.workDir, toolCtx, params.Path)
	patterns := append(append([]string{}, defaultIgnorePatterns...), params.Ignore...)

	dirEntries, err := os.ReadDir(listPath)
	if err != nil {
		return errResult(fmt.Errorf("failed to read directory: %w", err))
	}

	var entries []fileEntry
	for _, d := range dirEntries {
		if shouldIgnore(d.Name(), d.IsDir(), patterns) {
			continue
		}
		info, _ := d.Info()
		var size int64
		if info != nil {
			size = info.Size()
		}
		entries = append(entries, fileEntry{Name: d.Name(), IsDir: d.IsDir(), Size: size})
	}

	var sb strings.Builder
	for _, e := range entries {
		kind := "file"
		if e.IsDir {
			kind = "dir "
		}
		fmt.Fprintf(&sb, "[%s] %s", kind, e.Name)
		if !e.IsDir {
			fmt.Fprintf(&sb, " (%d bytes)", e.Size)
		}
		sb.WriteString("\n")
	}

	meta, _ := json.Marshal(map[string]any{"path": listPath, "count": len(entries)})
	return Result{Output: sb.String(), Metadata: meta}, nil
}

func shouldIgnore(name string, isDir bool, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			if isDir && name == strings.TrimSuffix(pattern, "/") {
				return true
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
