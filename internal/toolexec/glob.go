package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const globDescription = `Fast file pattern matching.

Usage:
- Supports glob patterns like "**/*.go" or "src/**/*.ts"
- Returns matching file paths sorted by modification time, most recent first`

// GlobTool matches files under a directory against a doublestar
// pattern ("**" traverses subdirectories).
type GlobTool struct{ workDir string }

type globInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

func NewGlobTool(workDir string) *GlobTool { return &GlobTool{workDir: workDir} }

func (t *GlobTool) ID() string          { return "glob" }
func (t *GlobTool) Description() string { return globDescription }

func (t *GlobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "The glob pattern to match files against"},
			"path": {"type": "string", "description": "Directory to search in (default: current directory)"}
		},
		"required": ["pattern"]
	}`)
}

func (t *GlobTool) Execute(_ context.Context, args json.RawMessage, toolCtx *Context) (Result, error) {
	var params globInput
	if err := json.Unmarshal(args, &params); err != nil {
		return errResult(fmt.Errorf("invalid input: %w", err))
	}

	searchDir := resolveDir(t.workDir, toolCtx, params.Path)

	fsys := os.DirFS(searchDir)
	matches, err := doublestar.Glob(fsys, params.Pattern)
	if err != nil {
		return errResult(fmt.Errorf("invalid pattern: %w", err))
	}

	type entry struct {
		path    string
		modTime int64
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(filepath.Join(searchDir, m))
		if err != nil || info.IsDir() {
			continue
		}
		entries = append(entries, entry{path: filepath.Join(searchDir, m), modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime > entries[j].modTime })

	const maxFiles = 100
	truncated := len(entries) > maxFiles
	if truncated {
		entries = entries[:maxFiles]
	}

	if len(entries) == 0 {
		meta, _ := json.Marshal(map[string]any{"pattern": params.Pattern, "count": 0})
		return Result{Output: "No files matched the pattern", Metadata: meta}, nil
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.path
	}
	output := strings.Join(lines, "\n")
	if truncated {
		output += fmt.Sprintf("\n\n(showing %d of more matches)", maxFiles)
	}

	meta, _ := json.Marshal(map[string]any{"pattern": params.Pattern, "count": len(entries), "truncated": truncated})
	return Result{Output: output, Metadata: meta}, nil
}

func resolveDir(workDir string, toolCtx *Context, path string) string {
	dir := workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		dir = toolCtx.WorkDir
	}
	if path == "" {
		return dir
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
