package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const writeDescription = `Writes content to a file on the local filesystem.

Usage:
- The file_path parameter must be an absolute path
- This tool will overwrite existing files
- Parent directories will be created if they don't exist
- Prefer editing existing files over creating new ones`

// WriteTool overwrites (or creates) a file with the given content.
type WriteTool struct{ workDir string }

type writeInput struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

func NewWriteTool(workDir string) *WriteTool { return &WriteTool{workDir: workDir} }

func (t *WriteTool) ID() string          { return "write" }
func (t *WriteTool) Description() string { return writeDescription }

func (t *WriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "The absolute path to the file to write"},
			"content": {"type": "string", "description": "The content to write to the file"}
		},
		"required": ["file_path", "content"]
	}`)
}

func (t *WriteTool) Execute(_ context.Context, args json.RawMessage, _ *Context) (Result, error) {
	var params writeInput
	if err := json.Unmarshal(args, &params); err != nil {
		return errResult(fmt.Errorf("invalid input: %w", err))
	}

	if err := os.MkdirAll(filepath.Dir(params.FilePath), 0755); err != nil {
		return errResult(fmt.Errorf("failed to create directory: %w", err))
	}
	if err := os.WriteFile(params.FilePath, []byte(params.Content), 0644); err != nil {
		return errResult(fmt.Errorf("failed to write file: %w", err))
	}

	meta, _ := json.Marshal(map[string]any{"file": params.FilePath, "bytes": len(params.Content)})
	return Result{
		Output:   fmt.Sprintf("Successfully wrote %d bytes to %s", len(params.Content), params.FilePath),
		Metadata: meta,
	}, nil
}
