package toolexec

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const readDescription = `Reads a file from the local filesystem.

Usage:
- The file_path parameter must be an absolute path
- By default, reads up to 2000 lines from the beginning
- You can optionally specify offset and limit for pagination
- Returns file contents with line numbers`

// ReadTool reads a text file, line-numbered, with pagination.
type ReadTool struct{ workDir string }

type readInput struct {
	FilePath string `json:"file_path"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func NewReadTool(workDir string) *ReadTool { return &ReadTool{workDir: workDir} }

func (t *ReadTool) ID() string          { return "read" }
func (t *ReadTool) Description() string { return readDescription }

func (t *ReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "The absolute path to the file to read"},
			"offset": {"type": "integer", "description": "Line number to start reading from"},
			"limit": {"type": "integer", "description": "Number of lines to read (default: 2000)"}
		},
		"required": ["file_path"]
	}`)
}

func (t *ReadTool) Execute(_ context.Context, args json.RawMessage, _ *Context) (Result, error) {
	var params readInput
	if err := json.Unmarshal(args, &params); err != nil {
		return errResult(fmt.Errorf("invalid input: %w", err))
	}
	if params.Limit <= 0 {
		params.Limit = 2000
	}

	info, err := os.Stat(params.FilePath)
	if err != nil {
		return errResult(fmt.Errorf("file not found: %s", params.FilePath))
	}
	if info.IsDir() {
		return errResult(fmt.Errorf("path is a directory, not a file: %s", params.FilePath))
	}

	file, err := os.Open(params.FilePath)
	if err != nil {
		return errResult(err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if params.Offset > 0 && lineNum < params.Offset {
			continue
		}
		if len(lines) >= params.Limit {
			break
		}
		line := scanner.Text()
		if len(line) > 2000 {
			line = line[:2000] + "..."
		}
		lines = append(lines, fmt.Sprintf("%05d| %s", lineNum, line))
	}

	var sb strings.Builder
	sb.WriteString("<file>\n")
	sb.WriteString(strings.Join(lines, "\n"))

	lastReadLine := params.Offset + len(lines)
	if lineNum > lastReadLine {
		fmt.Fprintf(&sb, "\n\n(File has more lines. Use 'offset' parameter to read beyond line %d)", lastReadLine)
	} else {
		fmt.Fprintf(&sb, "\n\n(End of file - total %d lines)", lineNum)
	}
	sb.WriteString("\n</file>")

	meta, _ := json.Marshal(map[string]any{
		"file":        params.FilePath,
		"lines":       len(lines),
		"total_lines": lineNum,
	})
	return Result{Output: sb.String(), Metadata: meta}, nil
}
