package toolexec

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const grepDescription = `Searches file contents for a regular expression.

Usage:
- pattern is a Go-flavored regular expression
- include filters which files are searched with a glob (e.g. "*.go")
- Returns matching lines with file paths and line numbers`

// GrepTool walks a directory tree, running a compiled regexp against
// each text file's lines.
type GrepTool struct{ workDir string }

type grepInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Include string `json:"include,omitempty"`
}

type grepMatch struct {
	File    string
	Line    int
	Content string
}

func NewGrepTool(workDir string) *GrepTool { return &GrepTool{workDir: workDir} }

func (t *GrepTool) ID() string          { return "grep" }
func (t *GrepTool) Description() string { return grepDescription }

func (t *GrepTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "The regex pattern to search for in file contents"},
			"path": {"type": "string", "description": "The directory to search in. Defaults to the working directory."},
			"include": {"type": "string", "description": "File glob to include in the search (e.g. \"*.go\")"}
		},
		"required": ["pattern"]
	}`)
}

func (t *GrepTool) Execute(_ context.Context, args json.RawMessage, toolCtx *Context) (Result, error) {
	var params grepInput
	if err := json.Unmarshal(args, &params); err != nil {
		return errResult(fmt.Errorf("invalid input: %w", err))
	}

	re, err := regexp.Compile(params.Pattern)
	if err != nil {
		return errResult(fmt.Errorf("invalid pattern: %w", err))
	}

	searchDir := resolveDir(t.workDir, toolCtx, params.Path)

	var matches []grepMatch
	const maxMatches = 100
	_ = filepath.WalkDir(searchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if len(matches) >= maxMatches {
			return nil
		}
		if params.Include != "" {
			ok, _ := doublestar.Match(params.Include, d.Name())
			if !ok {
				return nil
			}
		}
		grepFile(path, re, &matches, maxMatches)
		return nil
	})

	if len(matches) == 0 {
		meta, _ := json.Marshal(map[string]any{"pattern": params.Pattern, "count": 0})
		return Result{Output: "No matches found", Metadata: meta}, nil
	}

	truncated := len(matches) >= maxMatches
	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "%s:%d: %s\n", m.File, m.Line, m.Content)
	}
	if truncated {
		fmt.Fprintf(&sb, "\n(showing %d of more matches)", maxMatches)
	}

	meta, _ := json.Marshal(map[string]any{"pattern": params.Pattern, "count": len(matches), "truncated": truncated})
	return Result{Output: sb.String(), Metadata: meta}, nil
}

func grepFile(path string, re *regexp.Regexp, matches *[]grepMatch, maxMatches int) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if len(*matches) >= maxMatches {
			return
		}
		line := scanner.Text()
		if re.MatchString(line) {
			*matches = append(*matches, grepMatch{File: path, Line: lineNum, Content: line})
		}
	}
}
