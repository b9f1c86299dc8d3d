package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
)

const editDescription = `Performs exact string replacements in a file.

Usage:
- The file_path parameter must be an absolute path
- old_string is matched exactly; when absent, a line-ending-normalized match and then a close fuzzy match are tried
- new_string replaces old_string
- The edit fails if old_string is not unique, unless replace_all is set`

// EditTool replaces a string in a file, falling back to line-ending
// normalization and then fuzzy matching when the exact string is absent.
type EditTool struct{ workDir string }

type editInput struct {
	FilePath   string `json:"file_path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

func NewEditTool(workDir string) *EditTool { return &EditTool{workDir: workDir} }

func (t *EditTool) ID() string          { return "edit" }
func (t *EditTool) Description() string { return editDescription }

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "The absolute path to the file to edit"},
			"old_string": {"type": "string", "description": "The exact text to replace"},
			"new_string": {"type": "string", "description": "The text to replace it with"},
			"replace_all": {"type": "boolean", "description": "Replace all occurrences (default: false)"}
		},
		"required": ["file_path", "old_string", "new_string"]
	}`)
}

func (t *EditTool) Execute(_ context.Context, args json.RawMessage, _ *Context) (Result, error) {
	var params editInput
	if err := json.Unmarshal(args, &params); err != nil {
		return errResult(fmt.Errorf("invalid input: %w", err))
	}
	if params.OldString == params.NewString {
		return errResult(fmt.Errorf("old_string and new_string must be different"))
	}

	content, err := os.ReadFile(params.FilePath)
	if err != nil {
		return errResult(fmt.Errorf("failed to read file: %w", err))
	}
	text := string(content)

	count := strings.Count(text, params.OldString)
	if count == 0 {
		return t.fuzzyReplace(text, params)
	}
	if !params.ReplaceAll && count > 1 {
		return errResult(fmt.Errorf("old_string appears %d times in file; use replace_all or provide more context", count))
	}

	var newText string
	if params.ReplaceAll {
		newText = strings.ReplaceAll(text, params.OldString, params.NewString)
	} else {
		newText = strings.Replace(text, params.OldString, params.NewString, 1)
		count = 1
	}

	if err := os.WriteFile(params.FilePath, []byte(newText), 0644); err != nil {
		return errResult(fmt.Errorf("failed to write file: %w", err))
	}

	meta, _ := json.Marshal(map[string]any{"file": params.FilePath, "replacements": count})
	return Result{Output: fmt.Sprintf("Replaced %d occurrence(s)", count), Metadata: meta}, nil
}

// fuzzyReplace is tried when the exact old_string is absent: first with
// line-ending normalization, then with Levenshtein similarity matching
// against the file's lines or line blocks.
func (t *EditTool) fuzzyReplace(text string, params editInput) (Result, error) {
	normalizedOld := normalizeLineEndings(params.OldString)
	normalizedText := normalizeLineEndings(text)

	if strings.Contains(normalizedText, normalizedOld) {
		newText := strings.Replace(normalizedText, normalizedOld, params.NewString, 1)
		if err := os.WriteFile(params.FilePath, []byte(newText), 0644); err != nil {
			return errResult(fmt.Errorf("failed to write file: %w", err))
		}
		return Result{Output: "Replaced 1 occurrence (with line ending normalization)"}, nil
	}

	match, sim := findBestMatch(text, params.OldString)
	if match != "" && sim >= 0.7 {
		newText := strings.Replace(text, match, params.NewString, 1)
		if err := os.WriteFile(params.FilePath, []byte(newText), 0644); err != nil {
			return errResult(fmt.Errorf("failed to write file: %w", err))
		}
		return Result{Output: fmt.Sprintf("Replaced 1 occurrence (%.0f%% similarity)", sim*100)}, nil
	}

	return errResult(fmt.Errorf("old_string not found in file"))
}

func normalizeLineEndings(s string) string { return strings.ReplaceAll(s, "\r\n", "\n") }

func findBestMatch(text, target string) (string, float64) {
	lines := strings.Split(text, "\n")
	targetLines := strings.Split(target, "\n")

	if len(targetLines) == 1 {
		best, bestSim := "", 0.0
		for _, line := range lines {
			if sim := similarity(line, target); sim > bestSim {
				bestSim, best = sim, line
			}
		}
		return best, bestSim
	}

	targetLen := len(targetLines)
	best, bestSim := "", 0.0
	for i := 0; i <= len(lines)-targetLen; i++ {
		block := strings.Join(lines[i:i+targetLen], "\n")
		if sim := similarity(block, target); sim > bestSim {
			bestSim, best = sim, block
		}
	}
	return best, bestSim
}

func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if len(a) > 10000 || len(b) > 10000 {
		maxLen, minLen := max(len(a), len(b)), min(len(a), len(b))
		return float64(minLen) / float64(maxLen)
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(dist)/float64(maxLen)
}
