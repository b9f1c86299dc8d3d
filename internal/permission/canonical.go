package permission

import (
	"encoding/json"
	"strings"
)

// Canonicalize reduces a tool's argument object to the single string a
// Rule's ArgPattern is matched against, per tool family:
//   - bash-family: the "command" field.
//   - read/write/edit: the "file_path" field.
//   - glob: the "pattern" field.
//   - grep: "pattern" + " " + "path".
//   - ls: the "path" field.
//   - anything else: the JSON-serialized argument object.
func Canonicalize(tool string, args any) string {
	fields := toFieldMap(args)
	family := strings.ToLower(tool)

	switch {
	case strings.Contains(family, "bash") || strings.Contains(family, "shell"):
		return stringField(fields, "command")
	case family == "read" || family == "write" || family == "edit":
		return stringField(fields, "file_path")
	case family == "glob":
		return stringField(fields, "pattern")
	case family == "grep":
		return stringField(fields, "pattern") + " " + stringField(fields, "path")
	case family == "ls":
		return stringField(fields, "path")
	default:
		data, err := json.Marshal(args)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// toFieldMap converts args (a struct, map, or json.RawMessage) to a
// string-keyed map for field extraction, tolerating any input shape a
// caller might pass a tool's arguments in.
func toFieldMap(args any) map[string]any {
	switch v := args.(type) {
	case map[string]any:
		return v
	case json.RawMessage:
		var m map[string]any
		_ = json.Unmarshal(v, &m)
		return m
	case []byte:
		var m map[string]any
		_ = json.Unmarshal(v, &m)
		return m
	case string:
		var m map[string]any
		_ = json.Unmarshal([]byte(v), &m)
		return m
	default:
		data, err := json.Marshal(args)
		if err != nil {
			return nil
		}
		var m map[string]any
		_ = json.Unmarshal(data, &m)
		return m
	}
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if v, ok := fields[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
