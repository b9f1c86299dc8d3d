package permission

import "github.com/bmatcuk/doublestar/v4"

// matchGlob matches s against pattern using the policy's glob semantics:
// "*" matches any run without "/", "**" matches any run including "/", "?"
// matches one non-"/" character, other characters (including regex
// metacharacters) are literal, and the match is always anchored at both
// ends. A pattern of the form "prefix:X" is instead a direct prefix test
// against X (including the empty suffix).
func matchGlob(pattern, s string) bool {
	if rest, ok := cutPrefixDirective(pattern); ok {
		return len(s) >= len(rest) && s[:len(rest)] == rest
	}
	ok, err := doublestar.Match(pattern, s)
	if err != nil {
		return false
	}
	return ok
}

func cutPrefixDirective(pattern string) (string, bool) {
	const marker = "prefix:"
	if len(pattern) < len(marker) || pattern[:len(marker)] != marker {
		return "", false
	}
	rest := pattern[len(marker):]
	if len(rest) > 0 && rest[len(rest)-1] == '*' {
		rest = rest[:len(rest)-1]
	}
	return rest, true
}
