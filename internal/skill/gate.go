package skill

import "github.com/opencode-ai/agentcore/internal/permission"

// Gate implements the Agent Loop's allowed_tools gate (spec step (b)):
// if any loaded skill restricts tools, the call is permitted only when
// at least one restricting skill's allowed_tools covers it. Skills that
// carry no allowed_tools list impose no restriction and are ignored
// here.
func Gate(loaded []*Skill, tool string, args any) bool {
	restricting := false
	arg := permission.Canonicalize(tool, args)
	for _, s := range loaded {
		if !s.Restricting() {
			continue
		}
		restricting = true
		if s.Permits(tool, arg) {
			return true
		}
	}
	return !restricting
}
