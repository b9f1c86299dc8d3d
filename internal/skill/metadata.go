package skill

import "encoding/json"

// LoadDirective is the metadata side channel a tool result carries when
// it wants the Agent Loop to hot-load a skill: _load_skill:true plus the
// raw skill document under skill_content.
type LoadDirective struct {
	Name    string
	Content string
}

// ParseLoadDirective inspects a tool result's metadata JSON for the
// _load_skill side channel (spec §4.5.1 step (e)) and, if present,
// parses and validates the embedded skill document. It returns
// (nil, nil) when metadata carries no such directive, so callers can
// treat that as "nothing to load" without a separate ok bool.
func ParseLoadDirective(metadata json.RawMessage) (*Skill, error) {
	if len(metadata) == 0 {
		return nil, nil
	}

	var probe struct {
		LoadSkill    bool   `json:"_load_skill"`
		SkillName    string `json:"skill_name"`
		SkillContent string `json:"skill_content"`
	}
	if err := json.Unmarshal(metadata, &probe); err != nil {
		return nil, nil
	}
	if !probe.LoadSkill || probe.SkillContent == "" {
		return nil, nil
	}

	s, err := Parse(probe.SkillContent)
	if err != nil {
		return nil, err
	}
	if probe.SkillName != "" {
		s.Name = probe.SkillName
	}
	return s, nil
}

// InjectionFragment renders the XML fragment the Agent Loop splices into
// the augmented system prompt for an Instruction or Tool skill. Agent
// skills are logged only and never reach this.
func InjectionFragment(s *Skill) string {
	return "<skill name=\"" + s.Name + "\">\n" + s.Body + "\n</skill>"
}
