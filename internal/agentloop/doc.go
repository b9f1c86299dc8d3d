// Package agentloop implements the Agent Loop: the turn-by-turn
// generate/extract-tool-calls/gated-execute cycle that drives one
// prompt from history+user-input to a final assistant response. It
// owns no session state itself — the Session Manager snapshots a
// Session's configuration into an AgentConfig and feeds history/prompt
// in, writing the resulting messages and usage back out.
package agentloop
