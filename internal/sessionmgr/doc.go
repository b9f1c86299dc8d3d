// Package sessionmgr implements the Session Manager: create/destroy/get
// session, LLM resolution, generate/generate_streaming (wiring the Agent
// Loop to a Session's snapshot), auto-compaction, forking, subagent child
// sessions, title generation, and store-backed restore on startup.
package sessionmgr
