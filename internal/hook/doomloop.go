package hook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

// DoomLoopThreshold is the number of identical consecutive tool calls
// before a session is considered stuck.
const DoomLoopThreshold = 3

// historyLimit bounds memory per session regardless of conversation length.
const historyLimit = 10

// DoomLoopDetector flags a tool call as a repeat when the same tool name
// and input have occurred DoomLoopThreshold times in a row for a session.
type DoomLoopDetector struct {
	mu      sync.Mutex
	history map[string][]string // sessionID -> last N call hashes
}

// NewDoomLoopDetector creates an empty detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{history: make(map[string][]string)}
}

// Check records toolName+input for sessionID and reports whether this
// call completes a run of DoomLoopThreshold identical calls.
func (d *DoomLoopDetector) Check(sessionID, toolName string, input any) bool {
	h := hashCall(toolName, input)

	d.mu.Lock()
	defer d.mu.Unlock()

	hist := d.history[sessionID]
	loop := false
	if len(hist) >= DoomLoopThreshold-1 {
		start := len(hist) - (DoomLoopThreshold - 1)
		loop = true
		for i := start; i < len(hist); i++ {
			if hist[i] != h {
				loop = false
				break
			}
		}
	}

	hist = append(hist, h)
	if len(hist) > historyLimit {
		hist = hist[len(hist)-historyLimit:]
	}
	d.history[sessionID] = hist
	return loop
}

// Reset clears a session's history, e.g. after a human breaks the loop.
func (d *DoomLoopDetector) Reset(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}

func hashCall(toolName string, input any) string {
	data, _ := json.Marshal(map[string]any{"tool": toolName, "input": input})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AsPreToolUseHook adapts the detector into a PreToolUseHook that blocks
// a call once it completes a doom loop, so the decision composes with
// the rest of the gating chain instead of living as a separate code path.
func (d *DoomLoopDetector) AsPreToolUseHook() PreToolUseHook {
	return func(_ context.Context, sessionID string, call ToolCall) Decision {
		if d.Check(sessionID, call.Name, call.Input) {
			return Decision{
				Block:  true,
				Reason: fmt.Sprintf("tool %q repeated %d times with identical input", call.Name, DoomLoopThreshold),
			}
		}
		return Allowed
	}
}
