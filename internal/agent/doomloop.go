package agent

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/promptline-ai/promptline/internal/memory"
)

// doomLoopThreshold is the number of identical consecutive calls that
// trips the guard.
const doomLoopThreshold = 3

// doomLoopDetector refuses a call once the model has proposed the same
// tool with the same arguments too many times in a row. A different call
// resets the streak.
type doomLoopDetector struct {
	lastHash string
	streak   int
}

// Check records the call and reports whether it trips the guard.
func (d *doomLoopDetector) Check(call *memory.ToolCall) bool {
	hash := hashCall(call)
	if hash == d.lastHash {
		d.streak++
	} else {
		d.lastHash = hash
		d.streak = 1
	}
	return d.streak >= doomLoopThreshold
}

func hashCall(call *memory.ToolCall) string {
	h := sha256.New()
	h.Write([]byte(call.Tool))
	h.Write([]byte{0})
	if call.Arguments != nil {
		h.Write([]byte(call.Arguments.Canonical()))
	}
	return hex.EncodeToString(h.Sum(nil))
}
