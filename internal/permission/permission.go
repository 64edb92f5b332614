// Package permission implements the policy engine that gates tool execution.
//
// Every proposed tool call is classified (Safe, Sensitive, Destructive) and
// scoped to a permission key. Durable decisions live in a human-editable
// YAML store; destructively classified calls always require a fresh user
// decision regardless of stored grants.
package permission

import (
	"fmt"
	"time"
)

// DangerClass grades how risky a tool call is. Classification is a pure
// function of (tool name, arguments): identical calls always classify
// identically.
type DangerClass int

const (
	// Safe calls are read-only.
	Safe DangerClass = iota
	// Sensitive calls mutate local state in a recoverable way.
	Sensitive
	// Destructive calls can cause irreversible damage. They are never
	// authorized by a stored grant.
	Destructive
)

func (d DangerClass) String() string {
	switch d {
	case Safe:
		return "safe"
	case Sensitive:
		return "sensitive"
	case Destructive:
		return "destructive"
	}
	return "unknown"
}

// Decision is a user's answer to a permission prompt. Only the *Always
// decisions are durable.
type Decision string

const (
	AllowOnce   Decision = "allow_once"
	AllowAlways Decision = "allow_always"
	DenyOnce    Decision = "deny_once"
	DenyAlways  Decision = "deny_always"
)

// Durable reports whether the decision is persisted to the store.
func (d Decision) Durable() bool {
	return d == AllowAlways || d == DenyAlways
}

// Allows reports whether the decision authorizes the current call.
func (d Decision) Allows() bool {
	return d == AllowOnce || d == AllowAlways
}

// Valid reports whether d is one of the four known decisions.
func (d Decision) Valid() bool {
	switch d {
	case AllowOnce, AllowAlways, DenyOnce, DenyAlways:
		return true
	}
	return false
}

// PromptOptions is the exact option set presented on every ask.
var PromptOptions = []Decision{AllowOnce, AllowAlways, DenyOnce, DenyAlways}

// Outcome is the policy engine's verdict for a proposed call.
type Outcome int

const (
	// Allow authorizes execution without prompting.
	Allow Outcome = iota
	// Deny refuses execution without prompting.
	Deny
	// Ask suspends the loop until the user answers.
	Ask
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Ask:
		return "ask"
	}
	return "unknown"
}

// Key scopes a stored decision: a tool name plus an optional resource scope
// such as a normalized path or a command prefix pattern. Two calls with the
// same key receive the same stored decision.
type Key struct {
	Tool  string `yaml:"tool" json:"tool"`
	Scope string `yaml:"scope,omitempty" json:"scope,omitempty"`
}

func (k Key) String() string {
	if k.Scope == "" {
		return k.Tool
	}
	return fmt.Sprintf("%s(%s)", k.Tool, k.Scope)
}

// Record is one persisted decision. Only AllowAlways/DenyAlways records
// exist on disk.
type Record struct {
	Tool      string    `yaml:"tool" json:"tool"`
	Scope     string    `yaml:"scope,omitempty" json:"scope,omitempty"`
	Decision  Decision  `yaml:"decision" json:"decision"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Key returns the record's permission key.
func (r Record) Key() Key {
	return Key{Tool: r.Tool, Scope: r.Scope}
}

// Request carries everything a UI needs to render a permission prompt.
type Request struct {
	ID     string      `json:"id"`
	Key    Key         `json:"key"`
	Danger DangerClass `json:"danger"`
	Title  string      `json:"title"`
}

// RejectedError is returned by tools and the loop when a call was refused.
type RejectedError struct {
	Key     Key
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permission denied for %s", e.Key)
}
