package permission

import (
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/oklog/ulid/v2"

	"github.com/promptline-ai/promptline/internal/event"
	"github.com/promptline-ai/promptline/internal/logging"
)

// Engine decides whether a proposed tool call runs, is refused, or needs a
// user answer. It is the only component that reads or writes the store.
type Engine struct {
	store       *Store
	autoApprove bool
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithAutoApprove makes the engine answer Allow instead of Ask for Safe and
// Sensitive calls. Destructive calls still ask; auto-approve never touches
// that invariant.
func WithAutoApprove(enabled bool) EngineOption {
	return func(e *Engine) { e.autoApprove = enabled }
}

// NewEngine creates a policy engine over the given store.
func NewEngine(store *Store, opts ...EngineOption) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide produces the verdict for a call with the given key and danger
// class.
//
// A Destructive classification always yields Ask, regardless of any stored
// AllowAlways grant. A durable "always allow" must never silently authorize
// a destructively classified call.
func (e *Engine) Decide(key Key, danger DangerClass) Outcome {
	if danger == Destructive {
		return Ask
	}

	if rec, ok := e.lookup(key); ok {
		switch rec.Decision {
		case DenyAlways:
			return Deny
		case AllowAlways:
			return Allow
		}
	}

	if e.autoApprove {
		return Allow
	}
	return Ask
}

// lookup finds the stored record governing key: exact match first, then
// scope-covering records for the same tool (hand-edited wildcard scopes).
// When several covering records disagree, deny wins.
func (e *Engine) lookup(key Key) (Record, bool) {
	if rec, ok := e.store.Lookup(key); ok {
		return rec, true
	}

	var found Record
	var have bool
	for _, rec := range e.store.Records() {
		if rec.Tool != key.Tool || rec.Scope == key.Scope {
			continue
		}
		if !scopeCovers(rec.Scope, key.Scope) {
			continue
		}
		if !have || rec.Decision == DenyAlways {
			found, have = rec, true
		}
	}
	return found, have
}

// scopeCovers reports whether a stored scope pattern subsumes a call scope.
// "*" covers everything; "git *" covers "git commit *"; path scopes match
// with doublestar globs ("src/**" covers "src/app/main.go").
func scopeCovers(stored, scope string) bool {
	if stored == "*" || stored == scope {
		return true
	}
	if stored == "" {
		return false
	}
	// A redirecting command never inherits a grant earned without one:
	// "ls *" must not cover "ls * > ~/.bashrc".
	if strings.Contains(scope, "> ") && !strings.Contains(stored, ">") {
		return false
	}
	if strings.HasSuffix(stored, " *") {
		return strings.HasPrefix(scope, strings.TrimSuffix(stored, "*"))
	}
	if ok, err := doublestar.Match(stored, scope); err == nil && ok {
		return true
	}
	return false
}

// NewRequest builds the prompt request for an Ask verdict.
func (e *Engine) NewRequest(key Key, danger DangerClass, title string) Request {
	return Request{
		ID:     ulid.Make().String(),
		Key:    key,
		Danger: danger,
		Title:  title,
	}
}

// Resolve records the user's answer to a prompt. Durable decisions are
// persisted synchronously; the write must succeed before the loop may
// proceed. Once-decisions leave the store untouched.
func (e *Engine) Resolve(req Request, decision Decision) error {
	if !decision.Valid() {
		return fmt.Errorf("unknown permission decision %q", decision)
	}

	if decision.Durable() {
		rec := Record{
			Tool:      req.Key.Tool,
			Scope:     req.Key.Scope,
			Decision:  decision,
			CreatedAt: time.Now().UTC(),
		}
		if err := e.store.Upsert(rec); err != nil {
			return fmt.Errorf("persist permission decision: %w", err)
		}
		logging.Info().Str("key", req.Key.String()).Str("decision", string(decision)).
			Msg("permission decision persisted")
	}

	event.Publish(event.Event{
		Type: event.PermissionResolved,
		Data: event.PermissionResolvedData{ID: req.ID, Decision: string(decision)},
	})

	return nil
}

// Reset removes stored records for a tool (all tools when tool == "").
func (e *Engine) Reset(tool, scope string) (int, error) {
	return e.store.Remove(tool, scope)
}

// Store exposes the underlying store for listing and watching.
func (e *Engine) Store() *Store { return e.store }
