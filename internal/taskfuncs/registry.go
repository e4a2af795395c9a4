// Package taskfuncs provides the built-in work functions, the prompt-driven
// work factory, and the durable task-definition config that feeds the task
// manager at startup.
package taskfuncs

import (
	"context"
	"fmt"

	"github.com/mbellotti/drover/internal/completion"
	"github.com/mbellotti/drover/internal/tasks"
)

// Chatter is the completion surface work functions call.
type Chatter interface {
	Chat(ctx context.Context, message string, opts ...completion.ChatOption) string
}

// Registry resolves task specs into work functions. It implements
// tasks.WorkResolver.
type Registry struct {
	chat     Chatter
	builtins map[string]tasks.WorkFunc
}

// NewRegistry creates a resolver with all built-in work functions installed.
func NewRegistry(chat Chatter) *Registry {
	r := &Registry{chat: chat}
	r.builtins = map[string]tasks.WorkFunc{
		"heartbeat":       heartbeatWork,
		"self_reflection": r.selfReflectionWork,
		"knowledge_check": r.knowledgeCheckWork,
	}
	return r
}

// BuiltinNames returns the names of all built-in work functions.
func (r *Registry) BuiltinNames() []string {
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	return names
}

// Resolve turns a task spec into a runnable work function.
func (r *Registry) Resolve(spec tasks.Spec) (tasks.WorkFunc, error) {
	switch {
	case spec.Builtin != "":
		fn, ok := r.builtins[spec.Builtin]
		if !ok {
			return nil, fmt.Errorf("unknown builtin %q", spec.Builtin)
		}
		return fn, nil
	case spec.Prompt != "":
		return r.promptWork(spec.Prompt), nil
	default:
		return nil, fmt.Errorf("empty task spec")
	}
}
