package taskfuncs

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mbellotti/drover/internal/storage/docstore"
	"github.com/mbellotti/drover/internal/tasks"
)

const definitionsKey = "tasks/definitions"

// ErrDefinitionExists is returned when adding a definition whose name is taken.
var ErrDefinitionExists = errors.New("task definition already exists")

// ErrDefinitionNotFound is returned when a named definition does not exist.
var ErrDefinitionNotFound = errors.New("task definition not found")

// Definition is one durable task configuration entry. Built-in definitions
// are disabled rather than removed, custom prompt definitions are removed
// outright.
type Definition struct {
	Name            string    `json:"name"`
	Builtin         string    `json:"builtin,omitempty"`
	Prompt          string    `json:"prompt,omitempty"`
	IntervalSeconds int       `json:"interval_seconds"`
	Enabled         bool      `json:"enabled"`
	UseHistory      bool      `json:"use_history"`
	MaxHistory      int       `json:"max_history,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// IsBuiltin reports whether the definition names a built-in work function.
func (d Definition) IsBuiltin() bool { return d.Builtin != "" }

// Spec returns the task spec this definition resolves to.
func (d Definition) Spec() tasks.Spec {
	return tasks.Spec{Builtin: d.Builtin, Prompt: d.Prompt}
}

// Task builds a registrable task from the definition.
func (d Definition) Task() *tasks.Task {
	return &tasks.Task{
		Name:       d.Name,
		Spec:       d.Spec(),
		Interval:   time.Duration(d.IntervalSeconds) * time.Second,
		UseHistory: d.UseHistory,
		MaxHistory: d.MaxHistory,
	}
}

// DefaultDefinitions seeds the built-in schedule on first start.
func DefaultDefinitions() []Definition {
	now := time.Now()
	return []Definition{
		{Name: "heartbeat", Builtin: "heartbeat", IntervalSeconds: 60, Enabled: true, UseHistory: true, CreatedAt: now},
		{Name: "self_reflection", Builtin: "self_reflection", IntervalSeconds: 600, Enabled: true, UseHistory: true, CreatedAt: now},
		{Name: "knowledge_check", Builtin: "knowledge_check", IntervalSeconds: 900, Enabled: true, CreatedAt: now},
	}
}

// Definitions is the durable task-definition config.
type Definitions struct {
	mu    sync.Mutex
	store *docstore.Store
}

// NewDefinitions opens the definition config backed by the given store,
// seeding the built-in defaults when no document exists yet.
func NewDefinitions(store *docstore.Store) *Definitions {
	d := &Definitions{store: store}

	d.mu.Lock()
	defer d.mu.Unlock()

	var defs []Definition
	found, err := store.Load(definitionsKey, &defs)
	if err != nil {
		slog.Warn("taskfuncs: load definitions", "error", err)
		return d
	}
	if !found {
		d.saveLocked(DefaultDefinitions())
	}
	return d
}

// List returns all definitions, enabled or not, sorted by name.
func (d *Definitions) List() []Definition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadLocked()
}

// Enabled returns only the definitions that should be registered.
func (d *Definitions) Enabled() []Definition {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Definition
	for _, def := range d.loadLocked() {
		if def.Enabled {
			out = append(out, def)
		}
	}
	return out
}

// Add appends a custom prompt definition. Duplicate names are rejected.
func (d *Definitions) Add(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("definition name is required")
	}
	if def.Prompt == "" && def.Builtin == "" {
		return fmt.Errorf("definition %q: prompt or builtin is required", def.Name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	defs := d.loadLocked()
	for _, existing := range defs {
		if existing.Name == def.Name {
			return fmt.Errorf("definition %q: %w", def.Name, ErrDefinitionExists)
		}
	}

	def.Enabled = true
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now()
	}
	d.saveLocked(append(defs, def))

	slog.Info("taskfuncs: definition added", "name", def.Name, "interval_seconds", def.IntervalSeconds)
	return nil
}

// Remove deletes a custom definition, or disables a built-in one so it can
// be re-enabled later.
func (d *Definitions) Remove(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	defs := d.loadLocked()
	for i, def := range defs {
		if def.Name != name {
			continue
		}
		if def.IsBuiltin() {
			defs[i].Enabled = false
		} else {
			defs = append(defs[:i], defs[i+1:]...)
		}
		d.saveLocked(defs)
		slog.Info("taskfuncs: definition removed", "name", name, "builtin", def.IsBuiltin())
		return nil
	}
	return fmt.Errorf("remove %q: %w", name, ErrDefinitionNotFound)
}

// UpdateInterval changes the schedule interval of a definition.
func (d *Definitions) UpdateInterval(name string, intervalSeconds int) error {
	if intervalSeconds <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	defs := d.loadLocked()
	for i, def := range defs {
		if def.Name == name {
			defs[i].IntervalSeconds = intervalSeconds
			d.saveLocked(defs)
			return nil
		}
	}
	return fmt.Errorf("update %q: %w", name, ErrDefinitionNotFound)
}

// loadLocked reads the definition list. Caller must hold d.mu.
func (d *Definitions) loadLocked() []Definition {
	var defs []Definition
	found, err := d.store.Load(definitionsKey, &defs)
	if err != nil {
		slog.Warn("taskfuncs: load definitions", "error", err)
		return nil
	}
	if !found {
		return nil
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// saveLocked writes the definition list. Caller must hold d.mu.
func (d *Definitions) saveLocked(defs []Definition) {
	if err := d.store.Save(definitionsKey, defs); err != nil {
		slog.Warn("taskfuncs: save definitions", "error", err)
	}
}
