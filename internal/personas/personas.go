// Package personas manages named instruction prompts for the agent loops.
// Built-in personas can be edited but never deleted; user personas have full
// CRUD. The whole set is persisted as one YAML file.
package personas

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrPersonaNotFound is returned when a named persona does not exist.
var ErrPersonaNotFound = errors.New("persona not found")

// ErrPersonaExists is returned when creating a persona whose name is taken.
var ErrPersonaExists = errors.New("persona already exists")

// ErrBuiltinPersona is returned when deleting a built-in persona.
var ErrBuiltinPersona = errors.New("built-in personas cannot be deleted")

// Persona is one named instruction prompt.
type Persona struct {
	Name      string    `yaml:"name"`
	Prompt    string    `yaml:"prompt"`
	Builtin   bool      `yaml:"builtin,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// Builtins returns the personas shipped with drover.
func Builtins() []Persona {
	return []Persona{
		{
			Name:    "explorer",
			Builtin: true,
			Prompt: "You are an autonomous agent that explores technical topics. Each cycle, " +
				"pick one topic you have not covered recently, research it from your own " +
				"knowledge, and summarize the three most useful takeaways.",
		},
		{
			Name:    "builder",
			Builtin: true,
			Prompt: "You are an autonomous agent that writes small useful programs. Each cycle, " +
				"design and write one complete utility script or code snippet, then explain " +
				"when someone would reach for it.",
		},
		{
			Name:    "analyst",
			Builtin: true,
			Prompt: "You are an autonomous agent that analyzes trends. Each cycle, pick one " +
				"current development in software or AI, lay out the evidence for and against " +
				"its importance, and commit to a position.",
		},
	}
}

// Registry holds the persona set and persists every change to a YAML file.
type Registry struct {
	mu       sync.Mutex
	path     string
	personas map[string]Persona
}

// NewRegistry loads the persona file at path, seeding built-ins on first use.
// Built-ins missing from an existing file are re-added; edits to them survive.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, personas: make(map[string]Persona)}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var file personaFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse personas file: %w", err)
		}
		for _, p := range file.Personas {
			r.personas[p.Name] = p
		}
	case os.IsNotExist(err):
		// First start, seed below.
	default:
		return nil, fmt.Errorf("read personas file: %w", err)
	}

	changed := false
	for _, b := range Builtins() {
		if _, ok := r.personas[b.Name]; !ok {
			r.personas[b.Name] = b
			changed = true
		}
	}
	if changed {
		if err := r.saveLocked(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Get returns a persona by name.
func (r *Registry) Get(name string) (Persona, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.personas[name]
	if !ok {
		return Persona{}, fmt.Errorf("get %q: %w", name, ErrPersonaNotFound)
	}
	return p, nil
}

// List returns all personas sorted by name, built-ins first.
func (r *Registry) List() []Persona {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Builtin != out[j].Builtin {
			return out[i].Builtin
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Create adds a user persona. Names must be unique across the whole set.
func (r *Registry) Create(name, prompt string) error {
	if name == "" || prompt == "" {
		return fmt.Errorf("persona name and prompt are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.personas[name]; ok {
		return fmt.Errorf("create %q: %w", name, ErrPersonaExists)
	}
	r.personas[name] = Persona{Name: name, Prompt: prompt, UpdatedAt: time.Now()}
	return r.saveLocked()
}

// Update replaces a persona's prompt. Built-ins are editable.
func (r *Registry) Update(name, prompt string) error {
	if prompt == "" {
		return fmt.Errorf("persona prompt is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.personas[name]
	if !ok {
		return fmt.Errorf("update %q: %w", name, ErrPersonaNotFound)
	}
	p.Prompt = prompt
	p.UpdatedAt = time.Now()
	r.personas[name] = p
	return r.saveLocked()
}

// Delete removes a user persona. Built-ins are refused.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.personas[name]
	if !ok {
		return fmt.Errorf("delete %q: %w", name, ErrPersonaNotFound)
	}
	if p.Builtin {
		return fmt.Errorf("delete %q: %w", name, ErrBuiltinPersona)
	}
	delete(r.personas, name)
	return r.saveLocked()
}

// saveLocked writes the persona file atomically. Caller must hold r.mu.
func (r *Registry) saveLocked() error {
	out := make([]Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	data, err := yaml.Marshal(personaFile{Personas: out})
	if err != nil {
		return fmt.Errorf("marshal personas: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write personas: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename personas: %w", err)
	}
	return nil
}
