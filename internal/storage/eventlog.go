// Package storage holds durable sinks fed by the event bus.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mbellotti/drover/internal/events"
)

// EventLogger persists bus events to JSONL files: one global log plus one
// file per emitting source.
type EventLogger struct {
	dir         string
	bus         *events.Bus
	unsubscribe func()
}

// NewEventLogger creates an EventLogger that subscribes to all bus events
// and appends them under dir.
func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	el := &EventLogger{
		dir: dir,
		bus: bus,
	}
	el.unsubscribe = bus.Subscribe(el.handleEvent)
	return el
}

// Close unsubscribes the logger from the event bus.
func (el *EventLogger) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

func (el *EventLogger) handleEvent(e events.Event) {
	// Per-cycle ticks are redundant with agent.output; skip them.
	if e.Type == events.EventAgentCycle {
		return
	}
	_ = el.writeEvent(e, "_global.jsonl")
	_ = el.writeEvent(e, string(e.Source)+".jsonl")
}

func (el *EventLogger) writeEvent(e events.Event, filename string) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	path := filepath.Join(el.dir, filename)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}
