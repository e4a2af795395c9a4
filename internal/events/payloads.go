package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// NewTypedEvent builds an Event from a typed payload.
func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// ExtractPayload decodes an event payload back into its typed form.
func ExtractPayload[T any](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

// =============================================================================
// TASK EVENTS
// =============================================================================

type TaskRegisteredPayload struct {
	TaskID   string `json:"task_id"`
	Name     string `json:"name"`
	Interval int    `json:"interval,omitempty"`
	CronSpec string `json:"cron_spec,omitempty"`
}

func (TaskRegisteredPayload) EventType() EventType { return EventTaskRegistered }

type TaskQueuedPayload struct {
	TaskID string `json:"task_id"`
	Name   string `json:"name"`
}

func (TaskQueuedPayload) EventType() EventType { return EventTaskQueued }

type TaskStartedPayload struct {
	TaskID    string `json:"task_id"`
	Name      string `json:"name"`
	RunNumber int    `json:"run_number"`
}

func (TaskStartedPayload) EventType() EventType { return EventTaskStarted }

type TaskCompletedPayload struct {
	TaskID    string `json:"task_id"`
	Name      string `json:"name"`
	RunNumber int    `json:"run_number"`
	Result    string `json:"result,omitempty"`
}

func (TaskCompletedPayload) EventType() EventType { return EventTaskCompleted }

type TaskFailedPayload struct {
	TaskID    string `json:"task_id"`
	Name      string `json:"name"`
	RunNumber int    `json:"run_number"`
	Error     string `json:"error"`
}

func (TaskFailedPayload) EventType() EventType { return EventTaskFailed }

type TaskCancelledPayload struct {
	TaskID string `json:"task_id"`
	Name   string `json:"name"`
}

func (TaskCancelledPayload) EventType() EventType { return EventTaskCancelled }

type ScheduleTriggerPayload struct {
	TaskID  string `json:"task_id"`
	Name    string `json:"name"`
	Trigger string `json:"trigger"` // "first-run", "interval", "cron", "one-shot"
}

func (ScheduleTriggerPayload) EventType() EventType { return EventScheduleTrigger }

// =============================================================================
// AGENT EVENTS
// =============================================================================

type AgentStartedPayload struct {
	Agent         string `json:"agent"` // "primary" or "critic"
	ResumedCycles int    `json:"resumed_cycles,omitempty"`
	Resumed       bool   `json:"resumed"`
}

func (AgentStartedPayload) EventType() EventType { return EventAgentStarted }

type AgentStoppedPayload struct {
	Agent      string `json:"agent"`
	CycleCount int    `json:"cycle_count"`
}

func (AgentStoppedPayload) EventType() EventType { return EventAgentStopped }

type AgentPausedPayload struct {
	Agent string `json:"agent"`
}

func (AgentPausedPayload) EventType() EventType { return EventAgentPaused }

type AgentResumedPayload struct {
	Agent string `json:"agent"`
}

func (AgentResumedPayload) EventType() EventType { return EventAgentResumed }

type AgentCyclePayload struct {
	Agent string `json:"agent"`
	Cycle int    `json:"cycle"`
}

func (AgentCyclePayload) EventType() EventType { return EventAgentCycle }

type AgentOutputPayload struct {
	Agent   string `json:"agent"`
	Cycle   int    `json:"cycle"`
	Content string `json:"content"`
}

func (AgentOutputPayload) EventType() EventType { return EventAgentOutput }

type AgentErrorPayload struct {
	Agent string `json:"agent"`
	Cycle int    `json:"cycle"`
	Error string `json:"error"`
}

func (AgentErrorPayload) EventType() EventType { return EventAgentError }

// =============================================================================
// TYPED GETTERS
// =============================================================================

func GetTaskStartedPayload(e Event) (TaskStartedPayload, bool) {
	return ExtractPayload[TaskStartedPayload](e)
}

func GetTaskCompletedPayload(e Event) (TaskCompletedPayload, bool) {
	return ExtractPayload[TaskCompletedPayload](e)
}

func GetTaskFailedPayload(e Event) (TaskFailedPayload, bool) {
	return ExtractPayload[TaskFailedPayload](e)
}

func GetScheduleTriggerPayload(e Event) (ScheduleTriggerPayload, bool) {
	return ExtractPayload[ScheduleTriggerPayload](e)
}

func GetAgentOutputPayload(e Event) (AgentOutputPayload, bool) {
	return ExtractPayload[AgentOutputPayload](e)
}
