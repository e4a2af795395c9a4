package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mbellotti/drover/internal/events"
)

// DefaultMaxWorkers bounds concurrent parallel-task executions.
const DefaultMaxWorkers = 5

const queueCapacity = 256

// schedulerTick is the resolution of the interval scheduler.
const schedulerTick = time.Second

// ManagerConfig holds dependencies for the task manager.
type ManagerConfig struct {
	Bus        *events.Bus
	Outputs    *OutputStore
	History    *HistoryIndex // nil-safe: history survives only in memory without it
	Resolver   WorkResolver  // nil-safe: spec-only tasks are rejected without one
	MaxWorkers int           // 0 = default 5
	MaxHistory int           // default per-task history cap, 0 = 10
}

// Manager owns the task registry, the scheduler loop, and the worker loop.
// All runtime state on registered tasks is guarded by the manager mutex.
type Manager struct {
	bus        *events.Bus
	outputs    *OutputStore
	history    *HistoryIndex
	resolver   WorkResolver
	maxHistory int

	mu     sync.Mutex
	tasks  map[string]*Task
	byName map[string]string

	queue  chan string
	slots  chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	loopWg sync.WaitGroup
	runWg  sync.WaitGroup
}

// NewManager creates a task manager.
func NewManager(cfg ManagerConfig) *Manager {
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	return &Manager{
		bus:        cfg.Bus,
		outputs:    cfg.Outputs,
		history:    cfg.History,
		resolver:   cfg.Resolver,
		maxHistory: maxHistory,
		tasks:      make(map[string]*Task),
		byName:     make(map[string]string),
		queue:      make(chan string, queueCapacity),
		slots:      make(chan struct{}, workers),
		done:       make(chan struct{}),
	}
}

// Start begins the scheduler and worker loops.
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.loopWg.Add(2)
	go m.schedulerLoop()
	go m.workerLoop(ctx)

	slog.Info("tasks: manager started", "max_workers", cap(m.slots))
}

// Stop halts both loops, cancels in-flight work, and waits for running
// executions to return.
func (m *Manager) Stop() {
	close(m.done)
	if m.cancel != nil {
		m.cancel()
	}
	m.loopWg.Wait()
	m.runWg.Wait()
	slog.Info("tasks: manager stopped")
}

// Add registers a task. Duplicate names are rejected. One-shot tasks are
// enqueued exactly once, immediately; if the queue cannot take the trigger
// the registration fails.
func (m *Manager) Add(t *Task) error {
	if t.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if t.Interval > 0 && t.Cron != nil {
		return fmt.Errorf("task %q: interval and cron are mutually exclusive", t.Name)
	}

	if t.Func == nil {
		if t.Spec.IsZero() {
			return fmt.Errorf("task %q: no work function or spec", t.Name)
		}
		if m.resolver == nil {
			return fmt.Errorf("task %q: no resolver for spec tasks", t.Name)
		}
		fn, err := m.resolver.Resolve(t.Spec)
		if err != nil {
			return fmt.Errorf("task %q: resolve spec: %w", t.Name, err)
		}
		t.Func = fn
	}

	if t.ID == "" {
		t.ID = GenerateTaskID()
	}
	if t.MaxHistory <= 0 {
		t.MaxHistory = m.maxHistory
	}
	t.Status = TaskPending

	m.mu.Lock()
	if _, taken := m.byName[t.Name]; taken {
		m.mu.Unlock()
		return fmt.Errorf("task %q: %w", t.Name, ErrTaskExists)
	}
	m.tasks[t.ID] = t
	m.byName[t.Name] = t.ID

	oneShot := !t.IsRecurring()
	if oneShot && !m.enqueueLocked(t, "one-shot") {
		// A one-shot never gets another trigger, so a full queue must fail
		// the registration instead of silently never running the task.
		delete(m.tasks, t.ID)
		delete(m.byName, t.Name)
		m.mu.Unlock()
		return fmt.Errorf("task %q: run queue full", t.Name)
	}
	m.mu.Unlock()

	m.bus.Publish(events.NewTypedEvent(events.SourceManager, events.TaskRegisteredPayload{
		TaskID:   t.ID,
		Name:     t.Name,
		Interval: int(t.Interval / time.Second),
		CronSpec: cronSpec(t),
	}))

	slog.Info("tasks: registered", "id", t.ID, "name", t.Name,
		"interval", t.Interval, "cron", cronSpec(t), "parallel", t.Parallel, "one_shot", oneShot)
	return nil
}

func cronSpec(t *Task) string {
	if t.Cron == nil {
		return ""
	}
	return t.Cron.String()
}

// Cancel marks a task cancelled. A running execution is signalled through its
// context and may finish its current step; the scheduler never enqueues the
// task again.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("cancel %s: %w", id, ErrTaskNotFound)
	}
	t.Status = TaskCancelled
	if t.cancel != nil {
		t.cancel()
	}
	name := t.Name
	m.mu.Unlock()

	m.bus.Publish(events.NewTypedEvent(events.SourceManager, events.TaskCancelledPayload{
		TaskID: id,
		Name:   name,
	}))

	slog.Info("tasks: cancelled", "id", id, "name", name)
	return nil
}

// TaskInfo is a point-in-time snapshot of a task's state.
type TaskInfo struct {
	ID           string
	Name         string
	Status       TaskStatus
	Interval     time.Duration
	CronSpec     string
	Recurring    bool
	Parallel     bool
	UsesHistory  bool
	OutputFolder string
	LastRun      time.Time
	RunCount     int
	Result       string
	Error        string
}

// Status returns a snapshot of the task with the given id.
func (m *Manager) Status(id string) (*TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("status %s: %w", id, ErrTaskNotFound)
	}
	return m.infoLocked(t), nil
}

// List returns snapshots of all registered tasks.
func (m *Manager) List() []*TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*TaskInfo, 0, len(m.tasks))
	for _, t := range m.tasks {
		result = append(result, m.infoLocked(t))
	}
	return result
}

// Running returns snapshots of currently running tasks.
func (m *Manager) Running() []*TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*TaskInfo
	for _, t := range m.tasks {
		if t.Status == TaskRunning {
			result = append(result, m.infoLocked(t))
		}
	}
	return result
}

// History returns up to limit of the task's bounded in-memory history,
// oldest first.
func (m *Manager) History(id string, limit int) ([]RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("history %s: %w", id, ErrTaskNotFound)
	}
	return boundHistory(t.History, limit), nil
}

// HistoryByName returns history for a task name. Unregistered names fall
// back to the persistent history index, so history outlives restarts.
func (m *Manager) HistoryByName(name string, limit int) ([]RunRecord, error) {
	m.mu.Lock()
	if id, ok := m.byName[name]; ok {
		entries := boundHistory(m.tasks[id].History, limit)
		m.mu.Unlock()
		return entries, nil
	}
	m.mu.Unlock()

	if m.history == nil {
		return nil, fmt.Errorf("history %q: %w", name, ErrTaskNotFound)
	}
	persisted := m.history.Load(name)
	if persisted == nil {
		return nil, fmt.Errorf("history %q: %w", name, ErrTaskNotFound)
	}
	return boundHistory(persisted, limit), nil
}

// Outputs returns up to limit durable run records for a task name, newest
// first.
func (m *Manager) Outputs(name string, limit int) ([]RunRecord, error) {
	return m.outputs.Load(name, limit)
}

// OutputsByID returns durable run records for the task with the given id.
func (m *Manager) OutputsByID(id string, limit int) ([]RunRecord, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("outputs %s: %w", id, ErrTaskNotFound)
	}
	return m.outputs.Load(t.Name, limit)
}

func boundHistory(entries []RunRecord, limit int) []RunRecord {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]RunRecord, len(entries))
	copy(out, entries)
	return out
}

func (m *Manager) infoLocked(t *Task) *TaskInfo {
	return &TaskInfo{
		ID:           t.ID,
		Name:         t.Name,
		Status:       t.Status,
		Interval:     t.Interval,
		CronSpec:     cronSpec(t),
		Recurring:    t.IsRecurring(),
		Parallel:     t.Parallel,
		UsesHistory:  t.UseHistory,
		OutputFolder: m.outputs.Folder(t.Name),
		LastRun:      t.LastRun,
		RunCount:     t.RunCount,
		Result:       t.Result,
		Error:        t.Error,
	}
}

// enqueueLocked puts a task on the run queue and reports whether it fit.
// Caller must hold m.mu. A full queue drops the trigger; the next scheduler
// tick retries recurring tasks.
func (m *Manager) enqueueLocked(t *Task, trigger string) bool {
	select {
	case m.queue <- t.ID:
		t.queued = true
	default:
		slog.Warn("tasks: queue full, trigger dropped", "id", t.ID, "trigger", trigger)
		return false
	}

	m.bus.Publish(events.NewTypedEvent(events.SourceScheduler, events.TaskQueuedPayload{
		TaskID: t.ID,
		Name:   t.Name,
	}))
	if trigger != "one-shot" {
		m.bus.Publish(events.NewTypedEvent(events.SourceScheduler, events.ScheduleTriggerPayload{
			TaskID:  t.ID,
			Name:    t.Name,
			Trigger: trigger,
		}))
	}
	return true
}

func (m *Manager) schedulerLoop() {
	defer m.loopWg.Done()

	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.checkSchedules(now)
		}
	}
}

// checkSchedules enqueues due recurring tasks. A task is due when it has
// never run, or when the interval has elapsed; cron tasks are due when the
// current minute matches. Tasks that are running, queued, or cancelled are
// skipped, so triggers never pile up behind a slow run.
func (m *Manager) checkSchedules(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tasks {
		if !t.IsRecurring() || t.Status == TaskCancelled || t.queued || t.Status == TaskRunning {
			continue
		}

		switch {
		case t.Cron != nil:
			if !t.Cron.Matches(now) {
				continue
			}
			// One-minute cooldown: Matches holds for every tick of the
			// matched minute.
			if !t.LastRun.IsZero() && now.Sub(t.LastRun) < time.Minute {
				continue
			}
			m.enqueueLocked(t, "cron")
		case t.LastRun.IsZero():
			m.enqueueLocked(t, "first-run")
		case now.Sub(t.LastRun) >= t.Interval-schedulerTick/2:
			// LastRun is stamped when the run starts, a beat after the tick
			// that queued it. Without the half-tick allowance an interval
			// equal to a tick multiple would always miss by milliseconds and
			// fire one tick late.
			m.enqueueLocked(t, "interval")
		}
	}
}

func (m *Manager) workerLoop(ctx context.Context) {
	defer m.loopWg.Done()

	for {
		select {
		case <-m.done:
			return
		case id := <-m.queue:
			m.dispatch(ctx, id)
		}
	}
}

// dispatch routes a dequeued task: parallel tasks go to the bounded pool,
// everything else runs synchronously on the worker loop so a burst of
// non-parallel work naturally applies backpressure.
func (m *Manager) dispatch(ctx context.Context, id string) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok || t.Status == TaskCancelled {
		if ok {
			t.queued = false
		}
		m.mu.Unlock()
		return
	}
	parallel := t.Parallel
	m.mu.Unlock()

	if !parallel {
		m.execute(ctx, t)
		return
	}

	select {
	case <-m.done:
		return
	case m.slots <- struct{}{}:
	}

	m.runWg.Add(1)
	go func() {
		defer m.runWg.Done()
		defer func() { <-m.slots }()
		m.execute(ctx, t)
	}()
}

// execute runs one task to completion or failure and records the outcome.
func (m *Manager) execute(ctx context.Context, t *Task) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if t.Status == TaskCancelled {
		t.queued = false
		m.mu.Unlock()
		return
	}
	t.Status = TaskRunning
	t.LastRun = time.Now()
	t.queued = false
	t.cancel = cancel
	fn := t.Func
	name := t.Name
	runNumber := t.RunCount + 1
	useHistory := t.UseHistory
	maxHistory := t.MaxHistory
	m.mu.Unlock()

	m.bus.Publish(events.NewTypedEvent(events.SourceWorker, events.TaskStartedPayload{
		TaskID:    t.ID,
		Name:      name,
		RunNumber: runNumber,
	}))
	slog.Info("tasks: run started", "id", t.ID, "name", name, "run", runNumber)

	var previous []RunRecord
	if useHistory {
		previous = m.loadPrevious(name, maxHistory)
	}

	started := time.Now()
	result, err := fn(runCtx, previous)

	rec := RunRecord{
		TaskName:  name,
		RunNumber: runNumber,
		Timestamp: time.Now(),
		Success:   err == nil,
		Result:    result,
	}
	if err != nil {
		rec.Error = err.Error()
	}

	m.mu.Lock()
	t.RunCount++
	t.cancel = nil
	cancelled := t.Status == TaskCancelled
	if !cancelled {
		if err != nil {
			t.Status = TaskFailed
			t.Error = err.Error()
			t.Result = ""
		} else {
			t.Status = TaskCompleted
			t.Result = result
			t.Error = ""
		}
	}
	t.History = append(t.History, rec)
	if len(t.History) > maxHistory {
		t.History = t.History[len(t.History)-maxHistory:]
	}
	historySnapshot := make([]RunRecord, len(t.History))
	copy(historySnapshot, t.History)
	m.mu.Unlock()

	if _, werr := m.outputs.Write(rec); werr != nil {
		slog.Warn("tasks: persist output", "id", t.ID, "name", name, "error", werr)
	}
	if m.history != nil {
		m.history.Flush(name, historySnapshot)
	}

	switch {
	case err != nil:
		m.bus.Publish(events.NewTypedEvent(events.SourceWorker, events.TaskFailedPayload{
			TaskID:    t.ID,
			Name:      name,
			RunNumber: runNumber,
			Error:     err.Error(),
		}))
		slog.Warn("tasks: run failed", "id", t.ID, "name", name, "run", runNumber,
			"duration", time.Since(started), "error", err)
	default:
		m.bus.Publish(events.NewTypedEvent(events.SourceWorker, events.TaskCompletedPayload{
			TaskID:    t.ID,
			Name:      name,
			RunNumber: runNumber,
			Result:    truncate(result, 200),
		}))
		slog.Info("tasks: run completed", "id", t.ID, "name", name, "run", runNumber,
			"duration", time.Since(started))
	}
}

// loadPrevious reloads the freshest run records from the durable output
// store and returns them oldest-first for the work function.
func (m *Manager) loadPrevious(name string, limit int) []RunRecord {
	records, err := m.outputs.Load(name, limit)
	if err != nil {
		slog.Warn("tasks: load previous runs", "name", name, "error", err)
		return nil
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
