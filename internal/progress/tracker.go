package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fibermig/internal/events"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// TaskInfo is the observable state of a task.
type TaskInfo struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     TaskStatus `json:"status"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Task is one asynchronous unit of work started by a Tracker.
type Task struct {
	mu   sync.Mutex
	info TaskInfo
	done chan struct{}
}

func (t *Task) Info() TaskInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
}

func (t *Task) ID() string { return t.info.ID }

// Done is closed once the task has succeeded or failed.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (TaskInfo, error) {
	select {
	case <-t.done:
		return t.Info(), nil
	case <-ctx.Done():
		return t.Info(), ctx.Err()
	}
}

func (t *Task) set(fn func(*TaskInfo)) {
	t.mu.Lock()
	fn(&t.info)
	t.mu.Unlock()
}

// Tracker runs tasks in the background and remembers the most recent ones
// so their outcome can be queried. Close cancels running tasks and waits.
type Tracker struct {
	log *zap.Logger
	pub events.Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*Task
	order []string
	// Keep bounds how many tasks are remembered.
	Keep int
}

func NewTracker(pub events.Publisher, log *zap.Logger) *Tracker {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		log:    log.Named("tasks"),
		pub:    pub,
		ctx:    ctx,
		cancel: cancel,
		tasks:  map[string]*Task{},
		Keep:   500,
	}
}

// Start runs fn in its own goroutine and returns the task handle at once.
func (tr *Tracker) Start(kind string, fn func(ctx context.Context) (any, error)) *Task {
	t := &Task{
		info: TaskInfo{ID: uuid.New().String(), Kind: kind, Status: TaskPending, CreatedAt: time.Now().UTC()},
		done: make(chan struct{}),
	}
	tr.mu.Lock()
	tr.tasks[t.info.ID] = t
	tr.order = append(tr.order, t.info.ID)
	tr.pruneLocked()
	tr.mu.Unlock()

	tr.wg.Add(1)
	go func() {
		defer tr.wg.Done()
		tr.run(t, fn)
	}()
	return t
}

func (tr *Tracker) run(t *Task, fn func(ctx context.Context) (any, error)) {
	t.set(func(i *TaskInfo) { i.Status = TaskRunning })
	res, err := func() (res any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return fn(tr.ctx)
	}()
	now := time.Now().UTC()
	t.set(func(i *TaskInfo) {
		i.FinishedAt = &now
		i.Result = res
		if err != nil {
			i.Status = TaskFailed
			i.Error = err.Error()
		} else {
			i.Status = TaskSucceeded
		}
	})
	close(t.done)

	info := t.Info()
	if err != nil {
		tr.log.Warn("task failed", zap.String("task_id", info.ID), zap.String("kind", info.Kind), zap.Error(err))
	} else {
		tr.log.Debug("task finished", zap.String("task_id", info.ID), zap.String("kind", info.Kind))
	}
	tr.pub.Publish(events.TopicTasks, events.Event{Type: events.TaskCompleted, Data: map[string]any{
		"id":     info.ID,
		"kind":   info.Kind,
		"status": string(info.Status),
		"error":  info.Error,
	}})
}

// pruneLocked forgets the oldest finished tasks above Keep.
func (tr *Tracker) pruneLocked() {
	if tr.Keep <= 0 || len(tr.order) <= tr.Keep {
		return
	}
	kept := tr.order[:0]
	excess := len(tr.order) - tr.Keep
	for _, id := range tr.order {
		t := tr.tasks[id]
		if excess > 0 {
			select {
			case <-t.done:
				delete(tr.tasks, id)
				excess--
				continue
			default:
			}
		}
		kept = append(kept, id)
	}
	tr.order = kept
}

func (tr *Tracker) Get(id string) (*Task, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, ok := tr.tasks[id]
	return t, ok
}

// Close cancels the context handed to running tasks and waits for them.
func (tr *Tracker) Close() {
	tr.cancel()
	tr.wg.Wait()
}
