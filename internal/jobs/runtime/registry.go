package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

var (
	ErrTaskActive   = fmt.Errorf("%w: a task is already running for this key", apierr.ErrConflict)
	ErrTaskNotFound = fmt.Errorf("%w: task", apierr.ErrNotFound)
	ErrShuttingDown = errors.New("task registry is shutting down")
)

type TaskState string

const (
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
	TaskCanceled  TaskState = "canceled"
)

// TaskInfo is a point-in-time view of a task.
type TaskInfo struct {
	ID         string     `json:"id"`
	Key        string     `json:"key"`
	State      TaskState  `json:"state"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TaskFunc is the body of a detached task.
type TaskFunc func(ctx context.Context) error

// OnDone runs after the task body with its final error, including a
// recovered panic. It runs on the task goroutine under a fresh context so
// it can still record the outcome after cancellation.
type OnDone func(ctx context.Context, err error)

type task struct {
	info   TaskInfo
	cancel context.CancelFunc
	done   chan struct{}
}

type Config struct {
	// TaskTimeout bounds each task; zero means no bound.
	TaskTimeout time.Duration
	// Retain is how many finished tasks are kept for inspection.
	Retain int
	// FinalizeTimeout bounds each OnDone callback.
	FinalizeTimeout time.Duration
}

// Registry supervises detached background tasks: at most one live task per
// key, panics recovered, terminal states logged.
type Registry struct {
	log     *logger.Logger
	cfg     Config
	metrics *observability.Metrics

	root       context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	tasks    map[string]*task
	byKey    map[string]string
	finished []string
}

func NewRegistry(log *logger.Logger, metrics *observability.Metrics, cfg Config) *Registry {
	if cfg.Retain <= 0 {
		cfg.Retain = 200
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = 30 * time.Second
	}
	root, cancel := context.WithCancel(context.Background())
	return &Registry{
		log:        log.With("component", "TaskRegistry"),
		cfg:        cfg,
		metrics:    metrics,
		root:       root,
		rootCancel: cancel,
		tasks:      map[string]*task{},
		byKey:      map[string]string{},
	}
}

// Launch starts fn in the background and returns immediately.
func (r *Registry) Launch(key string, fn TaskFunc, onDone OnDone) (TaskInfo, error) {
	if fn == nil {
		return TaskInfo{}, fmt.Errorf("nil task func")
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return TaskInfo{}, ErrShuttingDown
	}
	if key != "" {
		if id, ok := r.byKey[key]; ok {
			info := r.tasks[id].info
			r.mu.Unlock()
			return info, ErrTaskActive
		}
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if r.cfg.TaskTimeout > 0 {
		ctx, cancel = context.WithTimeout(r.root, r.cfg.TaskTimeout)
	} else {
		ctx, cancel = context.WithCancel(r.root)
	}
	t := &task{
		info: TaskInfo{
			ID:        uuid.NewString(),
			Key:       key,
			State:     TaskRunning,
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.tasks[t.info.ID] = t
	if key != "" {
		r.byKey[key] = t.info.ID
	}
	info := t.info
	r.wg.Add(1)
	r.mu.Unlock()

	r.metrics.TaskStarted()
	r.log.Info("Task launched", "task_id", info.ID, "key", key)
	go r.run(ctx, t, fn, onDone)
	return info, nil
}

func (r *Registry) run(ctx context.Context, t *task, fn TaskFunc, onDone OnDone) {
	defer r.wg.Done()
	defer close(t.done)
	defer r.metrics.TaskFinished()
	defer t.cancel()

	err := r.invoke(ctx, fn)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	// The body is over, so the key is free before onDone runs. A launch
	// racing the callback must not see a task that no longer does work.
	r.releaseKey(t)

	if onDone != nil {
		fctx, cancel := context.WithTimeout(context.Background(), r.cfg.FinalizeTimeout)
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("Task completion callback panic", "task_id", t.info.ID, "panic", rec)
				}
			}()
			onDone(fctx, err)
		}()
		cancel()
	}

	r.finish(t, err)
}

func (r *Registry) releaseKey(t *task) {
	if t.info.Key == "" {
		return
	}
	r.mu.Lock()
	if r.byKey[t.info.Key] == t.info.ID {
		delete(r.byKey, t.info.Key)
	}
	r.mu.Unlock()
}

func (r *Registry) invoke(ctx context.Context, fn TaskFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec}
		}
	}()
	return fn(ctx)
}

func (r *Registry) finish(t *task, err error) {
	now := time.Now().UTC()
	r.mu.Lock()
	t.info.FinishedAt = &now
	switch {
	case err == nil:
		t.info.State = TaskSucceeded
	case errors.Is(err, context.Canceled):
		t.info.State = TaskCanceled
		t.info.Error = err.Error()
	default:
		t.info.State = TaskFailed
		t.info.Error = err.Error()
	}
	r.finished = append(r.finished, t.info.ID)
	for len(r.finished) > r.cfg.Retain {
		delete(r.tasks, r.finished[0])
		r.finished = r.finished[1:]
	}
	info := t.info
	r.mu.Unlock()

	dur := now.Sub(info.StartedAt)
	switch info.State {
	case TaskSucceeded:
		r.log.Info("Task succeeded", "task_id", info.ID, "key", info.Key, "duration", dur.String())
	case TaskCanceled:
		r.log.Warn("Task canceled", "task_id", info.ID, "key", info.Key, "duration", dur.String())
	default:
		r.log.Error("Task failed", "task_id", info.ID, "key", info.Key, "duration", dur.String(), "error", info.Error)
	}
}

func (r *Registry) Get(id string) (TaskInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return TaskInfo{}, false
	}
	return t.info, true
}

// List returns all known tasks, newest first.
func (r *Registry) List() []TaskInfo {
	r.mu.Lock()
	out := make([]TaskInfo, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.info)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Active counts running tasks.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tasks {
		if t.info.State == TaskRunning {
			n++
		}
	}
	return n
}

// Cancel signals a running task. Finishing is asynchronous.
func (r *Registry) Cancel(id string) (TaskInfo, error) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return TaskInfo{}, ErrTaskNotFound
	}
	info := t.info
	r.mu.Unlock()
	if info.State == TaskRunning {
		t.cancel()
	}
	return info, nil
}

// Wait blocks until the task finishes or ctx is done.
func (r *Registry) Wait(ctx context.Context, id string) (TaskInfo, error) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return TaskInfo{}, ErrTaskNotFound
	}
	select {
	case <-t.done:
	case <-ctx.Done():
		return TaskInfo{}, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return t.info, nil
}

// Shutdown refuses new tasks, cancels live ones and waits for them.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.rootCancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type PanicError struct{ Value any }

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }
