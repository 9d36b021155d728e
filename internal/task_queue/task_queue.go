package task_queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// TaskType is an identifier for deferred work items.
type TaskType string

// Task is the generic envelope carried by the queue. Payload is kept as
// any to allow different payload types on the same queue; tasks must stay
// plain serializable values so a handler can be re-invoked with them.
type Task struct {
	Type       TaskType
	EnqueuedAt time.Time
	Payload    any
}

// Handler processes one task. The context passed in is the worker's, not
// the enqueuer's: a task deliberately outlives the request or invocation
// that scheduled it.
type Handler func(ctx context.Context, task Task) error

// Queue is an in-process deferred-work queue with a single sequential
// worker. It replaces self-rescheduling call patterns: producers enqueue a
// plain value, the worker invokes the registered handler with it.
type Queue struct {
	mu       sync.RWMutex
	handlers map[TaskType]Handler

	tasks   chan Task
	stopped chan struct{}
	wg      sync.WaitGroup
}

func New(buffer int) *Queue {
	return &Queue{
		handlers: make(map[TaskType]Handler),
		tasks:    make(chan Task, buffer),
		stopped:  make(chan struct{}),
	}
}

// Register installs the handler for taskType. Registering twice replaces
// the previous handler; registration is expected to happen before Start.
func (q *Queue) Register(taskType TaskType, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

// Enqueue schedules a task. It never blocks the producer: when the buffer
// is full the task is dropped and an error returned, which callers treat
// the same as any other per-item failure.
func (q *Queue) Enqueue(taskType TaskType, payload any) error {
	task := Task{Type: taskType, EnqueuedAt: time.Now(), Payload: payload}
	select {
	case q.tasks <- task:
		return nil
	default:
		err := fmt.Errorf("task queue full, dropping task %s", taskType)
		log.Error(err)
		return err
	}
}

// Start launches the worker goroutine. Tasks are executed strictly in
// order, one at a time.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-q.stopped:
				return
			case <-ctx.Done():
				return
			case task := <-q.tasks:
				q.dispatch(ctx, task)
			}
		}
	}()
}

// Stop signals the worker and waits for the in-flight task to finish.
// Buffered tasks that were never dispatched are dropped.
func (q *Queue) Stop() {
	close(q.stopped)
	q.wg.Wait()
}

func (q *Queue) dispatch(ctx context.Context, task Task) {
	q.mu.RLock()
	h, ok := q.handlers[task.Type]
	q.mu.RUnlock()

	if !ok {
		log.Errorf("no handler registered for task %s, dropping", task.Type)
		return
	}

	// Recover from panics and treat them as errors, the worker must
	// survive any single task.
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic for task %s: %v", task.Type, r)
				log.Error(err)
			}
		}()
		return h(ctx, task)
	}()

	if err != nil {
		log.Errorf("task %s failed: %v", task.Type, err)
	}
}

// HandleTyped registers a handler that expects a specific payload type T.
// It is a free function because Go does not allow type parameters on
// methods. Payloads of the wrong type are logged and skipped.
func HandleTyped[T any](q *Queue, taskType TaskType, h func(ctx context.Context, payload T) error) {
	q.Register(taskType, func(ctx context.Context, task Task) error {
		payload, ok := task.Payload.(T)
		if !ok {
			log.Errorf("task %s: expected payload %T, got %T", taskType, *new(T), task.Payload)
			return nil
		}
		return h(ctx, payload)
	})
}
