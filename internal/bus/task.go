package bus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/camctl/internal/observability"
)

var ErrRunnerClosed = errors.New("bus: task runner closed")

// TaskRunner executes device-blocking work on a worker goroutine distinct
// from the dispatch path. Run blocks the calling handler until the work
// completes, which keeps the message's response order stable: appends made
// before Run, then the task's side effects, then appends after Run returns.
// Because handlers are serial per module, at most one task per message is
// ever outstanding. Tasks are never cancelled; once started they run to
// completion.
type TaskRunner struct {
	name  string
	tasks chan taskItem

	mu     sync.RWMutex
	closed bool
}

type taskItem struct {
	msg  *Message
	work func() error
	done chan error
}

// NewTaskRunner creates a runner and starts its worker goroutine. The name
// labels logs and metrics, conventionally the owning module's name.
func NewTaskRunner(name string) *TaskRunner {
	r := &TaskRunner{
		name:  name,
		tasks: make(chan taskItem),
	}
	go r.loop()
	return r
}

// Run executes work on the runner's worker and waits for it to finish.
// The work's error is returned to the handler unmodified so it can surface
// as a failed message outcome.
func (r *TaskRunner) Run(msg *Message, work func() error) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrRunnerClosed
	}
	item := taskItem{msg: msg, work: work, done: make(chan error, 1)}
	r.tasks <- item
	r.mu.RUnlock()

	return <-item.done
}

// Close stops the worker. Pending Run calls complete first.
func (r *TaskRunner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.tasks)
}

func (r *TaskRunner) loop() {
	for item := range r.tasks {
		start := time.Now()
		err := runTask(item.work)
		observability.ObserveTask(r.name, time.Since(start))
		if err != nil {
			log.Warn().
				Str("runner", r.name).
				Str("message_id", item.msg.ID).
				Str("type", item.msg.Type).
				Err(err).
				Msg("scoped task failed")
		}
		item.done <- err
	}
}

func runTask(work func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("bus: task panic: %v", rec)
		}
	}()
	return work()
}
