package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/camctl/internal/observability"
)

var (
	ErrBusClosed    = errors.New("bus: closed")
	ErrModuleExists = errors.New("bus: module already attached")
	ErrModuleName   = errors.New("bus: invalid module name")
)

// Module is anything the bus delivers messages to. ProcessMessage runs on
// the module's own dispatch goroutine; for one module, messages arrive in
// post order with no concurrent dispatch.
type Module interface {
	Name() string
	ProcessMessage(msg *Message) error
}

// Emitter posts messages onto the bus. Handlers hold an Emitter when they
// need to emit derived messages mid-dispatch.
type Emitter interface {
	Post(msg *Message) (*Delivery, error)
}

// Delivery tracks one posted message across all attached modules.
type Delivery struct {
	Msg *Message
	wg  *sync.WaitGroup
}

// Wait blocks until every module has finished handling the message,
// including any scoped tasks, then returns the joined failed outcomes.
func (d *Delivery) Wait() error {
	d.wg.Wait()
	return errors.Join(d.Msg.Failures()...)
}

// Bus delivers each posted message to every attached module in attach
// order. Each module gets its own serial dispatch goroutine, so a slow
// handler in one module never starves dispatch in another.
type Bus struct {
	registry *Registry

	mu      sync.Mutex
	workers []*worker
	closed  bool
}

// New creates a bus over the given message type registry.
func New(registry *Registry) *Bus {
	return &Bus{registry: registry}
}

// Registry returns the bus's message type registry.
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Attach subscribes a module and starts its dispatch goroutine.
func (b *Bus) Attach(m Module) error {
	if m == nil || m.Name() == "" {
		return ErrModuleName
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, w := range b.workers {
		if w.module.Name() == m.Name() {
			return fmt.Errorf("%w: %q", ErrModuleExists, m.Name())
		}
	}
	w := newWorker(m)
	b.workers = append(b.workers, w)
	return nil
}

// Post validates a message against the registry and queues it for every
// attached module. Validation failures surface here, before any handler
// runs. Safe to call from inside a handler.
func (b *Bus) Post(msg *Message) (*Delivery, error) {
	if err := b.registry.ValidateMessage(msg); err != nil {
		return nil, err
	}
	msg.setValidator(func(resp Response) error {
		return b.registry.ValidateResponse(msg.Type, resp)
	})

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	workers := make([]*worker, len(b.workers))
	copy(workers, b.workers)
	b.mu.Unlock()

	log.Debug().
		Str("type", msg.Type).
		Str("source", msg.Source).
		Str("message_id", msg.ID).
		Msg("bus post")

	wg := &sync.WaitGroup{}
	wg.Add(len(workers))
	for _, w := range workers {
		w.enqueue(&delivery{msg: msg, wg: wg})
	}
	return &Delivery{Msg: msg, wg: wg}, nil
}

// Close stops dispatch. Queued but undelivered messages are released
// without running their handlers so pending Waits return.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	workers := b.workers
	b.mu.Unlock()

	for _, w := range workers {
		w.shutdown()
	}
}

type delivery struct {
	msg *Message
	wg  *sync.WaitGroup
}

// worker is one module's serial dispatch loop with an unbounded mailbox.
// The mailbox keeps Post non-blocking so handlers can emit new messages
// mid-dispatch without deadlocking their own queue.
type worker struct {
	module Module

	mu      sync.Mutex
	queue   []*delivery
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func newWorker(m Module) *worker {
	w := &worker{
		module: m,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *worker) enqueue(d *delivery) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		d.wg.Done()
		return
	}
	w.queue = append(w.queue, d)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) shutdown() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.stopped = true
	pending := w.queue
	w.queue = nil
	w.mu.Unlock()

	for _, d := range pending {
		d.wg.Done()
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	<-w.done
}

func (w *worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			stopped := w.stopped
			w.mu.Unlock()
			if stopped {
				return
			}
			<-w.wake
			continue
		}
		d := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.process(d)
	}
}

func (w *worker) process(d *delivery) {
	defer d.wg.Done()

	msg := d.msg
	err := runHandler(w.module, msg)
	if err != nil {
		msg.recordFailure(w.module.Name(), err)
		observability.RecordBusFailure(w.module.Name(), msg.Type)
		log.Error().
			Str("module", w.module.Name()).
			Str("type", msg.Type).
			Str("message_id", msg.ID).
			Err(err).
			Msg("message handling failed")
	}

	observability.RecordBusDelivery(w.module.Name(), msg.Type)
}

func runHandler(m Module, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bus: handler panic: %v", r)
		}
	}()
	return m.ProcessMessage(msg)
}
