package bus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/danmuck/camctl/internal/observability"
)

// Response is one handler's contribution to a message. Multiple handlers may
// each append one or more responses; existing entries are never removed or
// reordered.
type Response struct {
	Source string
	Data   any
}

// Message is the bus envelope. Type and Data are fixed at creation; the
// response list is append-only and safe for concurrent append.
type Message struct {
	ID     string
	Type   string
	Source string
	Data   any

	mu        sync.Mutex
	responses []Response
	failures  []error
	validate  func(Response) error
}

// NewMessage creates a message envelope with a fresh id.
func NewMessage(source, mtype string, data any) *Message {
	return &Message{
		ID:     uuid.NewString(),
		Type:   mtype,
		Source: source,
		Data:   data,
	}
}

// AddResponse appends one response. Append order follows dispatch order.
// On a posted message the response shape is checked here, under the same
// lock as the append, so a mismatch is always attributed to the appender
// even while other modules' handlers append concurrently.
func (m *Message) AddResponse(source string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp := Response{Source: source, Data: data}
	m.responses = append(m.responses, resp)
	if m.validate != nil {
		if err := m.validate(resp); err != nil {
			m.failures = append(m.failures, fmt.Errorf("%s: %w", source, err))
			observability.RecordBusFailure(source, m.Type)
		}
	}
}

func (m *Message) setValidator(fn func(Response) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validate = fn
}

// Responses returns a snapshot of the responses appended so far.
func (m *Message) Responses() []Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Response, len(m.responses))
	copy(out, m.responses)
	return out
}

// Failures returns the failed handler outcomes recorded for this message.
func (m *Message) Failures() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]error, len(m.failures))
	copy(out, m.failures)
	return out
}

func (m *Message) recordFailure(module string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, fmt.Errorf("%s: %w", module, err))
}
