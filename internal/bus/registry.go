package bus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	ErrTypeUnknown  = errors.New("bus: unknown message type")
	ErrTypeConflict = errors.New("bus: conflicting message registration")
	ErrInvalidType  = errors.New("bus: invalid message type name")
	ErrBadPayload   = errors.New("bus: payload shape mismatch")
	ErrBadResponse  = errors.New("bus: response shape mismatch")
)

// MessageSpec fixes the payload shape for one message type. Payload is the
// required Go type of Message.Data (nil means the message carries none);
// Responses lists the Go types handlers may attach.
type MessageSpec struct {
	Payload   reflect.Type
	Responses []reflect.Type
}

// Registry maps message type names to their payload shapes. The registry is
// open: unrelated modules may register their own vocabulary. Re-registering
// an identical shape is a no-op so that several instances of the same module
// kind can declare their shared messages.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]MessageSpec
}

// NewRegistry creates an empty message type registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]MessageSpec)}
}

// Register declares a message type and its payload shape.
func (r *Registry) Register(name string, spec MessageSpec) error {
	if !isValidTypeName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidType, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.specs[name]; ok {
		if !specsEqual(existing, spec) {
			return fmt.Errorf("%w: %q", ErrTypeConflict, name)
		}
		return nil
	}
	r.specs[name] = spec
	return nil
}

// Spec returns the registered shape for a message type.
func (r *Registry) Spec(name string) (MessageSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec, ok
}

// ValidateMessage rejects unregistered types and malformed payloads. This
// runs before any handler sees the message, so handlers may assume
// well-typed payloads.
func (r *Registry) ValidateMessage(msg *Message) error {
	spec, ok := r.Spec(msg.Type)
	if !ok {
		return fmt.Errorf("%w: %q", ErrTypeUnknown, msg.Type)
	}
	if spec.Payload == nil {
		if msg.Data != nil {
			return fmt.Errorf("%w: %q carries unexpected payload %T", ErrBadPayload, msg.Type, msg.Data)
		}
		return nil
	}
	if got := reflect.TypeOf(msg.Data); got != spec.Payload {
		return fmt.Errorf("%w: %q payload is %v, want %v", ErrBadPayload, msg.Type, got, spec.Payload)
	}
	return nil
}

// ValidateResponse rejects response payloads outside the registered shapes.
func (r *Registry) ValidateResponse(mtype string, resp Response) error {
	spec, ok := r.Spec(mtype)
	if !ok {
		return fmt.Errorf("%w: %q", ErrTypeUnknown, mtype)
	}
	got := reflect.TypeOf(resp.Data)
	for _, allowed := range spec.Responses {
		if got == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %q response is %v", ErrBadResponse, mtype, got)
}

func specsEqual(a, b MessageSpec) bool {
	if a.Payload != b.Payload {
		return false
	}
	if len(a.Responses) != len(b.Responses) {
		return false
	}
	for i := range a.Responses {
		if a.Responses[i] != b.Responses[i] {
			return false
		}
	}
	return true
}

func isValidTypeName(name string) bool {
	if name == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(name)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
