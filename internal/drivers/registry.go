package drivers

import (
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/camctl/internal/camera"
)

var (
	ErrDriverExists  = errors.New("drivers: driver already registered")
	ErrNilFactory    = errors.New("drivers: nil factory")
	ErrInvalidID     = errors.New("drivers: invalid driver id")
	ErrDriverUnknown = errors.New("drivers: unknown driver")
)

// Config is everything a factory needs to build one device driver.
type Config struct {
	Name     string
	Master   bool
	TimeBase string
	FPS      int
	Width    int
	Height   int
}

// Factory builds a driver for one configured camera.
type Factory func(cfg Config) (camera.DeviceDriver, error)

// Registry stores driver factories by stable identifier.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under an id.
func (r *Registry) Register(id string, f Factory) error {
	if f == nil {
		return ErrNilFactory
	}
	if !isValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, ok := r.factories[id]; ok {
		return fmt.Errorf("%w: %q", ErrDriverExists, id)
	}
	r.factories[id] = f
	return nil
}

// Resolve returns the factory for an id.
func (r *Registry) Resolve(id string) (Factory, bool) {
	f, ok := r.factories[id]
	return f, ok
}

// Build resolves an id and constructs the driver.
func (r *Registry) Build(id string, cfg Config) (camera.DeviceDriver, error) {
	f, ok := r.Resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverUnknown, id)
	}
	return f(cfg)
}

// List returns registered ids in deterministic order.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isValidID(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(id)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
