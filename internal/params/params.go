package params

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mohae/deepcopy"
)

var (
	ErrUnknownAttribute = errors.New("params: unknown attribute")
	ErrUnknownSub       = errors.New("params: unknown sub-set")
	ErrWrongType        = errors.New("params: wrong attribute type")
	ErrSubExists        = errors.New("params: sub-set already attached")
)

// ParameterSet is a named, hierarchical configuration bag. Leaves live in
// Attrs; nested sets live in Subs keyed by their own name. Fields are
// exported so a Copy can clone the whole tree.
type ParameterSet struct {
	Name  string
	Attrs map[string]any
	Subs  map[string]*ParameterSet
}

// New creates an empty parameter set with the given name.
func New(name string) *ParameterSet {
	return &ParameterSet{
		Name:  name,
		Attrs: make(map[string]any),
		Subs:  make(map[string]*ParameterSet),
	}
}

// Set stores a leaf attribute, replacing any previous value.
func (p *ParameterSet) Set(key string, value any) {
	if p.Attrs == nil {
		p.Attrs = make(map[string]any)
	}
	p.Attrs[key] = value
}

// Get returns a leaf attribute.
func (p *ParameterSet) Get(key string) (any, error) {
	v, ok := p.Attrs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, p.Name, key)
	}
	return v, nil
}

// Int returns a leaf attribute as an int.
func (p *ParameterSet) Int(key string) (int, error) {
	v, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s is %T, want int", ErrWrongType, p.Name, key, v)
	}
	return n, nil
}

// String returns a leaf attribute as a string.
func (p *ParameterSet) String(key string) (string, error) {
	v, err := p.Get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s is %T, want string", ErrWrongType, p.Name, key, v)
	}
	return s, nil
}

// Bool returns a leaf attribute as a bool.
func (p *ParameterSet) Bool(key string) (bool, error) {
	v, err := p.Get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s.%s is %T, want bool", ErrWrongType, p.Name, key, v)
	}
	return b, nil
}

// Attach adds a nested set keyed by its name.
func (p *ParameterSet) Attach(sub *ParameterSet) error {
	if p.Subs == nil {
		p.Subs = make(map[string]*ParameterSet)
	}
	if _, ok := p.Subs[sub.Name]; ok {
		return fmt.Errorf("%w: %s.%s", ErrSubExists, p.Name, sub.Name)
	}
	p.Subs[sub.Name] = sub
	return nil
}

// Sub returns the nested set with the given name.
func (p *ParameterSet) Sub(name string) (*ParameterSet, error) {
	sub, ok := p.Subs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownSub, p.Name, name)
	}
	return sub, nil
}

// SubNames returns nested set names in deterministic order.
func (p *ParameterSet) SubNames() []string {
	names := make([]string, 0, len(p.Subs))
	for name := range p.Subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Copy returns a deep, independent clone of the whole tree. Mutating the
// original after Copy never changes the clone.
func (p *ParameterSet) Copy() *ParameterSet {
	if p == nil {
		return nil
	}
	return deepcopy.Copy(p).(*ParameterSet)
}
