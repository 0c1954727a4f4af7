// Package component is a small typed registry that lets fixture code and the
// system under test find each other's collaborators by role.
package component

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// DefaultHint names the implementation registered when no hint is given.
const DefaultHint = "default"

var (
	ErrComponentNotFound  = errors.New("component not found")
	ErrDuplicateComponent = errors.New("component already registered")
)

// Descriptor identifies a component by role type and hint.
type Descriptor struct {
	Role reflect.Type
	Hint string
}

// DescriptorFor returns the descriptor of role T with the given hint.
func DescriptorFor[T any](hint string) Descriptor {
	if hint == "" {
		hint = DefaultHint
	}
	return Descriptor{Role: reflect.TypeFor[T](), Hint: hint}
}

func (d Descriptor) String() string {
	if d.Role == nil {
		return "<nil>/" + d.Hint
	}
	return d.Role.String() + "/" + d.Hint
}

// Manager holds component instances keyed by descriptor.
type Manager struct {
	mu         sync.RWMutex
	components map[Descriptor]any
	order      []Descriptor
}

// NewManager creates an empty component manager.
func NewManager() *Manager {
	return &Manager{components: make(map[Descriptor]any)}
}

// RegisterComponent stores instance under d. The instance must satisfy the
// role and the descriptor must not already be taken.
func (m *Manager) RegisterComponent(d Descriptor, instance any) error {
	if d.Role == nil {
		return fmt.Errorf("component descriptor has no role")
	}
	if d.Hint == "" {
		d.Hint = DefaultHint
	}
	if instance == nil {
		return fmt.Errorf("register %s: instance is nil", d)
	}

	it := reflect.TypeOf(instance)
	if d.Role.Kind() == reflect.Interface {
		if !it.Implements(d.Role) {
			return fmt.Errorf("register %s: %s does not implement the role", d, it)
		}
	} else if !it.AssignableTo(d.Role) {
		return fmt.Errorf("register %s: %s is not assignable to the role", d, it)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.components[d]; exists {
		return fmt.Errorf("register %s: %w", d, ErrDuplicateComponent)
	}
	m.components[d] = instance
	m.order = append(m.order, d)
	return nil
}

// Lookup returns the instance registered under d.
func (m *Manager) Lookup(d Descriptor) (any, error) {
	if d.Hint == "" {
		d.Hint = DefaultHint
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	instance, ok := m.components[d]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", d, ErrComponentNotFound)
	}
	return instance, nil
}

// Has reports whether d is registered.
func (m *Manager) Has(d Descriptor) bool {
	_, err := m.Lookup(d)
	return err == nil
}

// Descriptors returns registered descriptors in registration order.
func (m *Manager) Descriptors() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Descriptor(nil), m.order...)
}

// Register stores instance as the default implementation of role T.
func Register[T any](m *Manager, instance T) error {
	return m.RegisterComponent(DescriptorFor[T](""), instance)
}

// Get returns the default implementation of role T.
func Get[T any](m *Manager) (T, error) {
	return GetHint[T](m, "")
}

// GetHint returns the implementation of role T registered under hint.
func GetHint[T any](m *Manager, hint string) (T, error) {
	var zero T
	instance, err := m.Lookup(DescriptorFor[T](hint))
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("lookup %s: stored %T", DescriptorFor[T](hint), instance)
	}
	return typed, nil
}
