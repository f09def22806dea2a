package nodes

import (
	"errors"
	"sync"
)

// ErrEmptyIdentifier is returned when registering a blank node type
var ErrEmptyIdentifier = errors.New("node type identifier cannot be empty")

// Registry is the flat set of node types available to every script in a
// session. Registering an identifier twice keeps a single entry.
//
// Registration is expected to finish before scripts start using node types;
// reads are safe from any goroutine.
type Registry struct {
	mu    sync.RWMutex
	order []string            // Protected by mu
	index map[string]struct{} // Protected by mu
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]struct{}),
	}
}

// Register adds a node type. It reports whether the identifier was new.
func (r *Registry) Register(identifier string) (bool, error) {
	if identifier == "" {
		return false, ErrEmptyIdentifier
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[identifier]; exists {
		return false, nil
	}
	r.index[identifier] = struct{}{}
	r.order = append(r.order, identifier)
	return true, nil
}

// RegisterAll adds several node types, stopping at the first invalid one.
// It returns how many identifiers were new.
func (r *Registry) RegisterAll(identifiers []string) (int, error) {
	added := 0
	for _, identifier := range identifiers {
		isNew, err := r.Register(identifier)
		if err != nil {
			return added, err
		}
		if isNew {
			added++
		}
	}
	return added, nil
}

// Has reports whether identifier is registered
func (r *Registry) Has(identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.index[identifier]
	return ok
}

// Missing returns the identifiers from the input that are not registered,
// in input order and without repeats
func (r *Registry) Missing(identifiers []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	seen := make(map[string]struct{})
	for _, identifier := range identifiers {
		if _, ok := r.index[identifier]; ok {
			continue
		}
		if _, dup := seen[identifier]; dup {
			continue
		}
		seen[identifier] = struct{}{}
		missing = append(missing, identifier)
	}
	return missing
}

// List returns the identifiers in registration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered node types
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}
