package variables

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/nodeflow/internal/domain/addon"
	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

// Addon metadata
const (
	Name    = "variables"
	Version = "1.0.0"

	stateKey = "variables"
)

var (
	// ErrEmptyName is returned when setting a variable without a name
	ErrEmptyName = errors.New("variable name cannot be empty")
	// ErrNotSerializable is returned for values that cannot be persisted
	ErrNotSerializable = errors.New("variable value is not JSON-compatible")
)

var _ addon.Addon = (*Variables)(nil)

// Watcher is called after a variable changes. Deleted variables are
// reported with a nil value and ok false.
type Watcher func(name string, value interface{}, ok bool)

// Variables holds named values shared by every script of a session
type Variables struct {
	addon.Info

	mu       sync.RWMutex
	values   map[string]interface{} // Protected by mu
	watchers map[string]map[int]Watcher
	nextID   int
}

// New creates an empty variables addon
func New() *Variables {
	return &Variables{
		Info:     addon.NewInfo(Name, Version, "session-level named values shared by all scripts"),
		values:   make(map[string]interface{}),
		watchers: make(map[string]map[int]Watcher),
	}
}

// Set creates or replaces a variable. The value must be JSON-compatible.
func (v *Variables) Set(name string, value interface{}) error {
	if name == "" {
		return ErrEmptyName
	}
	if _, err := sonic.ConfigStd.Marshal(value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotSerializable, name, err)
	}

	value = types.CloneValue(value)
	v.mu.Lock()
	v.values[name] = value
	watchers := v.watchersOf(name)
	v.mu.Unlock()

	for _, w := range watchers {
		w(name, types.CloneValue(value), true)
	}
	return nil
}

// Get returns a copy of a variable's value
func (v *Variables) Get(name string) (interface{}, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	value, ok := v.values[name]
	return types.CloneValue(value), ok
}

// Delete removes a variable and reports whether it existed
func (v *Variables) Delete(name string) bool {
	v.mu.Lock()
	_, ok := v.values[name]
	delete(v.values, name)
	watchers := v.watchersOf(name)
	v.mu.Unlock()

	if ok {
		for _, w := range watchers {
			w(name, nil, false)
		}
	}
	return ok
}

// Names returns variable names in sorted order
func (v *Variables) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	names := make([]string, 0, len(v.values))
	for name := range v.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Watch registers w for changes to name and returns a function that
// removes it
func (v *Variables) Watch(name string, w Watcher) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.nextID++
	watchID := v.nextID
	if v.watchers[name] == nil {
		v.watchers[name] = make(map[int]Watcher)
	}
	v.watchers[name][watchID] = w

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.watchers[name], watchID)
			if len(v.watchers[name]) == 0 {
				delete(v.watchers, name)
			}
		})
	}
}

// watchersOf copies the watchers of name in registration order (must hold mu)
func (v *Variables) watchersOf(name string) []Watcher {
	ids := make([]int, 0, len(v.watchers[name]))
	for watchID := range v.watchers[name] {
		ids = append(ids, watchID)
	}
	sort.Ints(ids)

	out := make([]Watcher, len(ids))
	for i, watchID := range ids {
		out[i] = v.watchers[name][watchID]
	}
	return out
}

// GetState returns {"variables": {name: value}}
func (v *Variables) GetState() map[string]interface{} {
	v.mu.RLock()
	defer v.mu.RUnlock()

	values := make(map[string]interface{}, len(v.values))
	for name, value := range v.values {
		values[name] = types.CloneValue(value)
	}
	return map[string]interface{}{stateKey: values}
}

// SetState replaces all variables with the saved ones. Unknown keys and a
// missing or malformed "variables" entry are ignored. Watchers are not
// called.
func (v *Variables) SetState(state map[string]interface{}) error {
	saved, _ := state[stateKey].(map[string]interface{})

	values := make(map[string]interface{}, len(saved))
	for name, value := range saved {
		if name == "" {
			continue
		}
		values[name] = types.CloneValue(value)
	}

	v.mu.Lock()
	v.values = values
	v.mu.Unlock()
	return nil
}
