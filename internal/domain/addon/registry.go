package addon

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
	"go.uber.org/multierr"

	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

// Registry holds the addons of one session and guards the restore window.
//
// While the window is open (between BeginRestore and EndRestore) Resolve
// fails for every caller; only Restore may reach an addon. Snapshot is also
// refused so a half-restored state is never persisted.
type Registry struct {
	mu        sync.RWMutex
	addons    map[string]Addon // Protected by mu
	order     []string         // Protected by mu
	restoring bool             // Protected by mu
}

// Entry pairs an addon name with its state
type Entry struct {
	Name  string
	State map[string]interface{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		addons: make(map[string]Addon),
	}
}

// Register adds an addon. A name that is already taken is rejected and the
// registry is left unchanged.
func (r *Registry) Register(a Addon) error {
	if a == nil || a.Name() == "" {
		return ErrEmptyName
	}
	name := a.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.addons[name]; exists {
		return &DuplicateError{Name: name}
	}
	r.addons[name] = a
	r.order = append(r.order, name)
	return nil
}

// Resolve returns the addon registered under name
func (r *Registry) Resolve(name string) (Addon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.restoring {
		return nil, &AccessBlockedError{Name: name}
	}
	a, ok := r.addons[name]
	if !ok {
		return nil, &UnknownError{Name: name, Suggestion: r.suggest(name)}
	}
	return a, nil
}

// BeginRestore opens the access-blocked window
func (r *Registry) BeginRestore() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.restoring {
		return ErrRestoreInProgress
	}
	r.restoring = true
	return nil
}

// EndRestore closes the access-blocked window. Closing a window that is not
// open is a no-op.
func (r *Registry) EndRestore() {
	r.mu.Lock()
	r.restoring = false
	r.mu.Unlock()
}

// Restoring reports whether the window is open
func (r *Registry) Restoring() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.restoring
}

// Restore hands state to the named addon. It may only run inside the
// restore window. A nil state is delivered as an empty mapping, and a panic
// in SetState is converted into an error.
func (r *Registry) Restore(name string, state map[string]interface{}) (err error) {
	r.mu.RLock()
	restoring := r.restoring
	a, ok := r.addons[name]
	var suggestion string
	if !ok {
		suggestion = r.suggest(name)
	}
	r.mu.RUnlock()

	if !restoring {
		return ErrNotRestoring
	}
	if !ok {
		return &RestoreError{Name: name, Err: &UnknownError{Name: name, Suggestion: suggestion}}
	}

	if state == nil {
		state = map[string]interface{}{}
	}

	defer func() {
		if p := recover(); p != nil {
			err = &RestoreError{Name: name, Err: fmt.Errorf("panic in SetState: %v", p)}
		}
	}()

	if setErr := a.SetState(types.CloneMap(state)); setErr != nil {
		return &RestoreError{Name: name, Err: setErr}
	}
	return nil
}

// RestoreReport summarizes a batch restore
type RestoreReport struct {
	Restored []string
	Failed   []*RestoreError
}

// OK reports whether every addon restored cleanly
func (rep *RestoreReport) OK() bool {
	return rep == nil || len(rep.Failed) == 0
}

// Err combines all failures into one error, or nil
func (rep *RestoreReport) Err() error {
	if rep == nil {
		return nil
	}
	var err error
	for _, f := range rep.Failed {
		err = multierr.Append(err, f)
	}
	return err
}

// RestoreAll opens the window, restores every entry independently and
// closes the window again. Entries are processed in name order. One failing
// addon never prevents the others from being restored.
func (r *Registry) RestoreAll(states map[string]map[string]interface{}) (*RestoreReport, error) {
	if err := r.BeginRestore(); err != nil {
		return nil, err
	}
	defer r.EndRestore()

	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &RestoreReport{}
	for _, name := range names {
		if err := r.Restore(name, states[name]); err != nil {
			var re *RestoreError
			if !errors.As(err, &re) {
				re = &RestoreError{Name: name, Err: err}
			}
			report.Failed = append(report.Failed, re)
			continue
		}
		report.Restored = append(report.Restored, name)
	}
	return report, nil
}

// Snapshot returns each addon's state in registration order. It only reads
// from the addons and fails while the restore window is open.
func (r *Registry) Snapshot() ([]Entry, error) {
	r.mu.RLock()
	if r.restoring {
		r.mu.RUnlock()
		return nil, ErrRestoreInProgress
	}
	addons := make([]Addon, len(r.order))
	for i, name := range r.order {
		addons[i] = r.addons[name]
	}
	r.mu.RUnlock()

	entries := make([]Entry, len(addons))
	for i, a := range addons {
		state := types.CloneMap(a.GetState())
		if state == nil {
			state = map[string]interface{}{}
		}
		entries[i] = Entry{Name: a.Name(), State: state}
	}
	return entries, nil
}

// States is Snapshot keyed by name, the shape used in persisted projects
func (r *Registry) States() (map[string]map[string]interface{}, error) {
	entries, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]interface{}, len(entries))
	for _, e := range entries {
		out[e.Name] = e.State
	}
	return out, nil
}

// Names returns addon names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptors returns metadata for every addon in registration order
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, len(r.order))
	for i, name := range r.order {
		out[i] = Describe(r.addons[name])
	}
	return out
}

// Len returns the number of registered addons
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// suggest finds the closest registered name (must hold mu)
func (r *Registry) suggest(name string) string {
	best := ""
	bestDist := len(name)/3 + 2
	for _, candidate := range r.order {
		d := levenshtein.ComputeDistance(name, candidate)
		if d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
