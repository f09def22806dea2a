package script

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

// Emitter receives lifecycle notifications
type Emitter interface {
	Post(event types.Event)
}

// Registry is the ordered collection of a session's scripts. Order is
// creation/load order and is the order scripts are saved in.
//
// Titles are unique and non-empty after every operation. Notifications are
// emitted after the registry lock is released, so listeners may read the
// registry.
type Registry struct {
	mu      sync.RWMutex
	scripts []Script // Protected by mu
	owner   Owner
	factory Factory
	emitter Emitter
}

// NewRegistry creates an empty registry. A nil factory means
// DocumentFactory; a nil emitter drops notifications.
func NewRegistry(owner Owner, factory Factory, emitter Emitter) *Registry {
	if factory == nil {
		factory = DocumentFactory{}
	}
	return &Registry{
		owner:   owner,
		factory: factory,
		emitter: emitter,
	}
}

// Create builds a new script and appends it
func (r *Registry) Create(title string, opts Options) (Script, error) {
	r.mu.Lock()
	if err := r.checkTitle(title, nil); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	s, err := r.factory.New(r.owner, title, opts)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("create script %q: %w", title, err)
	}
	r.scripts = append(r.scripts, s)
	r.mu.Unlock()

	r.emit(types.NewEvent(types.EventScriptCreated, s))
	return s, nil
}

// Load rebuilds a script from persisted config and appends it. The config
// is trusted to come from a valid session, but a title that collides with
// a script already present is still refused.
func (r *Registry) Load(config map[string]interface{}) (Script, error) {
	s, err := r.factory.FromConfig(r.owner, config)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if err := r.checkTitle(s.Title(), nil); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.scripts = append(r.scripts, s)
	r.mu.Unlock()

	r.emit(types.NewEvent(types.EventScriptCreated, s))
	return s, nil
}

// Rename changes a script's title. The script itself is excluded from the
// collision check, so renaming to the current title succeeds.
func (r *Registry) Rename(s Script, title string) error {
	r.mu.Lock()
	if r.indexOf(s) < 0 {
		r.mu.Unlock()
		return notFound(s)
	}
	if err := r.checkTitle(title, s); err != nil {
		r.mu.Unlock()
		return err
	}
	old := s.Title()
	s.SetTitle(title)
	r.mu.Unlock()

	r.emit(types.Renamed(s, old))
	return nil
}

// Delete removes a script
func (r *Registry) Delete(s Script) error {
	r.mu.Lock()
	i := r.indexOf(s)
	if i < 0 {
		r.mu.Unlock()
		return notFound(s)
	}
	r.scripts = append(r.scripts[:i:i], r.scripts[i+1:]...)
	r.mu.Unlock()

	r.emit(types.NewEvent(types.EventScriptDeleted, s))
	return nil
}

// Serialize returns every script's config in collection order
func (r *Registry) Serialize() ([]map[string]interface{}, error) {
	scripts := r.List()

	out := make([]map[string]interface{}, len(scripts))
	for i, s := range scripts {
		config, err := s.Serialize()
		if err != nil {
			return nil, fmt.Errorf("serialize script %q: %w", s.Title(), err)
		}
		out[i] = config
	}
	return out, nil
}

// ValidTitle reports whether title could be used for a new script
func (r *Registry) ValidTitle(title string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.checkTitle(title, nil) == nil
}

// List returns the scripts in order
func (r *Registry) List() []Script {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Script, len(r.scripts))
	copy(out, r.scripts)
	return out
}

// Titles returns script titles in order
func (r *Registry) Titles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.scripts))
	for i, s := range r.scripts {
		out[i] = s.Title()
	}
	return out
}

// Len returns the number of scripts
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.scripts)
}

// Find returns the script with the given title
func (r *Registry) Find(title string) (Script, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.scripts {
		if s.Title() == title {
			return s, true
		}
	}
	return nil, false
}

// Get returns the script with the given ID
func (r *Registry) Get(id string) (Script, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.scripts {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

// AllNodes returns every node of every script, in script order
func (r *Registry) AllNodes() []Node {
	var nodes []Node
	for _, s := range r.List() {
		nodes = append(nodes, s.Nodes()...)
	}
	return nodes
}

// checkTitle validates title against every script except self (must hold mu)
func (r *Registry) checkTitle(title string, self Script) error {
	if title == "" {
		return &InvalidTitleError{Title: title, Reason: ReasonEmpty}
	}
	for _, s := range r.scripts {
		if s == self {
			continue
		}
		if s.Title() == title {
			return &InvalidTitleError{Title: title, Reason: ReasonDuplicate}
		}
	}
	return nil
}

// indexOf finds s by identity (must hold mu)
func (r *Registry) indexOf(s Script) int {
	for i, candidate := range r.scripts {
		if candidate == s {
			return i
		}
	}
	return -1
}

func (r *Registry) emit(event types.Event) {
	if r.emitter != nil {
		r.emitter.Post(event)
	}
}

func notFound(s Script) error {
	if s == nil {
		return &NotFoundError{}
	}
	return &NotFoundError{ID: s.ID(), Title: s.Title()}
}
