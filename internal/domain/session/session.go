package session

import (
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodeflow/internal/bridge"
	"github.com/GriffinCanCode/nodeflow/internal/domain/addon"
	"github.com/GriffinCanCode/nodeflow/internal/domain/nodes"
	"github.com/GriffinCanCode/nodeflow/internal/domain/script"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nodeflow/internal/shared/id"
	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

var _ script.Owner = (*Session)(nil)

// Session is the root aggregate of one project: its node types, its
// ordered scripts and its addons.
//
// Mutations are expected from a single owning goroutine. In threaded mode
// lifecycle events go through a Bridge and are delivered wherever the
// presentation side runs it; otherwise they are delivered in-call.
type Session struct {
	id        string
	createdAt time.Time
	threaded  bool
	loaded    atomic.Bool

	nodes   *nodes.Registry
	scripts *script.Registry
	addons  *addon.Registry

	dispatcher bridge.Dispatcher
	bridge     *bridge.Bridge

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// Option configures a Session
type Option func(*options)

type options struct {
	threaded   bool
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	factory    script.Factory
	project    map[string]interface{}
	addons     []addon.Addon
	dispatcher bridge.Dispatcher
}

// WithThreaded routes lifecycle events through a Bridge
func WithThreaded(threaded bool) Option {
	return func(o *options) { o.threaded = threaded }
}

// WithLogger sets the session logger
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithFactory replaces the script implementation
func WithFactory(factory script.Factory) Option {
	return func(o *options) { o.factory = factory }
}

// WithProject loads a decoded project once construction is complete
func WithProject(raw map[string]interface{}) Option {
	return func(o *options) { o.project = raw }
}

// WithAddons registers addons before the initial project load
func WithAddons(addons ...addon.Addon) Option {
	return func(o *options) { o.addons = append(o.addons, addons...) }
}

// WithDispatcher supplies the event dispatcher instead of letting the
// session create one. A *bridge.Bridge supplied here is exposed by Bridge.
func WithDispatcher(dispatcher bridge.Dispatcher) Option {
	return func(o *options) { o.dispatcher = dispatcher }
}

// New builds a session. Registries are created first, then the event
// dispatcher, then the addons; the initial project, if any, is loaded last.
// Per-script and per-addon load failures are logged as warnings; a
// malformed project fails construction.
func New(opts ...Option) (*Session, error) {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		id:        id.NewSessionID().String(),
		createdAt: time.Now(),
		threaded:  o.threaded,
		metrics:   o.metrics,
	}
	s.logger = o.logger.Named("session").With(zap.String("session_id", s.id))

	s.nodes = nodes.NewRegistry()
	s.scripts = script.NewRegistry(s, o.factory, emitter{s})

	switch d := o.dispatcher.(type) {
	case nil:
		if o.threaded {
			s.bridge = bridge.New(bridge.WithLogger(s.logger), bridge.WithMetrics(o.metrics))
			s.dispatcher = s.bridge
		} else {
			s.dispatcher = bridge.NewDirect(s.logger)
		}
	case *bridge.Bridge:
		s.bridge = d
		s.dispatcher = d
	default:
		s.dispatcher = d
	}

	s.addons = addon.NewRegistry()
	for _, a := range o.addons {
		if err := s.RegisterAddon(a); err != nil {
			return nil, err
		}
	}

	if o.project != nil {
		report, err := s.Load(o.project)
		if err != nil {
			return nil, err
		}
		if err := report.Err(); err != nil {
			s.logger.Warn("Initial project loaded with errors", zap.Error(err))
		}
	}

	s.loaded.Store(true)
	s.logger.Info("Session ready",
		zap.Bool("threaded", s.threaded),
		zap.Int("scripts", s.scripts.Len()),
		zap.Int("addons", s.addons.Len()))
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// SessionID lets scripts identify their owner
func (s *Session) SessionID() string { return s.id }

// Threaded reports whether events go through a Bridge
func (s *Session) Threaded() bool { return s.threaded }

// Loaded reports whether construction, including the initial load, is done
func (s *Session) Loaded() bool { return s.loaded.Load() }

// Bridge returns the event bridge, or nil when events are delivered in-call
func (s *Session) Bridge() *bridge.Bridge { return s.bridge }

// Subscribe registers a listener for script lifecycle events
func (s *Session) Subscribe(listener types.Listener) func() {
	return s.dispatcher.Subscribe(listener)
}

// Close stops the bridge after delivering what is queued. It does not run
// the bridge; a consumer must be draining it for queued events to arrive.
// Events posted after Close are discarded with a warning; this is the only
// point at which the session drops events.
func (s *Session) Close() {
	if s.bridge != nil {
		s.bridge.Close()
	}
}

// RegisterNode makes a node type available to every script. Registering
// the same identifier again is a no-op.
func (s *Session) RegisterNode(identifier string) error {
	added, err := s.nodes.Register(identifier)
	if err != nil {
		return err
	}
	if added {
		s.metrics.SetNodeTypes(s.nodes.Len())
	}
	return nil
}

// RegisterNodes registers several node types
func (s *Session) RegisterNodes(identifiers ...string) error {
	added, err := s.nodes.RegisterAll(identifiers)
	if added > 0 {
		s.metrics.SetNodeTypes(s.nodes.Len())
	}
	return err
}

// NodeTypes returns registered node types in registration order
func (s *Session) NodeTypes() []string { return s.nodes.List() }

// HasNodeType reports whether identifier is registered
func (s *Session) HasNodeType(identifier string) bool { return s.nodes.Has(identifier) }

// RegisterAddon adds an addon. Duplicate names are rejected.
func (s *Session) RegisterAddon(a addon.Addon) error {
	if err := s.addons.Register(a); err != nil {
		return err
	}
	s.metrics.SetAddons(s.addons.Len())
	s.logger.Debug("Addon registered",
		zap.String("addon", a.Name()),
		zap.String("version", a.Version()))
	return nil
}

// Addon is the only way node code reaches an addon. It fails with an
// AccessBlockedError while a project load is restoring addon state.
func (s *Session) Addon(name string) (addon.Addon, error) {
	a, err := s.addons.Resolve(name)
	if err != nil {
		var blocked *addon.AccessBlockedError
		if errors.As(err, &blocked) {
			s.metrics.AddonBlocked()
			s.logger.Debug("Addon access blocked during restore", zap.String("addon", name))
		}
		return nil, err
	}
	return a, nil
}

// Addons returns metadata for every registered addon
func (s *Session) Addons() []addon.Descriptor { return s.addons.Descriptors() }

// CreateScript appends a new script
func (s *Session) CreateScript(title string, opts script.Options) (script.Script, error) {
	sc, err := s.scripts.Create(title, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Script created", zap.String("script", title), zap.String("script_id", sc.ID()))
	return sc, nil
}

// RenameScript changes a script's title, keeping titles unique
func (s *Session) RenameScript(sc script.Script, title string) error {
	return s.scripts.Rename(sc, title)
}

// DeleteScript removes a script
func (s *Session) DeleteScript(sc script.Script) error {
	return s.scripts.Delete(sc)
}

// ValidScriptTitle reports whether title is free and non-empty
func (s *Session) ValidScriptTitle(title string) bool {
	return s.scripts.ValidTitle(title)
}

// Scripts returns scripts in creation and load order
func (s *Session) Scripts() []script.Script { return s.scripts.List() }

// Script looks a script up by title
func (s *Session) Script(title string) (script.Script, bool) { return s.scripts.Find(title) }

// ScriptByID looks a script up by ID
func (s *Session) ScriptByID(scriptID string) (script.Script, bool) { return s.scripts.Get(scriptID) }

// AllNodes returns every node of every script, in script order
func (s *Session) AllNodes() []script.Node { return s.scripts.AllNodes() }

// Stats summarizes the session
type Stats struct {
	ID        string    `json:"id"`
	Scripts   int       `json:"scripts"`
	NodeTypes int       `json:"node_types"`
	Nodes     int       `json:"nodes"`
	Addons    int       `json:"addons"`
	Threaded  bool      `json:"threaded"`
	Loaded    bool      `json:"loaded"`
	Pending   int       `json:"pending_events"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats returns current counts
func (s *Session) Stats() Stats {
	st := Stats{
		ID:        s.id,
		Scripts:   s.scripts.Len(),
		NodeTypes: s.nodes.Len(),
		Nodes:     len(s.scripts.AllNodes()),
		Addons:    s.addons.Len(),
		Threaded:  s.threaded,
		Loaded:    s.Loaded(),
		CreatedAt: s.createdAt,
	}
	if s.bridge != nil {
		st.Pending = s.bridge.Pending()
	}
	return st
}

// emitter is handed to the script registry. It records metrics and passes
// events on to the dispatcher, which is created after the registry.
type emitter struct {
	s *Session
}

func (e emitter) Post(event types.Event) {
	e.s.metrics.ScriptEvent(string(event.Kind))
	e.s.metrics.SetScripts(e.s.scripts.Len())
	if e.s.dispatcher != nil {
		e.s.dispatcher.Post(event)
	}
}
