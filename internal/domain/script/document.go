package script

import (
	"sync"

	"github.com/GriffinCanCode/nodeflow/internal/shared/id"
	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

// Config keys of a document
const (
	KeyTitle      = "title"
	KeyFlow       = "flow"
	KeyNodes      = "nodes"
	KeySize       = "size"
	KeyLogs       = "logs"
	KeyIdentifier = "identifier"
)

// DefaultLogs are created for a new script when requested
var DefaultLogs = []string{"global", "errors"}

// Document is the default Script: a titled flow of nodes. Keys of the
// persisted config it does not understand are carried through unchanged.
type Document struct {
	mu     sync.RWMutex
	id     string
	owner  Owner
	title  string                 // Protected by mu
	config map[string]interface{} // Protected by mu
	nodes  []Node                 // Protected by mu
}

// DocumentFactory builds Documents
type DocumentFactory struct{}

// New creates an empty document
func (DocumentFactory) New(owner Owner, title string, opts Options) (Script, error) {
	flow := map[string]interface{}{
		KeyNodes: []interface{}{},
	}
	if opts.FlowSize != [2]int{} {
		flow[KeySize] = []interface{}{float64(opts.FlowSize[0]), float64(opts.FlowSize[1])}
	}

	config := map[string]interface{}{
		KeyTitle: title,
		KeyFlow:  flow,
	}
	if opts.CreateDefaultLogs {
		logs := make([]interface{}, len(DefaultLogs))
		for i, name := range DefaultLogs {
			logs[i] = name
		}
		config[KeyLogs] = logs
	}

	return &Document{
		id:     id.NewScriptID().String(),
		owner:  owner,
		title:  title,
		config: config,
	}, nil
}

// FromConfig rebuilds a document from its persisted config. Every node
// type the flow references must be registered with the owner.
func (DocumentFactory) FromConfig(owner Owner, config map[string]interface{}) (Script, error) {
	title, ok := config[KeyTitle].(string)
	if !ok {
		return nil, &MalformedConfigError{Field: KeyTitle, Reason: "must be a string"}
	}

	var nodes []Node
	if rawFlow, present := config[KeyFlow]; present {
		flow, ok := rawFlow.(map[string]interface{})
		if !ok {
			return nil, &MalformedConfigError{Field: KeyFlow, Reason: "must be an object"}
		}
		parsed, err := parseNodes(flow[KeyNodes])
		if err != nil {
			return nil, err
		}
		nodes = parsed
	}

	if owner != nil {
		identifiers := make([]string, len(nodes))
		for i, n := range nodes {
			identifiers[i] = n.Identifier
		}
		if missing := missingTypes(owner, identifiers); len(missing) > 0 {
			return nil, &MissingNodeTypesError{Identifiers: missing}
		}
	}

	return &Document{
		id:     id.NewScriptID().String(),
		owner:  owner,
		title:  title,
		config: types.CloneMap(config),
		nodes:  nodes,
	}, nil
}

func parseNodes(raw interface{}) ([]Node, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, &MalformedConfigError{Field: "flow.nodes", Reason: "must be an array"}
	}

	nodes := make([]Node, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, &MalformedConfigError{Field: "flow.nodes", Reason: "entries must be objects"}
		}
		identifier, _ := m[KeyIdentifier].(string)
		if identifier == "" {
			return nil, &MalformedConfigError{Field: "flow.nodes.identifier", Reason: "must be a non-empty string"}
		}
		nodes = append(nodes, Node{Identifier: identifier, Config: types.CloneMap(m)})
	}
	return nodes, nil
}

func missingTypes(owner Owner, identifiers []string) []string {
	var missing []string
	seen := make(map[string]struct{})
	for _, identifier := range identifiers {
		if _, dup := seen[identifier]; dup {
			continue
		}
		seen[identifier] = struct{}{}
		if !owner.HasNodeType(identifier) {
			missing = append(missing, identifier)
		}
	}
	return missing
}

func (d *Document) ID() string { return d.id }

func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.title
}

// SetTitle changes the title without any uniqueness check; go through the
// session to rename a script.
func (d *Document) SetTitle(title string) {
	d.mu.Lock()
	d.title = title
	d.mu.Unlock()
}

// AddNode appends a node of a registered type to the flow
func (d *Document) AddNode(identifier string, config map[string]interface{}) (Node, error) {
	if d.owner != nil && !d.owner.HasNodeType(identifier) {
		return Node{}, &MissingNodeTypesError{Identifiers: []string{identifier}}
	}

	cfg := types.CloneMap(config)
	if cfg == nil {
		cfg = map[string]interface{}{}
	}
	cfg[KeyIdentifier] = identifier
	n := Node{Identifier: identifier, Config: cfg}

	d.mu.Lock()
	d.nodes = append(d.nodes, n)
	d.mu.Unlock()
	return Node{Identifier: identifier, Config: types.CloneMap(cfg)}, nil
}

// Nodes returns copies of the flow's nodes
func (d *Document) Nodes() []Node {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Node, len(d.nodes))
	for i, n := range d.nodes {
		out[i] = Node{Identifier: n.Identifier, Config: types.CloneMap(n.Config)}
	}
	return out
}

// Serialize writes the current title and nodes over the preserved config
func (d *Document) Serialize() (map[string]interface{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	config := types.CloneMap(d.config)
	if config == nil {
		config = map[string]interface{}{}
	}
	config[KeyTitle] = d.title

	flow, _ := config[KeyFlow].(map[string]interface{})
	if flow == nil {
		flow = map[string]interface{}{}
	}
	nodes := make([]interface{}, len(d.nodes))
	for i, n := range d.nodes {
		nodes[i] = types.CloneMap(n.Config)
	}
	flow[KeyNodes] = nodes
	config[KeyFlow] = flow

	return config, nil
}
