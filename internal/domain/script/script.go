package script

import (
	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

// Script is one editable document of a session. Its internals (the flow
// and how nodes run) belong to the script implementation; the session
// only relies on this contract.
type Script interface {
	types.Subject
	SetTitle(title string)
	// Serialize returns the opaque, JSON-compatible config the script can
	// be rebuilt from.
	Serialize() (map[string]interface{}, error)
	// Nodes returns the nodes of the script's flow in flow order.
	Nodes() []Node
}

// Node is a node instance inside a script's flow
type Node struct {
	Identifier string                 `json:"identifier"`
	Config     map[string]interface{} `json:"config"`
}

// Owner is what a script may ask of the session that holds it
type Owner interface {
	SessionID() string
	HasNodeType(identifier string) bool
}

// Options tune a freshly created script
type Options struct {
	// FlowSize is the initial canvas size; zero leaves it unset.
	FlowSize [2]int
	// CreateDefaultLogs adds the "global" and "errors" logs.
	CreateDefaultLogs bool
}

// DefaultOptions mirrors what an editor does for a new script
func DefaultOptions() Options {
	return Options{CreateDefaultLogs: true}
}

// Factory builds scripts, either new or from persisted config
type Factory interface {
	New(owner Owner, title string, opts Options) (Script, error)
	FromConfig(owner Owner, config map[string]interface{}) (Script, error)
}
