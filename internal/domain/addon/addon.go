package addon

// Addon is a named, session-scoped extension that persists its own state.
//
// GetState returns a JSON-compatible snapshot. SetState receives a mapping
// previously produced by GetState, possibly from an older or newer version
// of the addon: it should read the keys it recognizes and ignore the rest.
// Addons must not look up other addons from SetState; the session is still
// restoring at that point and such lookups fail.
type Addon interface {
	Name() string
	Version() string
	Description() string
	GetState() map[string]interface{}
	SetState(state map[string]interface{}) error
}

// Info carries addon metadata. Embed it to satisfy the metadata half of
// the Addon interface.
type Info struct {
	name        string
	version     string
	description string
}

// NewInfo creates addon metadata
func NewInfo(name, version, description string) Info {
	return Info{name: name, version: version, description: description}
}

func (i Info) Name() string        { return i.name }
func (i Info) Version() string     { return i.version }
func (i Info) Description() string { return i.description }

// Descriptor is the serializable metadata of a registered addon
type Descriptor struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Describe returns the metadata of a registered addon
func Describe(a Addon) Descriptor {
	return Descriptor{
		Name:        a.Name(),
		Version:     a.Version(),
		Description: a.Description(),
	}
}
