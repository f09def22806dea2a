package project

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

// Top-level keys of a persisted project
const (
	KeyScripts = "scripts"
	KeyAddons  = "addons"
)

// ErrMalformed matches every MalformedError
var ErrMalformed = errors.New("malformed project")

// MalformedError reports a project whose top-level structure is wrong
type MalformedError struct {
	Section string
	Reason  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed project: %s %s", e.Section, e.Reason)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// Project is the persisted form of a session. Script order is significant;
// addon order is not.
type Project struct {
	Scripts []map[string]interface{}          `json:"scripts" yaml:"scripts" toml:"scripts"`
	Addons  map[string]map[string]interface{} `json:"addons" yaml:"addons" toml:"addons"`
}

// New returns an empty project
func New() *Project {
	return &Project{
		Scripts: []map[string]interface{}{},
		Addons:  map[string]map[string]interface{}{},
	}
}

// Parse checks the top-level shape of a decoded project and returns a deep
// copy of it. It looks at the whole payload before returning, so a caller
// can reject a malformed project without having touched any state.
func Parse(raw map[string]interface{}) (*Project, error) {
	if raw == nil {
		return nil, &MalformedError{Section: "project", Reason: "must be an object"}
	}

	rawScripts, ok := raw[KeyScripts]
	if !ok {
		return nil, &MalformedError{Section: KeyScripts, Reason: "section is missing"}
	}

	p := New()
	switch list := rawScripts.(type) {
	case []interface{}:
		for i, item := range list {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, &MalformedError{Section: fmt.Sprintf("%s[%d]", KeyScripts, i), Reason: "must be an object"}
			}
			p.Scripts = append(p.Scripts, types.CloneMap(m))
		}
	case []map[string]interface{}:
		for i, m := range list {
			if m == nil {
				return nil, &MalformedError{Section: fmt.Sprintf("%s[%d]", KeyScripts, i), Reason: "must be an object"}
			}
			p.Scripts = append(p.Scripts, types.CloneMap(m))
		}
	default:
		return nil, &MalformedError{Section: KeyScripts, Reason: "must be an array"}
	}

	rawAddons, ok := raw[KeyAddons]
	if !ok || rawAddons == nil {
		return p, nil
	}
	switch addons := rawAddons.(type) {
	case map[string]interface{}:
		for name, state := range addons {
			switch s := state.(type) {
			case nil:
				p.Addons[name] = map[string]interface{}{}
			case map[string]interface{}:
				p.Addons[name] = types.CloneMap(s)
			default:
				return nil, &MalformedError{Section: fmt.Sprintf("%s.%s", KeyAddons, name), Reason: "must be an object"}
			}
		}
	case map[string]map[string]interface{}:
		for name, state := range addons {
			p.Addons[name] = types.CloneMap(state)
		}
	default:
		return nil, &MalformedError{Section: KeyAddons, Reason: "must be an object"}
	}
	return p, nil
}

// ToMap returns the project as a generic mapping
func (p *Project) ToMap() map[string]interface{} {
	scripts := make([]interface{}, len(p.Scripts))
	for i, s := range p.Scripts {
		scripts[i] = types.CloneMap(s)
	}
	addons := make(map[string]interface{}, len(p.Addons))
	for name, state := range p.Addons {
		addons[name] = types.CloneMap(state)
	}
	return map[string]interface{}{
		KeyScripts: scripts,
		KeyAddons:  addons,
	}
}

// normalized never has nil sections, so encoders emit [] and {} rather
// than null
func (p *Project) normalized() *Project {
	out := &Project{Scripts: p.Scripts, Addons: p.Addons}
	if out.Scripts == nil {
		out.Scripts = []map[string]interface{}{}
	}
	if out.Addons == nil {
		out.Addons = map[string]map[string]interface{}{}
	}
	return out
}
