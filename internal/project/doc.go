// Package project defines the persisted form of a session and the stores
// that keep it.
//
// A project is a mapping with two sections: "scripts", an ordered list of
// script configurations, and "addons", addon name to saved state. Projects
// can be encoded as JSON, YAML or TOML. JSON written by the stores is
// canonical (RFC 8785), so saving the same session twice yields the same
// bytes and digest.
package project
