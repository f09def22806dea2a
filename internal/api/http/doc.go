// Package http exposes a session over a JSON API for the presentation
// layer: scripts, node types, addons and project persistence.
package http
