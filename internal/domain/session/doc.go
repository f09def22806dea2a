// Package session composes the node type, script and addon registries into
// one coordinating object.
//
// Construction order is fixed: node types, scripts, the event dispatcher,
// then addons, and finally the optional initial project. Loading a project
// restores scripts before any addon state, and addons cannot be resolved
// until their restore has finished. Save produces exactly what Load
// consumes.
package session
