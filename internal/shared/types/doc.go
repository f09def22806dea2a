// Package types provides shared data structures for the session backend.
//
// This package defines the values that cross package boundaries, most
// importantly the lifecycle notifications produced by a session and carried
// to the presentation layer.
//
// Core Types:
//   - Event: Ordered lifecycle notification
//   - EventKind: created, renamed, deleted
//   - Subject: The script an event refers to
//   - CloneMap: Deep copy of JSON-compatible state
//
// Example Usage:
//
//	event := types.NewEvent(types.EventScriptCreated, script)
//	dispatcher.Post(event)
package types
