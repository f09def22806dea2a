package types

import (
	"fmt"
	"time"
)

// EventKind classifies session lifecycle notifications
type EventKind string

const (
	EventScriptCreated EventKind = "script_created"
	EventScriptRenamed EventKind = "script_renamed"
	EventScriptDeleted EventKind = "script_deleted"
)

// Subject is the part of a script an event needs to describe it
type Subject interface {
	ID() string
	Title() string
}

// Event is a lifecycle notification emitted by a session.
// Seq is assigned by the dispatcher that delivers the event.
type Event struct {
	Seq      uint64    `json:"seq"`
	Kind     EventKind `json:"kind"`
	ScriptID string    `json:"script_id"`
	Title    string    `json:"title"`
	OldTitle string    `json:"old_title,omitempty"`
	Time     time.Time `json:"time"`

	// Script is the affected script handle; it is not serialized.
	Script Subject `json:"-"`
}

// NewEvent builds an event for the given script, capturing its current title
func NewEvent(kind EventKind, script Subject) Event {
	e := Event{
		Kind:   kind,
		Time:   time.Now(),
		Script: script,
	}
	if script != nil {
		e.ScriptID = script.ID()
		e.Title = script.Title()
	}
	return e
}

// Renamed builds a rename event that remembers the previous title
func Renamed(script Subject, oldTitle string) Event {
	e := NewEvent(EventScriptRenamed, script)
	e.OldTitle = oldTitle
	return e
}

func (e Event) String() string {
	if e.Kind == EventScriptRenamed {
		return fmt.Sprintf("#%d %s %q -> %q", e.Seq, e.Kind, e.OldTitle, e.Title)
	}
	return fmt.Sprintf("#%d %s %q", e.Seq, e.Kind, e.Title)
}

// Listener receives delivered events
type Listener func(Event)
