// Package addon defines session-scoped extensions and the registry that
// owns them.
//
// An addon is registered once per session, before any project is loaded.
// During a project load its persisted state is restored only after every
// script has been rebuilt, inside a restore window during which lookups by
// name fail with AccessBlockedError. Registration conflicts are rejected:
// a second addon with the same name returns DuplicateError.
//
// Example Usage:
//
//	reg := addon.NewRegistry()
//	_ = reg.Register(myAddon)
//	report, err := reg.RestoreAll(project.Addons)
//	states, err := reg.States()
package addon
