// Package state implements the typed key/value store shared by every refinement stage.
//
// A Store wraps a domain.State and validates each write against a schema table.
// Writes are stamped with a per-session logical clock so later readers can tell
// which of two keys was written last.
package state
