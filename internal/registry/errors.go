package registry

import "errors"

// Registry errors surfaced at the module boundary.
var (
	// ErrNameConflict is returned when a name is re-registered with
	// different source and Replace was not requested.
	ErrNameConflict = errors.New("name conflict")

	// ErrMissingDependency is returned when an agent references an unknown
	// tool.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrToolInUse is returned when removing a tool that agents still
	// reference.
	ErrToolInUse = errors.New("tool in use")

	// ErrNotFound is returned when a named component does not exist.
	ErrNotFound = errors.New("component not found")

	// ErrInvalidName is returned when a component name is not lowercase
	// snake_case.
	ErrInvalidName = errors.New("invalid component name")

	// ErrEmptySource is returned when registration carries no source text.
	ErrEmptySource = errors.New("source cannot be empty")

	// ErrBackupNotFound is returned when restoring an unknown backup.
	ErrBackupNotFound = errors.New("backup not found")
)
