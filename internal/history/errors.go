package history

import "errors"

var (
	// ErrItemTooLarge is returned when a single item exceeds the bounded ceiling.
	ErrItemTooLarge = errors.New("item too large for history storage")

	// ErrQuotaExceeded is returned by a key/value store that ran out of quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrNotFound is returned by a key/value store for an absent key.
	ErrNotFound = errors.New("not found")

	// ErrPickerCancelled is returned when the user dismisses the directory picker.
	ErrPickerCancelled = errors.New("folder selection was cancelled")

	// ErrPermissionDenied is returned when the host refuses directory access.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotWritable is returned when a granted directory fails the write probe.
	ErrNotWritable = errors.New("directory is not writable")

	// ErrSecurity is returned when host security policy blocks directory access.
	ErrSecurity = errors.New("security restrictions prevent file system access")

	// ErrUnsupported is returned when the host lacks a capability.
	ErrUnsupported = errors.New("not supported")

	// ErrAwaitingDecision is returned while a reconnection prompt is unresolved.
	ErrAwaitingDecision = errors.New("folder reconnection decision pending")
)
