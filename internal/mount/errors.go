package mount

import "errors"

// Error kinds reported by the mount pipeline. Callers test for them with
// errors.Is; the wrapped chain keeps the underlying cause.
var (
	// ErrMountOption marks a missing, empty, or malformed mount option
	// value.
	ErrMountOption = errors.New("invalid mount option")

	// ErrNamespace marks a failed mount namespace operation.
	ErrNamespace = errors.New("mount namespace operation failed")

	// ErrApplyFlags marks a mount or unmount the pipeline could not apply.
	ErrApplyFlags = errors.New("mount flags could not be applied")
)
