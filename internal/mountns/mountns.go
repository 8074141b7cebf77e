// Package mountns provides primitives for Linux mount namespaces. Namespace
// membership is a property of the OS thread, not the process: callers must
// pin their goroutine with runtime.LockOSThread before opening, unsharing,
// or joining namespaces, and keep it pinned until the original namespace has
// been rejoined.
package mountns

import "errors"

// ErrNotSupported is reported when mount namespace isolation is not
// available on this platform.
var ErrNotSupported = errors.New("mount namespaces are not supported on this platform")

// Handle references an open mount namespace.
type Handle interface {
	// Join switches the calling thread into this namespace.
	Join() error
	// Close releases the namespace reference.
	Close() error
}

// Interface abstracts the namespace operations so tests can substitute
// fakes for the syscall implementation.
type Interface interface {
	// Supported reports whether mount namespace isolation is available.
	Supported() bool
	// Current opens a handle to the calling thread's mount namespace.
	Current() (Handle, error)
	// Unshare detaches the calling thread into a new private copy of its
	// mount namespace.
	Unshare() error
}

// New returns the namespace implementation for this platform.
func New() Interface {
	return newPlatform()
}
