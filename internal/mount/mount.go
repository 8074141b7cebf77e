package mount

// Mounter defines the interface for mount/unmount operations
type Mounter interface {
	// Mount mounts source at target. Flags are MS_* mount flags; data is
	// the comma-separated filesystem-specific option string.
	Mount(source, target, fsType string, flags uintptr, data string) error
	// Unmount unmounts the target directory
	Unmount(target string) error
	// IsMounted checks if something is mounted at the target
	IsMounted(target string) (bool, error)
}
