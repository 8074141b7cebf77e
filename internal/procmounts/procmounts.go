// Package procmounts reads the kernel mount table.
package procmounts

// Entry represents one line of /proc/self/mounts.
type Entry struct {
	Device     string
	MountPoint string
	FSType     string
	Options    string
}
