package mount

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/submount/submount/internal/log"
	"github.com/submount/submount/internal/procmounts"
)

// SyscallMounter implements Mounter using Linux syscalls
type SyscallMounter struct{}

// NewSyscallMounter creates a new syscall-based mounter
func NewSyscallMounter() *SyscallMounter {
	return &SyscallMounter{}
}

// Mount mounts source at target
func (m *SyscallMounter) Mount(source, target, fsType string, flags uintptr, data string) error {
	log.Debug("mounting filesystem", "source", source, "target", target, "type", fsType,
		"flags", fmt.Sprintf("%#x", flags), "data", data)

	if err := unix.Mount(source, target, fsType, flags, data); err != nil {
		return fmt.Errorf("mount %s on %s: %w", source, target, err)
	}

	log.Debug("mounted successfully", "source", source, "target", target)
	return nil
}

// Unmount unmounts the target directory
func (m *SyscallMounter) Unmount(target string) error {
	log.Debug("unmounting", "target", target)

	if err := unix.Unmount(target, 0); err != nil {
		return fmt.Errorf("unmount %s: %w", target, err)
	}

	log.Debug("unmounted successfully", "target", target)
	return nil
}

// IsMounted checks if something is mounted at the target
func (m *SyscallMounter) IsMounted(target string) (bool, error) {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false, fmt.Errorf("get absolute path: %w", err)
	}

	mounts, err := procmounts.Parse()
	if err != nil {
		return false, fmt.Errorf("unable to parse mounts: %w", err)
	}

	for _, mount := range mounts {
		if mount.MountPoint == absTarget {
			return true, nil
		}
	}

	return false, nil
}
