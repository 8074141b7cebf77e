//go:build linux

package mountns

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Opened per-thread so the handle matches the namespace of the pinned
// thread, not the namespace the main thread started in.
const nsPath = "/proc/thread-self/ns/mnt"

type linuxNS struct{}

func newPlatform() Interface {
	return linuxNS{}
}

func (linuxNS) Supported() bool {
	return true
}

func (linuxNS) Current() (Handle, error) {
	f, err := os.Open(nsPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", nsPath, err)
	}
	return &nsFile{f: f}, nil
}

func (linuxNS) Unshare() error {
	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("unshare mount namespace: %w", err)
	}
	return nil
}

type nsFile struct {
	f *os.File
}

func (h *nsFile) Join() error {
	if err := unix.Setns(int(h.f.Fd()), unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("setns %s: %w", h.f.Name(), err)
	}
	return nil
}

func (h *nsFile) Close() error {
	return h.f.Close()
}
