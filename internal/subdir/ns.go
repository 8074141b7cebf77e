package subdir

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/submount/submount/internal/log"
	"github.com/submount/submount/internal/mount"
	"github.com/submount/submount/internal/mountns"
)

// window is one open isolation window: the namespace to go back to, and
// whether the goroutine still holds its OS thread pinned.
type window struct {
	saved  mountns.Handle
	locked bool
}

// enter moves the calling thread into a fresh private mount namespace with
// the temporary target directory prepared and shielded from propagation.
// On failure everything acquired so far is released and the originating
// error returned. The goroutine stays locked to its OS thread until leave.
func (s *Subdir) enter(m mount.Mounter) (*window, error) {
	if !s.ns.Supported() {
		return nil, fmt.Errorf("%s: %w", OptionName, mountns.ErrNotSupported)
	}

	runtime.LockOSThread()
	w := &window{locked: true}

	saved, err := s.ns.Current()
	if err != nil {
		s.leave(m, w)
		return nil, fmt.Errorf("%w: %w", mount.ErrNamespace, err)
	}
	w.saved = saved

	if err := s.ns.Unshare(); err != nil {
		s.leave(m, w)
		return nil, fmt.Errorf("%w: %w", mount.ErrNamespace, err)
	}

	if err := os.MkdirAll(s.TmpTarget(), 0o700); err != nil {
		s.leave(m, w)
		return nil, fmt.Errorf("%w: create temporary target: %w", mount.ErrNamespace, err)
	}

	if err := s.makePrivate(m); err != nil {
		s.leave(m, w)
		return nil, err
	}

	log.Debug("temporary target isolated", "path", s.TmpTarget())
	return w, nil
}

// makePrivate keeps the temporary target out of every peer group: mark the
// runtime top dir private, or failing that bind the temporary target to
// itself and mark that mount private.
func (s *Subdir) makePrivate(m mount.Mounter) error {
	if err := m.Mount("none", s.topDir, "", unix.MS_PRIVATE, ""); err == nil {
		return nil
	}

	if err := m.Mount(s.TmpTarget(), s.TmpTarget(), "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("%w: bind %s to itself: %w", mount.ErrApplyFlags, s.TmpTarget(), err)
	}
	if err := m.Mount("none", s.TmpTarget(), "", unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("%w: make %s private: %w", mount.ErrApplyFlags, s.TmpTarget(), err)
	}
	return nil
}

// leave unwinds an isolation window, best effort: unmount the temporary
// target, then release the window. Failures are logged, never returned.
func (s *Subdir) leave(m mount.Mounter, w *window) {
	if w == nil {
		return
	}

	if err := m.Unmount(s.TmpTarget()); err != nil {
		log.Debug("temporary target not unmounted", "path", s.TmpTarget(), "error", err)
	}

	s.release(w)
}

// release rejoins the saved namespace, closes the handle, and unpins the
// thread. A thread whose namespace could not be restored stays pinned so
// the runtime retires it instead of reusing it.
func (s *Subdir) release(w *window) {
	if w == nil {
		return
	}

	restored := true
	if w.saved != nil {
		if err := w.saved.Join(); err != nil {
			restored = false
			log.Error("cannot rejoin original mount namespace, thread stays pinned", "error", err)
		}
		if err := w.saved.Close(); err != nil {
			log.Warn("closing namespace handle", "error", err)
		}
		w.saved = nil
	}

	if w.locked && restored {
		runtime.UnlockOSThread()
		w.locked = false
	}
}

// WithPrivateTarget opens an isolation window, runs fn with the temporary
// target path, and always unwinds afterwards. Whatever fn mounts at the
// target exists only inside the private namespace and is gone when the
// window closes. The calling goroutine is pinned to its OS thread for the
// duration.
func (s *Subdir) WithPrivateTarget(m mount.Mounter, fn func(target string) error) error {
	w, err := s.enter(m)
	if err != nil {
		return err
	}

	err = fn(s.TmpTarget())
	s.leave(m, w)
	return err
}
