// Package subdir implements the X-mount.subdir mount option: mounting a
// subdirectory of a filesystem instead of its root, without the root ever
// becoming reachable. The filesystem is first mounted at a hidden temporary
// target inside a freshly unshared private mount namespace; the
// subdirectory is then recursively bound onto the real target, which
// propagates into the original namespace through the still-shared peer
// group, and the temporary mount is torn down together with the namespace.
package subdir

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/submount/submount/internal/log"
	"github.com/submount/submount/internal/mount"
	"github.com/submount/submount/internal/mountns"
	"github.com/submount/submount/internal/optstr"
)

// OptionName is the userspace mount option this package recognizes on
// table-originated requests.
const OptionName = "X-mount.subdir"

const (
	// DefaultRuntimeDir holds the temporary target directory.
	DefaultRuntimeDir = "/run/submount"

	// DefaultTopDir is the runtime mount marked private so the temporary
	// target never propagates anywhere.
	DefaultTopDir = "/run"

	tmpTargetName = "tmptgt"
)

// Subdir carries the configuration shared by every isolation window it
// opens. One Subdir may serve many pipeline contexts, one at a time.
type Subdir struct {
	ns         mountns.Interface
	runtimeDir string
	topDir     string
}

// Option configures a Subdir.
type Option func(*Subdir)

// WithNamespaces substitutes the namespace implementation.
func WithNamespaces(ns mountns.Interface) Option {
	return func(s *Subdir) { s.ns = ns }
}

// WithRuntimeDir relocates the directory holding the temporary target.
func WithRuntimeDir(dir string) Option {
	return func(s *Subdir) { s.runtimeDir = dir }
}

// WithTopDir changes the mount marked private before the temporary target
// is used.
func WithTopDir(dir string) Option {
	return func(s *Subdir) { s.topDir = dir }
}

// New creates a Subdir with the default runtime paths and the platform
// namespace implementation.
func New(opts ...Option) *Subdir {
	s := &Subdir{
		ns:         mountns.New(),
		runtimeDir: DefaultRuntimeDir,
		topDir:     DefaultTopDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TmpTarget returns the hidden path filesystems are mounted at while their
// subdirectory is extracted. The directory is created on demand and left in
// place between mounts.
func (s *Subdir) TmpTarget() string {
	return filepath.Join(s.runtimeDir, tmpTargetName)
}

// Hookset returns the pipeline extension. Attach one to each context; its
// Deinit must run on the goroutine that ran the pipeline, since releasing a
// leftover isolation window switches the thread's namespace back.
func (s *Subdir) Hookset() *mount.Hookset {
	hs := &mount.Hookset{Name: "subdir"}
	hs.Init = func(c *mount.Context, h *mount.Hookset) error {
		return c.AppendHook(h, mount.StagePrepareTarget, s.prepareTarget)
	}
	hs.Deinit = s.deinit
	return hs
}

// state is the per-context hookset data: the subdirectory to extract, the
// target to restore, and the isolation window while one is open.
type state struct {
	subdir    string
	orgTarget string
	win       *window
}

// prepareTarget decides whether the request asks for a subdirectory mount
// and, if so, schedules the isolation step.
func (s *Subdir) prepareTarget(c *mount.Context, hs *mount.Hookset) error {
	req := c.Request()
	if req.Target() == "" || req.Origin() != mount.OriginTable {
		return nil
	}

	raw, ok := optstr.Get(req.Options(), OptionName)
	if !ok {
		return nil
	}

	dir, err := parseValue(raw)
	if err != nil {
		return err
	}

	log.Debug("subdirectory mount requested", "subdir", dir, "target", req.Target())

	c.SetHooksetData(hs, &state{subdir: dir})
	return c.AppendHook(hs, mount.StagePreMount, s.preMount)
}

// parseValue strips one layer of double quotes; the value is otherwise used
// verbatim. A missing, empty, or half-quoted value is fatal.
func parseValue(raw string) (string, error) {
	v := raw
	if strings.HasPrefix(v, `"`) {
		if len(v) < 2 || !strings.HasSuffix(v, `"`) {
			return "", fmt.Errorf("%w: malformed %s value %s", mount.ErrMountOption, OptionName, raw)
		}
		v = v[1 : len(v)-1]
	}
	if v == "" {
		return "", fmt.Errorf("%w: no value for %s", mount.ErrMountOption, OptionName)
	}
	return v, nil
}

// preMount opens the isolation window and redirects the request to the
// temporary target, so the upcoming primary mount lands where nobody can
// see it.
func (s *Subdir) preMount(c *mount.Context, hs *mount.Hookset) error {
	st, ok := c.HooksetData(hs).(*state)
	if !ok || st == nil {
		return nil
	}

	st.orgTarget = c.Request().Target()

	win, err := s.enter(c.Mounter())
	if err != nil {
		return err
	}
	st.win = win

	c.Request().SetTarget(s.TmpTarget())
	log.Debug("mount target redirected", "tmptarget", s.TmpTarget(), "target", st.orgTarget)

	return c.AppendHook(hs, mount.StagePostMount, s.postMount)
}

// postMount extracts the subdirectory: restore the real target on the
// request, bind the subdirectory onto it, and unmount the temporary target.
// Both steps are always attempted; either failing fails the mount. The
// namespace is released no matter what.
func (s *Subdir) postMount(c *mount.Context, hs *mount.Hookset) error {
	st, ok := c.HooksetData(hs).(*state)
	if !ok || st == nil || st.subdir == "" {
		return nil
	}

	c.Request().SetTarget(st.orgTarget)

	err := s.mountSubdir(c.Mounter(), st.subdir, st.orgTarget)

	// mountSubdir already detached the temporary target; only the
	// namespace is left to put back.
	s.release(st.win)
	st.win = nil

	return err
}

// mountSubdir binds tmptgt/subdir onto the real target and unmounts the
// temporary target. The unmount happens even when the bind failed. The
// subdirectory path is used as given, without normalization.
func (s *Subdir) mountSubdir(m mount.Mounter, dir, target string) error {
	src := s.TmpTarget() + "/" + dir

	log.Debug("mounting subdirectory", "source", src, "target", target)

	var err error
	if bindErr := m.Mount(src, target, "", unix.MS_BIND|unix.MS_REC, ""); bindErr != nil {
		err = fmt.Errorf("%w: bind %s on %s: %w", mount.ErrApplyFlags, src, target, bindErr)
	}
	if umountErr := m.Unmount(s.TmpTarget()); umountErr != nil && err == nil {
		err = fmt.Errorf("%w: unmount %s: %w", mount.ErrApplyFlags, s.TmpTarget(), umountErr)
	}
	return err
}

// deinit drops the hookset's callbacks and releases any isolation window a
// failed mount left open. Safe to run repeatedly.
func (s *Subdir) deinit(c *mount.Context, hs *mount.Hookset) error {
	c.RemoveHooks(hs)

	if st, ok := c.HooksetData(hs).(*state); ok && st != nil {
		if st.win != nil {
			log.Debug("releasing leftover namespace isolation", "target", st.orgTarget)
			s.leave(c.Mounter(), st.win)
			st.win = nil
		}
		c.SetHooksetData(hs, nil)
	}
	return nil
}
