package mount

import "fmt"

// Stage is an ordered point in the mount pipeline at which hook callbacks
// run.
type Stage int

const (
	// StagePrepareTarget runs before anything touches the filesystem.
	StagePrepareTarget Stage = iota
	// StagePreMount runs just before the primary mount.
	StagePreMount
	// StageMount is the stage at which the primary mount itself happens,
	// after any callbacks registered there.
	StageMount
	// StagePostMount runs after a successful primary mount.
	StagePostMount

	stageCount
)

func (s Stage) String() string {
	switch s {
	case StagePrepareTarget:
		return "prepare-target"
	case StagePreMount:
		return "pre-mount"
	case StageMount:
		return "mount"
	case StagePostMount:
		return "post-mount"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// HookFunc is one pipeline callback. Callbacks belonging to the same
// hookset share per-context state through Context.HooksetData.
type HookFunc func(c *Context, hs *Hookset) error

// Hookset is a named pipeline extension. Init runs once before the first
// stage and registers the hookset's first callbacks; later callbacks are
// appended by earlier ones as the pipeline advances. Deinit removes every
// callback the hookset registered and destroys its per-context state; it
// must tolerate being called more than once.
type Hookset struct {
	Name   string
	Init   HookFunc
	Deinit HookFunc
}

type hook struct {
	hs *Hookset
	fn HookFunc
}
