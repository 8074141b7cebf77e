package mount

import (
	"fmt"

	"github.com/submount/submount/internal/log"
)

// Context drives one mount request through the pipeline stages. It owns the
// request, the mounter, and the per-hookset state created along the way. A
// context performs a single mount and is not safe for concurrent use.
type Context struct {
	req      *Request
	mounter  Mounter
	hooksets []*Hookset

	hooks   [stageCount][]hook
	data    map[*Hookset]any
	stage   Stage
	running bool
	used    bool
}

// Option configures a Context.
type Option func(*Context)

// WithMounter substitutes the mounter used for every mount and unmount in
// the pipeline.
func WithMounter(m Mounter) Option {
	return func(c *Context) { c.mounter = m }
}

// WithHooksets attaches pipeline extensions to the context.
func WithHooksets(hs ...*Hookset) Option {
	return func(c *Context) { c.hooksets = append(c.hooksets, hs...) }
}

// NewContext creates a pipeline context for one request.
func NewContext(req *Request, opts ...Option) *Context {
	c := &Context{
		req:     req,
		mounter: NewSyscallMounter(),
		data:    make(map[*Hookset]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request returns the request this context operates on.
func (c *Context) Request() *Request { return c.req }

// Mounter returns the mounter hooks should use for pipeline mounts.
func (c *Context) Mounter() Mounter { return c.mounter }

// HooksetData returns the state a hookset stored on this context, or nil.
func (c *Context) HooksetData(hs *Hookset) any { return c.data[hs] }

// SetHooksetData stores per-context state for a hookset. Storing nil
// destroys the state.
func (c *Context) SetHooksetData(hs *Hookset, v any) {
	if v == nil {
		delete(c.data, hs)
		return
	}
	c.data[hs] = v
}

// AppendHook registers a callback at a stage. While the pipeline is running
// only stages after the current one accept new callbacks.
func (c *Context) AppendHook(hs *Hookset, stage Stage, fn HookFunc) error {
	if stage < StagePrepareTarget || stage >= stageCount {
		return fmt.Errorf("unknown pipeline stage %d", int(stage))
	}
	if c.running && stage <= c.stage {
		return fmt.Errorf("cannot register %q hook: stage %s already reached", hs.Name, stage)
	}

	c.hooks[stage] = append(c.hooks[stage], hook{hs: hs, fn: fn})
	log.Debug("hook registered", "hookset", hs.Name, "stage", stage.String())
	return nil
}

// RemoveHooks drops every pending callback registered by a hookset and
// returns how many were removed.
func (c *Context) RemoveHooks(hs *Hookset) int {
	removed := 0
	for st := range c.hooks {
		kept := c.hooks[st][:0]
		for _, h := range c.hooks[st] {
			if h.hs == hs {
				removed++
				continue
			}
			kept = append(kept, h)
		}
		c.hooks[st] = kept
	}
	return removed
}

// Mount runs the pipeline: hookset inits, then every registered callback in
// stage order, with the primary mount performed at the mount stage. The
// first failing callback halts the pipeline. A context mounts once.
func (c *Context) Mount() error {
	if c.used {
		return fmt.Errorf("mount context already used")
	}
	c.used = true

	for _, hs := range c.hooksets {
		if hs.Init == nil {
			continue
		}
		if err := hs.Init(c, hs); err != nil {
			return fmt.Errorf("init hookset %q: %w", hs.Name, err)
		}
	}

	c.running = true
	defer func() { c.running = false }()

	for st := StagePrepareTarget; st < stageCount; st++ {
		c.stage = st
		for _, h := range c.hooks[st] {
			if err := h.fn(c, h.hs); err != nil {
				return fmt.Errorf("%s hook %q: %w", st, h.hs.Name, err)
			}
		}
		if st == StageMount {
			if err := c.mountPrimary(); err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *Context) mountPrimary() error {
	flags, data := parseOptions(c.req.Options())
	return c.mounter.Mount(c.req.Source(), c.req.Target(), c.req.FSType(), flags, data)
}

// Deinit tears the context down: every hookset's Deinit runs, removing its
// callbacks and releasing whatever state a failed mount left behind. Safe
// to call more than once.
func (c *Context) Deinit() error {
	var first error
	for _, hs := range c.hooksets {
		if hs.Deinit == nil {
			continue
		}
		if err := hs.Deinit(c, hs); err != nil {
			log.Warn("hookset deinit failed", "hookset", hs.Name, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
