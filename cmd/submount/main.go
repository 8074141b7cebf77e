package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/submount/submount/internal/blkid"
	"github.com/submount/submount/internal/config"
	"github.com/submount/submount/internal/log"
	"github.com/submount/submount/internal/mount"
	"github.com/submount/submount/internal/optstr"
	"github.com/submount/submount/internal/subdir"
	"github.com/submount/submount/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:      "submount",
		Usage:     "Mount a filesystem, or a subdirectory of one",
		ArgsUsage: "[SOURCE TARGET]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "options",
				Aliases: []string{"o"},
				Usage:   "Comma-separated mount options",
			},
			&cli.StringFlag{
				Name:    "types",
				Aliases: []string{"t"},
				Usage:   "Filesystem type",
			},
			&cli.StringFlag{
				Name:    "entry",
				Aliases: []string{"e"},
				Usage:   "Full fstab-style entry: \"SOURCE TARGET TYPE OPTS [0 0]\"",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file path",
				Value:   config.DefaultConfigPath,
			},
			&cli.StringFlag{
				Name:    "resolver",
				Aliases: []string{"r"},
				Usage:   "Device resolver: blkid or udisks",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"V"},
				Usage:   "Print version information",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	// Handle version flag
	if cmd.Bool("version") {
		fmt.Println(version.String())
		return nil
	}

	// Setup logging
	log.Setup(cmd.Bool("verbose"))

	// Load config file; only the resolver and runtime dir matter here
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Merge(&config.Config{Resolver: cmd.String("resolver")})
	cfg.ApplyDefaults()

	req, err := buildRequest(cmd)
	if err != nil {
		return err
	}

	res, err := blkid.NewResolver(cfg.Resolver)
	if err != nil {
		return fmt.Errorf("create device resolver: %w", err)
	}

	device, err := res.Resolve(req.Source())
	if err != nil {
		if errors.Is(err, blkid.ErrNotFound) {
			return fmt.Errorf("device %s not found", req.Source())
		}
		return fmt.Errorf("resolve device: %w", err)
	}
	req.SetSource(device)

	var opts []subdir.Option
	if cfg.RuntimeDir != "" {
		opts = append(opts, subdir.WithRuntimeDir(cfg.RuntimeDir))
	}
	sub := subdir.New(opts...)

	mctx := mount.NewContext(req, mount.WithHooksets(sub.Hookset()))

	err = mctx.Mount()
	if derr := mctx.Deinit(); derr != nil {
		log.Warn("mount context deinit", "error", derr)
	}
	if err != nil {
		return fmt.Errorf("mount %s on %s: %w", req.Source(), req.Target(), err)
	}

	log.Debug("mounted", "source", req.Source(), "target", req.Target())
	return nil
}

func buildRequest(cmd *cli.Command) (*mount.Request, error) {
	return requestFromArgs(cmd.String("entry"), cmd.String("options"), cmd.String("types"), cmd.Args().Slice())
}

// requestFromArgs assembles the mount request from either a full
// fstab-style entry or bare SOURCE TARGET arguments. Entry-style
// invocations are table-originated, and so are option strings carrying
// X-/x- directives; a directive-free invocation is
// command-line-originated, so userspace options are not honored on it.
func requestFromArgs(entry, options, fstype string, args []string) (*mount.Request, error) {
	if entry != "" {
		if len(args) > 0 || options != "" || fstype != "" {
			return nil, fmt.Errorf("--entry cannot be combined with SOURCE TARGET or -o/-t")
		}
		return mount.ParseEntry(entry)
	}

	if len(args) != 2 {
		return nil, fmt.Errorf("expected SOURCE and TARGET arguments, got %d", len(args))
	}

	origin := mount.OriginCommandLine
	if hasUserspaceOption(options) {
		origin = mount.OriginTable
	}

	return mount.NewRequest(args[0], args[1], fstype, options, origin), nil
}

// hasUserspaceOption reports whether any X- or x- directive appears in the
// option string.
func hasUserspaceOption(options string) bool {
	for _, opt := range optstr.Parse(options) {
		if strings.HasPrefix(opt.Name, "X-") || strings.HasPrefix(opt.Name, "x-") {
			return true
		}
	}
	return false
}
